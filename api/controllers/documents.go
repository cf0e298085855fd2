package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/constructai-backend/api/middleware"
	"github.com/angelmondragon/constructai-backend/api/responses"
	"github.com/angelmondragon/constructai-backend/api/validators"
	"github.com/angelmondragon/constructai-backend/internal/documents"
	"github.com/angelmondragon/constructai-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
	"github.com/angelmondragon/constructai-backend/pkg/pagination"
)

const (
	maxProjectIDLength = 128
	maxCategoryLength  = 64
)

// DocumentUpload ingests a multipart upload. The response is 201 when the
// record is already terminal and 202 while a derivation is pending.
func DocumentUpload(svc documents.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		upload, err := validators.ParseMultipartUpload(w, r, "file", maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer upload.Close()

		dto, err := svc.Ingest(r.Context(), documents.IngestInput{
			FileName:     validators.SanitizeString(upload.Header.Filename, 255),
			DeclaredType: upload.DeclaredType(),
			Size:         upload.Header.Size,
			Body:         upload.File,
			OwnerID:      userID,
			ProjectID:    validators.SanitizeString(upload.Value("projectId"), maxProjectIDLength),
			Category:     validators.SanitizeString(upload.Value("category"), maxCategoryLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if dto.Status.IsTerminal() {
			responses.WriteSuccessStatus(w, http.StatusCreated, dto)
			return
		}
		responses.WriteAccepted(w, dto)
	}
}

// DocumentList returns a page of documents, newest first.
func DocumentList(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
			return
		}

		params := documents.ListParams{
			ProjectID: strings.TrimSpace(r.URL.Query().Get("projectId")),
			Cursor:    strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		status, ok, err := validators.ParseQueryEnum(r, "status", enums.ParseDocumentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.HasStatus = ok
		params.Status = status

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// DocumentDetail returns one document. Clients poll it to follow derivation.
func DocumentDetail(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "documents service unavailable"))
			return
		}

		id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "documentId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document id"))
			return
		}

		dto, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
