package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/constructai-backend/api/responses"
	"github.com/angelmondragon/constructai-backend/api/validators"
	"github.com/angelmondragon/constructai-backend/internal/conversion"
	"github.com/angelmondragon/constructai-backend/internal/uploads"
	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
	"github.com/angelmondragon/constructai-backend/pkg/logger"
)

// Converter runs one blueprint conversion.
type Converter interface {
	Convert(ctx context.Context, req conversion.Request) (conversion.Result, error)
}

// ConversionCreate validates a blueprint upload and its optional settings
// field, then answers synchronously with the conversion result. Remote
// failures surface as a simulated result, never as an error response.
func ConversionCreate(converter Converter, policy uploads.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if converter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conversion service unavailable"))
			return
		}

		upload, err := validators.ParseMultipartUpload(w, r, "file", policy.MaxBytes())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer upload.Close()

		var input conversion.SettingsInput
		if err := validators.DecodeJSONField("settings", upload.Value("settings"), &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settings, err := input.Resolve()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settings"))
			return
		}

		head, body, err := uploads.PeekHead(upload.File)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload"))
			return
		}
		decision, err := policy.Validate(uploads.FileMeta{
			FileName:     upload.Header.Filename,
			DeclaredType: upload.DeclaredType(),
			Size:         upload.Header.Size,
			Head:         head,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := converter.Convert(r.Context(), conversion.Request{
			FileName: validators.SanitizeString(upload.Header.Filename, 255),
			MimeType: decision.MimeType,
			Body:     body,
			Settings: settings,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert blueprint"))
			return
		}
		responses.WriteSuccess(w, result)
	}
}
