package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
)

const (
	// multipartMemory is kept in memory per request; larger files spill to
	// temporary files that Close removes.
	multipartMemory = 8 << 20
	// multipartOverhead covers boundaries and text fields on top of the file.
	multipartOverhead = 1 << 20
)

// MultipartUpload is one parsed upload request.
type MultipartUpload struct {
	File   multipart.File
	Header *multipart.FileHeader
	form   *multipart.Form
}

// Value returns the trimmed form field key.
func (u *MultipartUpload) Value(key string) string {
	if u == nil || u.form == nil {
		return ""
	}
	if values := u.form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// DeclaredType is the part's Content-Type as sent by the client.
func (u *MultipartUpload) DeclaredType() string {
	if u == nil || u.Header == nil {
		return ""
	}
	return u.Header.Header.Get("Content-Type")
}

// Close releases the file and any temporary spill files.
func (u *MultipartUpload) Close() error {
	if u == nil {
		return nil
	}
	var err error
	if u.File != nil {
		err = u.File.Close()
	}
	if u.form != nil {
		err = errors.Join(err, u.form.RemoveAll())
	}
	return err
}

// ParseMultipartUpload reads a multipart body carrying one file in
// fileField. The whole body is capped a little above maxFileBytes; the exact
// file ceiling is the upload policy's job.
func ParseMultipartUpload(w http.ResponseWriter, r *http.Request, fileField string, maxFileBytes int64) (*MultipartUpload, error) {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expected multipart/form-data")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeFileTooLarge, err, "file exceeds the upload size limit").
				WithDetails(map[string]any{"maxBytes": maxFileBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed multipart body")
	}

	file, header, err := r.FormFile(fileField)
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		if errors.Is(err, http.ErrMissingFile) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fileField+" is required").WithDetails(map[string]any{"field": fileField})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read uploaded file")
	}
	return &MultipartUpload{File: file, Header: header, form: r.MultipartForm}, nil
}
