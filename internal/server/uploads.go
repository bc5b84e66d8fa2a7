package server

import (
	"errors"
	"net/http"

	"github.com/tarisrizki/provisioning-telkom/internal/ingestion"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

const multipartMemory = 8 << 20

type uploadError struct {
	Error   string                `json:"error"`
	Kind    models.ValidationKind `json:"kind,omitempty"`
	Missing []string              `json:"missing,omitempty"`
	Result  *ingestion.Result     `json:"result,omitempty"`
}

// UploadFile ingests the multipart "file" field. "heavy=true" selects the
// larger size limit and "force=true" re-ingests a file already uploaded.
func (s *Service) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, uploadError{Error: "file is too large", Kind: models.FileTooLarge})
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	upload := ingestion.Upload{
		Name:   header.Filename,
		Reader: file,
		Size:   header.Size,
		Heavy:  r.FormValue("heavy") == "true",
	}
	result, err := s.ingester.Execute(r.Context(), upload, ingestion.Options{Force: r.FormValue("force") == "true"})

	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		status := http.StatusUnprocessableEntity
		if vErr.Kind == models.DuplicateFile {
			status = http.StatusConflict
		}
		writeJSON(w, status, uploadError{Error: vErr.Error(), Kind: vErr.Kind, Missing: vErr.Missing, Result: result})
	case err != nil:
		s.logger.Error().Err(err).Str("file", header.Filename).Msg("upload failed")
		writeJSON(w, http.StatusInternalServerError, uploadError{Error: "upload failed, please retry", Result: result})
	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

func (s *Service) ListUploads(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	uploads, err := s.store.ListUploads(r.Context(), limit)
	if err != nil {
		s.storeFailure(w, r, err, "failed to load uploads")
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}
