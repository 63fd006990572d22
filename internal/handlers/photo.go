package handlers

import (
	"errors"
	"io"
	"net/http"

	"memoryland-backend/internal/services"
)

const uploadField = "file"

// PhotoHandler handles photo-related HTTP requests
type PhotoHandler struct {
	photos *services.PhotoService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photos *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{
		photos: photos,
	}
}

// GetPhoto handles GET /api/v1/photos/{id}
func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	photoID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid photo id", http.StatusBadRequest)
		return
	}

	photo, err := h.photos.GetPhoto(r.Context(), identity(r), photoID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, photo)
}

// RenamePhoto handles PATCH /api/v1/photos/{id}
func (h *PhotoHandler) RenamePhoto(w http.ResponseWriter, r *http.Request) {
	photoID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid photo id", http.StatusBadRequest)
		return
	}
	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	if err := h.photos.RenamePhoto(r.Context(), identity(r), photoID, name); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeletePhoto handles DELETE /api/v1/photos/{id}
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	photoID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid photo id", http.StatusBadRequest)
		return
	}

	if err := h.photos.DeletePhoto(r.Context(), identity(r), photoID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readUpload pulls the "file" part out of a multipart body capped at
// maxBytes
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "upload too large", http.StatusRequestEntityTooLarge)
			return "", nil, false
		}
		respondError(w, `multipart field "file" is required`, http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "failed to read upload", http.StatusBadRequest)
		return "", nil, false
	}
	return header.Filename, data, true
}
