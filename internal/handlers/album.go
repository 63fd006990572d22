package handlers

import (
	"net/http"

	"memoryland-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AlbumHandler handles album requests and uploads into albums
type AlbumHandler struct {
	albums         *services.AlbumService
	photos         *services.PhotoService
	maxUploadBytes int64
}

// NewAlbumHandler creates a new album handler
func NewAlbumHandler(albums *services.AlbumService, photos *services.PhotoService, maxUploadBytes int64) *AlbumHandler {
	return &AlbumHandler{
		albums:         albums,
		photos:         photos,
		maxUploadBytes: maxUploadBytes,
	}
}

// ListAlbums handles GET /api/v1/albums
func (h *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albums.ListAlbums(r.Context(), identity(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"albums": albums})
}

// CreateAlbum handles POST /api/v1/albums
func (h *AlbumHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	caller := identity(r)
	album, err := h.albums.CreateAlbum(r.Context(), caller, name)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	log.Info().
		Int64("user_id", caller.UserID).
		Int64("album_id", album.ID).
		Msg("Album created")

	respondJSON(w, http.StatusCreated, album)
}

// GetAlbumPhotos handles GET /api/v1/albums/{id}
func (h *AlbumHandler) GetAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	photos, err := h.albums.GetAlbumPhotos(r.Context(), identity(r), albumID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

// RenameAlbum handles PATCH /api/v1/albums/{id}
func (h *AlbumHandler) RenameAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid album id", http.StatusBadRequest)
		return
	}
	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	if err := h.albums.RenameAlbum(r.Context(), identity(r), albumID, name); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAlbum handles DELETE /api/v1/albums/{id}
func (h *AlbumHandler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	if err := h.albums.DeleteAlbum(r.Context(), identity(r), albumID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadPhoto handles POST /api/v1/albums/{id}/photos with a multipart
// "file" part named "<name>.<ext>"
func (h *AlbumHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "invalid album id", http.StatusBadRequest)
		return
	}
	fileName, data, ok := readUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}

	photo, err := h.photos.UploadPhoto(r.Context(), identity(r), albumID, fileName, data)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, photo)
}
