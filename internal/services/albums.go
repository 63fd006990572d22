package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// AlbumService handles photo albums
type AlbumService struct {
	stores   *repository.Stores
	authz    *Authorizer
	broker   PhotoBroker
	notifier DisplayNotifier
	fanOut   int
}

// NewAlbumService creates a new album service
func NewAlbumService(stores *repository.Stores, authz *Authorizer, broker PhotoBroker, notifier DisplayNotifier, fanOut int) *AlbumService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	return &AlbumService{
		stores:   stores,
		authz:    authz,
		broker:   broker,
		notifier: notifier,
		fanOut:   fanOut,
	}
}

// CreateAlbum creates an album for the caller
func (s *AlbumService) CreateAlbum(ctx context.Context, identity models.Identity, name string) (*models.Album, error) {
	if err := validateAlbumName(name); err != nil {
		return nil, err
	}
	album := &models.Album{
		Name:      name,
		OwnerID:   identity.UserID,
		CreatedAt: time.Now(),
	}
	if err := s.stores.Albums.Create(ctx, album); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalid("album name already exists")
		}
		return nil, notFound(err, "create album")
	}
	return album, nil
}

// ListAlbums lists the caller's albums with their photo names
func (s *AlbumService) ListAlbums(ctx context.Context, identity models.Identity) ([]models.AlbumSummary, error) {
	albums, err := s.stores.Albums.ListByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}

	summaries := make([]models.AlbumSummary, 0, len(albums))
	for _, album := range albums {
		photos, err := s.stores.Photos.ListByAlbum(ctx, album.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list photos: %w", err)
		}
		names := make([]string, 0, len(photos))
		for _, p := range photos {
			names = append(names, p.Name)
		}
		summaries = append(summaries, models.AlbumSummary{ID: album.ID, Name: album.Name, PhotoNames: names})
	}
	return summaries, nil
}

// GetAlbumPhotos returns the photos of one of the caller's albums with
// signed URLs, ordered by name. Photos without a blob are left out.
func (s *AlbumService) GetAlbumPhotos(ctx context.Context, identity models.Identity, albumID int64) ([]models.PhotoView, error) {
	if err := s.authz.Authorize(ctx, identity, albumRef(albumID)); err != nil {
		return nil, err
	}
	photos, err := s.stores.Photos.ListByAlbum(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photoViews(ctx, s.broker, s.fanOut, identity.UserID, photos), nil
}

// RenameAlbum renames one of the caller's albums
func (s *AlbumService) RenameAlbum(ctx context.Context, identity models.Identity, albumID int64, name string) error {
	if err := validateAlbumName(name); err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, identity, albumRef(albumID)); err != nil {
		return err
	}
	if err := s.stores.Albums.Rename(ctx, albumID, name); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return invalid("album name already exists")
		}
		return notFound(err, "rename album")
	}
	return nil
}

// DeleteAlbum deletes one of the caller's albums, its photos and their
// blobs. A missing album is not an error.
func (s *AlbumService) DeleteAlbum(ctx context.Context, identity models.Identity, albumID int64) error {
	if err := s.authz.Authorize(ctx, identity, albumRef(albumID)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	photos, err := s.stores.Photos.ListByAlbum(ctx, albumID)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}
	keys := make([]string, 0, len(photos))
	for _, p := range photos {
		keys = append(keys, photoKey(p))
	}
	if err := s.broker.DeleteResources(ctx, identity.UserID, keys); err != nil {
		return fmt.Errorf("failed to delete album blobs: %w", err)
	}

	if err := s.stores.Albums.Delete(ctx, albumID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	if len(photos) > 0 {
		notifyOwnerDisplays(ctx, s.stores, s.notifier, identity.UserID)
	}
	log.Info().Int64("album_id", albumID).Int("photos", len(photos)).Msg("Album deleted")
	return nil
}
