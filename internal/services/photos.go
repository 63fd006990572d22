package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memoryland-backend/internal/imageproc"
	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PhotoService handles photo uploads and photo metadata
type PhotoService struct {
	stores   *repository.Stores
	authz    *Authorizer
	broker   PhotoBroker
	notifier DisplayNotifier
	fanOut   int
}

// NewPhotoService creates a new photo service
func NewPhotoService(stores *repository.Stores, authz *Authorizer, broker PhotoBroker, notifier DisplayNotifier, fanOut int) *PhotoService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	return &PhotoService{
		stores:   stores,
		authz:    authz,
		broker:   broker,
		notifier: notifier,
		fanOut:   fanOut,
	}
}

// UploadPhoto stores fileName ("<name>.<ext>") into one of the caller's
// albums. JPEGs are normalized on the way in.
func (s *PhotoService) UploadPhoto(ctx context.Context, identity models.Identity, albumID int64, fileName string, data []byte) (*models.Photo, error) {
	name, contentType, err := splitFileName(fileName)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, invalid("photo is empty")
	}
	if err := s.authz.Authorize(ctx, identity, albumRef(albumID)); err != nil {
		return nil, err
	}

	photo := &models.Photo{
		Name:        name,
		AlbumID:     albumID,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}
	if err := s.stores.Photos.Create(ctx, photo); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalid("photo name already exists")
		}
		return nil, notFound(err, "create photo")
	}

	if err := s.broker.UploadBytes(ctx, identity.UserID, photoKey(photo), data, contentType); err != nil {
		if delErr := s.stores.Photos.Delete(ctx, photo.ID); delErr != nil && !errors.Is(delErr, repository.ErrNotFound) {
			log.Error().Err(delErr).Int64("photo_id", photo.ID).Msg("Failed to roll back photo row")
		}
		if errors.Is(err, imageproc.ErrUndecodable) {
			return nil, invalid("photo could not be decoded as %s", contentType)
		}
		return nil, fmt.Errorf("failed to upload photo: %w", err)
	}

	log.Info().Int64("photo_id", photo.ID).Int64("album_id", albumID).Msg("Photo uploaded")
	return photo, nil
}

// GetPhoto returns one of the caller's photos with a signed URL. A photo
// whose blob is gone is reported as not found.
func (s *PhotoService) GetPhoto(ctx context.Context, identity models.Identity, photoID int64) (*models.PhotoView, error) {
	if err := s.authz.Authorize(ctx, identity, photoRef(photoID)); err != nil {
		return nil, err
	}
	photo, err := s.stores.Photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, notFound(err, "get photo")
	}
	url, ok, err := s.broker.ResolveViewURL(ctx, identity.UserID, photoKey(photo))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve photo URL: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &models.PhotoView{ID: photo.ID, Name: photo.Name, AlbumID: photo.AlbumID, URL: url}, nil
}

// RenamePhoto renames one of the caller's photos. Storage keys do not move.
func (s *PhotoService) RenamePhoto(ctx context.Context, identity models.Identity, photoID int64, name string) error {
	if err := validatePhotoName(name); err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, identity, photoRef(photoID)); err != nil {
		return err
	}
	if err := s.stores.Photos.Rename(ctx, photoID, name); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return invalid("photo name already exists")
		}
		return notFound(err, "rename photo")
	}
	return nil
}

// DeletePhoto deletes one of the caller's photos and its blob. A missing
// photo is not an error.
func (s *PhotoService) DeletePhoto(ctx context.Context, identity models.Identity, photoID int64) error {
	if err := s.authz.Authorize(ctx, identity, photoRef(photoID)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	photo, err := s.stores.Photos.GetByID(ctx, photoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get photo: %w", err)
	}

	if err := s.broker.DeleteResources(ctx, identity.UserID, []string{photoKey(photo)}); err != nil {
		return fmt.Errorf("failed to delete photo blob: %w", err)
	}
	if err := s.stores.Photos.Delete(ctx, photoID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	notifyOwnerDisplays(ctx, s.stores, s.notifier, identity.UserID)
	return nil
}

// photoViews resolves signed URLs for photos concurrently, keeping their
// order and leaving out photos without a blob.
func photoViews(ctx context.Context, broker PhotoBroker, fanOut int, ownerID int64, photos []*models.Photo) []models.PhotoView {
	resolved := make([]*models.PhotoView, len(photos))
	var g errgroup.Group
	g.SetLimit(fanOut)
	for i, photo := range photos {
		g.Go(func() error {
			url, ok, err := broker.ResolveViewURL(ctx, ownerID, photoKey(photo))
			if err != nil {
				log.Warn().Err(err).Int64("photo_id", photo.ID).Msg("Failed to resolve photo URL")
				return nil
			}
			if ok {
				resolved[i] = &models.PhotoView{ID: photo.ID, Name: photo.Name, AlbumID: photo.AlbumID, URL: url}
			}
			return nil
		})
	}
	// per-photo failures are logged and absorbed; Wait only joins
	g.Wait()

	views := make([]models.PhotoView, 0, len(photos))
	for _, v := range resolved {
		if v != nil {
			views = append(views, *v)
		}
	}
	return views
}

// notifyOwnerDisplays pushes a reload to every display of an owner after
// photos disappeared underneath their slots.
func notifyOwnerDisplays(ctx context.Context, stores *repository.Stores, notifier DisplayNotifier, ownerID int64) {
	displays, err := stores.Displays.ListByOwner(ctx, ownerID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", ownerID).Msg("Failed to list displays for notification")
		return
	}
	for _, d := range displays {
		notifier.DisplayChanged(d.ID)
	}
}
