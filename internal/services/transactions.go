package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"
)

// TransactionView is an open upload session with its destination album
type TransactionView struct {
	ID        int64               `json:"id"`
	DestAlbum models.AlbumSummary `json:"dest_album"`
	PathHint  string              `json:"path_hint"`
}

// TransactionService manages resumable multi-photo upload sessions. A user
// has at most one open at a time.
type TransactionService struct {
	stores *repository.Stores
	authz  *Authorizer
	photos *PhotoService
}

// NewTransactionService creates a new transaction service
func NewTransactionService(stores *repository.Stores, authz *Authorizer, photos *PhotoService) *TransactionService {
	return &TransactionService{stores: stores, authz: authz, photos: photos}
}

// Begin opens an upload session into one of the caller's albums. A second
// Begin while one is open is ErrConflict.
func (s *TransactionService) Begin(ctx context.Context, identity models.Identity, albumID int64, pathHint string) (*models.Transaction, error) {
	if err := s.authz.Authorize(ctx, identity, albumRef(albumID)); err != nil {
		return nil, err
	}
	tx := &models.Transaction{
		UserID:    identity.UserID,
		AlbumID:   albumID,
		PathHint:  pathHint,
		CreatedAt: time.Now(),
	}
	if err := s.stores.Transactions.Create(ctx, tx); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Get returns the caller's open session
func (s *TransactionService) Get(ctx context.Context, identity models.Identity) (*TransactionView, error) {
	tx, err := s.stores.Transactions.GetByUser(ctx, identity.UserID)
	if err != nil {
		return nil, notFound(err, "get transaction")
	}
	album, err := s.stores.Albums.GetByID(ctx, tx.AlbumID)
	if err != nil {
		return nil, notFound(err, "get transaction album")
	}
	photos, err := s.stores.Photos.ListByAlbum(ctx, album.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	names := make([]string, 0, len(photos))
	for _, p := range photos {
		names = append(names, p.Name)
	}
	return &TransactionView{
		ID:        tx.ID,
		DestAlbum: models.AlbumSummary{ID: album.ID, Name: album.Name, PhotoNames: names},
		PathHint:  tx.PathHint,
	}, nil
}

// Upload stores a photo into the album of the caller's open session
func (s *TransactionService) Upload(ctx context.Context, identity models.Identity, fileName string, data []byte) (*models.Photo, error) {
	tx, err := s.stores.Transactions.GetByUser(ctx, identity.UserID)
	if err != nil {
		return nil, notFound(err, "get transaction")
	}
	return s.photos.UploadPhoto(ctx, identity, tx.AlbumID, fileName, data)
}

// Close ends the caller's open session. Closing without one is a no-op.
func (s *TransactionService) Close(ctx context.Context, identity models.Identity) error {
	if err := s.stores.Transactions.DeleteByUser(ctx, identity.UserID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to close transaction: %w", err)
	}
	return nil
}
