package repository

import (
	"context"
	"errors"
	"fmt"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PhotoRepository handles database operations for photos
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create creates a new photo. A duplicate (album, name) yields ErrConflict.
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (album_id, name, content_type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		photo.AlbumID, photo.Name, photo.ContentType, photo.CreatedAt,
	).Scan(&photo.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("photo name %q: %w", photo.Name, ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("album not found: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// GetByID retrieves a photo by ID
func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (*models.Photo, error) {
	query := `
		SELECT id, name, album_id, content_type, created_at
		FROM photos
		WHERE id = $1
	`
	var photo models.Photo
	err := r.db.QueryRow(ctx, query, id).Scan(
		&photo.ID, &photo.Name, &photo.AlbumID, &photo.ContentType, &photo.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("photo not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &photo, nil
}

// ListByAlbum retrieves the photos of an album ordered by name
func (r *PhotoRepository) ListByAlbum(ctx context.Context, albumID int64) ([]*models.Photo, error) {
	query := `
		SELECT id, name, album_id, content_type, created_at
		FROM photos
		WHERE album_id = $1
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		var photo models.Photo
		err := rows.Scan(
			&photo.ID, &photo.Name, &photo.AlbumID, &photo.ContentType, &photo.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, &photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}

	return photos, nil
}

// Rename changes the photo name. Storage keys do not depend on it.
func (r *PhotoRepository) Rename(ctx context.Context, id int64, name string) error {
	result, err := r.db.Exec(ctx, `UPDATE photos SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("photo name %q: %w", name, ErrConflict)
		}
		return fmt.Errorf("failed to rename photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("photo not found: %w", ErrNotFound)
	}
	return nil
}

// Delete deletes a photo; slots showing it cascade
func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("photo not found: %w", ErrNotFound)
	}
	return nil
}

// OwnerID returns the id of the user owning the photo's album
func (r *PhotoRepository) OwnerID(ctx context.Context, id int64) (int64, error) {
	query := `
		SELECT a.user_id
		FROM photos p
		JOIN albums a ON a.id = p.album_id
		WHERE p.id = $1
	`
	var ownerID int64
	if err := r.db.QueryRow(ctx, query, id).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("photo not found: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get photo owner: %w", err)
	}
	return ownerID, nil
}
