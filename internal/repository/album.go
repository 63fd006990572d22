package repository

import (
	"context"
	"errors"
	"fmt"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AlbumRepository handles database operations for albums
type AlbumRepository struct {
	db *pgxpool.Pool
}

// NewAlbumRepository creates a new album repository
func NewAlbumRepository(db *pgxpool.Pool) *AlbumRepository {
	return &AlbumRepository{db: db}
}

// Create creates a new album. A duplicate (owner, name) yields ErrConflict.
func (r *AlbumRepository) Create(ctx context.Context, album *models.Album) error {
	query := `
		INSERT INTO albums (user_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, album.OwnerID, album.Name, album.CreatedAt).Scan(&album.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("album name %q: %w", album.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create album: %w", err)
	}
	return nil
}

// GetByID retrieves an album by ID
func (r *AlbumRepository) GetByID(ctx context.Context, id int64) (*models.Album, error) {
	query := `
		SELECT id, name, user_id, created_at
		FROM albums
		WHERE id = $1
	`
	var album models.Album
	err := r.db.QueryRow(ctx, query, id).Scan(&album.ID, &album.Name, &album.OwnerID, &album.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("album not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &album, nil
}

// ListByOwner retrieves all albums of a user ordered by name
func (r *AlbumRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Album, error) {
	query := `
		SELECT id, name, user_id, created_at
		FROM albums
		WHERE user_id = $1
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		var album models.Album
		if err := rows.Scan(&album.ID, &album.Name, &album.OwnerID, &album.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, &album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating albums: %w", err)
	}

	return albums, nil
}

// Rename changes the album name
func (r *AlbumRepository) Rename(ctx context.Context, id int64, name string) error {
	result, err := r.db.Exec(ctx, `UPDATE albums SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("album name %q: %w", name, ErrConflict)
		}
		return fmt.Errorf("failed to rename album: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("album not found: %w", ErrNotFound)
	}
	return nil
}

// Delete deletes an album; its photos and the slots showing them cascade
func (r *AlbumRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("album not found: %w", ErrNotFound)
	}
	return nil
}

// OwnerID returns the id of the user owning the album
func (r *AlbumRepository) OwnerID(ctx context.Context, id int64) (int64, error) {
	var ownerID int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM albums WHERE id = $1`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("album not found: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get album owner: %w", err)
	}
	return ownerID, nil
}
