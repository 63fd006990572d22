package repository

import (
	"context"
	"errors"
	"fmt"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SlotRepository handles database operations for display slots
type SlotRepository struct {
	db *pgxpool.Pool
}

// NewSlotRepository creates a new slot repository
func NewSlotRepository(db *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{db: db}
}

// Upsert places a photo at a position in one statement. An occupied position
// is overwritten, so a display never holds two slots at the same position.
func (r *SlotRepository) Upsert(ctx context.Context, slot *models.Slot) error {
	query := `
		INSERT INTO slots (display_id, position, photo_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (display_id, position)
		DO UPDATE SET photo_id = EXCLUDED.photo_id
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, slot.DisplayID, slot.Position, slot.PhotoID).Scan(&slot.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("display or photo not found: %w", ErrNotFound)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("slot position %d: %w", slot.Position, ErrConflict)
		}
		return fmt.Errorf("failed to upsert slot: %w", err)
	}
	return nil
}

// GetByID retrieves a slot by ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*models.Slot, error) {
	query := `
		SELECT id, display_id, position, photo_id
		FROM slots
		WHERE id = $1
	`
	var slot models.Slot
	err := r.db.QueryRow(ctx, query, id).Scan(&slot.ID, &slot.DisplayID, &slot.Position, &slot.PhotoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("slot not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

// ListByDisplay retrieves the slots of a display ordered by position
func (r *SlotRepository) ListByDisplay(ctx context.Context, displayID int64) ([]*models.Slot, error) {
	query := `
		SELECT id, display_id, position, photo_id
		FROM slots
		WHERE display_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, displayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	slots := []*models.Slot{}
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(&slot.ID, &slot.DisplayID, &slot.Position, &slot.PhotoID); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, &slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}

	return slots, nil
}

// Delete deletes a slot
func (r *SlotRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("slot not found: %w", ErrNotFound)
	}
	return nil
}

// OwnerID returns the id of the user owning the slot's display
func (r *SlotRepository) OwnerID(ctx context.Context, id int64) (int64, error) {
	query := `
		SELECT d.user_id
		FROM slots s
		JOIN displays d ON d.id = s.display_id
		WHERE s.id = $1
	`
	var ownerID int64
	if err := r.db.QueryRow(ctx, query, id).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("slot not found: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get slot owner: %w", err)
	}
	return ownerID, nil
}
