package repository

import (
	"context"
	"errors"
	"fmt"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DisplayTypeRepository reads display types
type DisplayTypeRepository struct {
	db *pgxpool.Pool
}

// NewDisplayTypeRepository creates a new display type repository
func NewDisplayTypeRepository(db *pgxpool.Pool) *DisplayTypeRepository {
	return &DisplayTypeRepository{db: db}
}

// List retrieves all display types ordered by ID
func (r *DisplayTypeRepository) List(ctx context.Context) ([]*models.DisplayType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, capacity FROM display_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list display types: %w", err)
	}
	defer rows.Close()

	var types []*models.DisplayType
	for rows.Next() {
		var dt models.DisplayType
		if err := rows.Scan(&dt.ID, &dt.Name, &dt.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan display type: %w", err)
		}
		types = append(types, &dt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating display types: %w", err)
	}

	return types, nil
}

// GetByID retrieves a display type by ID
func (r *DisplayTypeRepository) GetByID(ctx context.Context, id int64) (*models.DisplayType, error) {
	var dt models.DisplayType
	err := r.db.QueryRow(ctx, `SELECT id, name, capacity FROM display_types WHERE id = $1`, id).
		Scan(&dt.ID, &dt.Name, &dt.Capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("display type not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get display type: %w", err)
	}
	return &dt, nil
}

// DisplayRepository handles database operations for displays
type DisplayRepository struct {
	db *pgxpool.Pool
}

// NewDisplayRepository creates a new display repository
func NewDisplayRepository(db *pgxpool.Pool) *DisplayRepository {
	return &DisplayRepository{db: db}
}

// Create creates a new display. A duplicate (owner, name) yields ErrConflict.
func (r *DisplayRepository) Create(ctx context.Context, display *models.Display) error {
	query := `
		INSERT INTO displays (user_id, type_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		display.OwnerID, display.Type.ID, display.Name, display.CreatedAt,
	).Scan(&display.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("display name %q: %w", display.Name, ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("display type not found: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to create display: %w", err)
	}
	return nil
}

const selectDisplay = `
	SELECT d.id, d.name, d.user_id, d.created_at, t.id, t.name, t.capacity
	FROM displays d
	JOIN display_types t ON t.id = d.type_id
`

func scanDisplay(row pgx.Row) (*models.Display, error) {
	var d models.Display
	err := row.Scan(&d.ID, &d.Name, &d.OwnerID, &d.CreatedAt, &d.Type.ID, &d.Type.Name, &d.Type.Capacity)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByID retrieves a display together with its type
func (r *DisplayRepository) GetByID(ctx context.Context, id int64) (*models.Display, error) {
	display, err := scanDisplay(r.db.QueryRow(ctx, selectDisplay+` WHERE d.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("display not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get display: %w", err)
	}
	return display, nil
}

// ListByOwner retrieves the displays of a user ordered by name
func (r *DisplayRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Display, error) {
	rows, err := r.db.Query(ctx, selectDisplay+` WHERE d.user_id = $1 ORDER BY d.name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list displays: %w", err)
	}
	defer rows.Close()

	var displays []*models.Display
	for rows.Next() {
		display, err := scanDisplay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan display: %w", err)
		}
		displays = append(displays, display)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating displays: %w", err)
	}

	return displays, nil
}

// Rename changes the display name
func (r *DisplayRepository) Rename(ctx context.Context, id int64, name string) error {
	result, err := r.db.Exec(ctx, `UPDATE displays SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("display name %q: %w", name, ErrConflict)
		}
		return fmt.Errorf("failed to rename display: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("display not found: %w", ErrNotFound)
	}
	return nil
}

// Delete deletes a display; slots and tokens cascade
func (r *DisplayRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM displays WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete display: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("display not found: %w", ErrNotFound)
	}
	return nil
}

// OwnerID returns the id of the user owning the display
func (r *DisplayRepository) OwnerID(ctx context.Context, id int64) (int64, error) {
	var ownerID int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM displays WHERE id = $1`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("display not found: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get display owner: %w", err)
	}
	return ownerID, nil
}
