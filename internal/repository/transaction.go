package repository

import (
	"context"
	"errors"
	"fmt"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository handles database operations for upload transactions
type TransactionRepository struct {
	db *pgxpool.Pool
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create opens a transaction. A user with an open one yields ErrConflict.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, album_id, path_hint, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, tx.UserID, tx.AlbumID, tx.PathHint, tx.CreatedAt).Scan(&tx.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("open transaction: %w", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("album not found: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetByUser retrieves the open transaction of a user
func (r *TransactionRepository) GetByUser(ctx context.Context, userID int64) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, album_id, path_hint, created_at
		FROM transactions
		WHERE user_id = $1
	`
	var tx models.Transaction
	err := r.db.QueryRow(ctx, query, userID).Scan(&tx.ID, &tx.UserID, &tx.AlbumID, &tx.PathHint, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// DeleteByUser closes the open transaction of a user
func (r *TransactionRepository) DeleteByUser(ctx context.Context, userID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %w", ErrNotFound)
	}
	return nil
}
