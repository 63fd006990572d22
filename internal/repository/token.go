package repository

import (
	"context"
	"errors"
	"fmt"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRepository handles database operations for display access tokens
type TokenRepository struct {
	db *pgxpool.Pool
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert stores the token for (display, kind), replacing any existing one.
// The replaced value is returned so callers can react to its revocation. The
// existing row is locked before it is replaced, so concurrent issuers each
// see the token the other one wrote. A collision on the token value itself
// yields ErrConflict.
func (r *TokenRepository) Upsert(ctx context.Context, token *models.AccessToken) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// A concurrent revoke can remove the row between the two statements
	for attempt := 0; attempt < 3; attempt++ {
		err = tx.QueryRow(ctx, `
			INSERT INTO access_tokens (display_id, kind, token, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (display_id, kind) DO NOTHING
			RETURNING id
		`, token.DisplayID, string(token.Kind), token.Token, token.CreatedAt).Scan(&token.ID)
		if err == nil {
			if err := tx.Commit(ctx); err != nil {
				return "", fmt.Errorf("failed to commit token: %w", err)
			}
			return "", nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", tokenWriteError(err)
		}

		var previous string
		err = tx.QueryRow(ctx, `
			SELECT id, token
			FROM access_tokens
			WHERE display_id = $1 AND kind = $2
			FOR UPDATE
		`, token.DisplayID, string(token.Kind)).Scan(&token.ID, &previous)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to lock token: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE access_tokens
			SET token = $2, created_at = $3
			WHERE id = $1
		`, token.ID, token.Token, token.CreatedAt)
		if err != nil {
			return "", tokenWriteError(err)
		}
		if err := tx.Commit(ctx); err != nil {
			return "", fmt.Errorf("failed to commit token: %w", err)
		}
		return previous, nil
	}
	return "", fmt.Errorf("failed to upsert token: row kept disappearing")
}

func tokenWriteError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("token value: %w", ErrConflict)
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("display not found: %w", ErrNotFound)
	}
	return fmt.Errorf("failed to upsert token: %w", err)
}

// GetByToken retrieves a token by its value
func (r *TokenRepository) GetByToken(ctx context.Context, value string) (*models.AccessToken, error) {
	query := `
		SELECT id, display_id, kind, token, created_at
		FROM access_tokens
		WHERE token = $1
	`
	var token models.AccessToken
	var kind string
	err := r.db.QueryRow(ctx, query, value).Scan(
		&token.ID, &token.DisplayID, &kind, &token.Token, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	token.Kind = models.TokenKind(kind)
	return &token, nil
}

// ListByDisplay retrieves the tokens of a display ordered by kind
func (r *TokenRepository) ListByDisplay(ctx context.Context, displayID int64) ([]*models.AccessToken, error) {
	query := `
		SELECT id, display_id, kind, token, created_at
		FROM access_tokens
		WHERE display_id = $1
		ORDER BY kind
	`
	rows, err := r.db.Query(ctx, query, displayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.AccessToken
	for rows.Next() {
		var token models.AccessToken
		var kind string
		if err := rows.Scan(&token.ID, &token.DisplayID, &kind, &token.Token, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		token.Kind = models.TokenKind(kind)
		tokens = append(tokens, &token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}

	return tokens, nil
}

// DeleteByKind deletes the token of a kind for a display and returns its value
func (r *TokenRepository) DeleteByKind(ctx context.Context, displayID int64, kind models.TokenKind) (string, error) {
	query := `
		DELETE FROM access_tokens
		WHERE display_id = $1 AND kind = $2
		RETURNING token
	`
	var removed string
	err := r.db.QueryRow(ctx, query, displayID, string(kind)).Scan(&removed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("token not found: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to delete token: %w", err)
	}
	return removed, nil
}
