package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TokenService issues, rotates and validates display access tokens
type TokenService struct {
	displays repository.DisplayStore
	tokens   repository.TokenStore
	notifier DisplayNotifier
	newToken func() string
}

// NewTokenService creates a new token service
func NewTokenService(stores *repository.Stores, notifier DisplayNotifier) *TokenService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &TokenService{
		displays: stores.Displays,
		tokens:   stores.Tokens,
		notifier: notifier,
		newToken: uuid.NewString,
	}
}

func (s *TokenService) ownedDisplay(ctx context.Context, displayID, callerOwnerID int64) (*models.Display, error) {
	display, err := s.displays.GetByID(ctx, displayID)
	if err != nil {
		return nil, notFound(err, "get display")
	}
	if display.OwnerID != callerOwnerID {
		return nil, ErrForbidden
	}
	return display, nil
}

// Issue replaces the token of kind on a display with a fresh random one.
// The previous token stops validating immediately.
func (s *TokenService) Issue(ctx context.Context, displayID int64, kind models.TokenKind, callerOwnerID int64) (*models.AccessToken, error) {
	if !kind.Valid() {
		return nil, invalid("unknown token kind %q", kind)
	}
	if _, err := s.ownedDisplay(ctx, displayID, callerOwnerID); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		token := &models.AccessToken{
			DisplayID: displayID,
			Kind:      kind,
			Token:     s.newToken(),
			CreatedAt: time.Now(),
		}
		previous, err := s.tokens.Upsert(ctx, token)
		if err == nil {
			if previous != "" {
				s.notifier.TokenRevoked(displayID, previous)
			}
			log.Info().Int64("display_id", displayID).Str("kind", string(kind)).Msg("Access token issued")
			return token, nil
		}
		if errors.Is(err, repository.ErrConflict) && attempt == 0 {
			continue
		}
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
}

// Validate resolves a token value to its display and kind. Absent and
// malformed values are ErrInvalidToken. Kind is not checked here.
func (s *TokenService) Validate(ctx context.Context, value string) (*models.Display, models.TokenKind, error) {
	if _, err := uuid.Parse(value); err != nil {
		return nil, "", ErrInvalidToken
	}
	token, err := s.tokens.GetByToken(ctx, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidToken
		}
		return nil, "", fmt.Errorf("failed to get token: %w", err)
	}
	display, err := s.displays.GetByID(ctx, token.DisplayID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidToken
		}
		return nil, "", fmt.Errorf("failed to get display: %w", err)
	}
	return display, token.Kind, nil
}

// Revoke deletes the token of kind on a display. Revoking an absent token
// is a no-op.
func (s *TokenService) Revoke(ctx context.Context, displayID int64, kind models.TokenKind, callerOwnerID int64) error {
	if !kind.Valid() {
		return invalid("unknown token kind %q", kind)
	}
	if _, err := s.ownedDisplay(ctx, displayID, callerOwnerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	removed, err := s.tokens.DeleteByKind(ctx, displayID, kind)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.notifier.TokenRevoked(displayID, removed)
	return nil
}

// List returns the tokens of a display to its owner
func (s *TokenService) List(ctx context.Context, displayID, callerOwnerID int64) ([]*models.AccessToken, error) {
	if _, err := s.ownedDisplay(ctx, displayID, callerOwnerID); err != nil {
		return nil, err
	}
	tokens, err := s.tokens.ListByDisplay(ctx, displayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	if tokens == nil {
		tokens = []*models.AccessToken{}
	}
	return tokens, nil
}
