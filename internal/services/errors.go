package services

import (
	"errors"
	"fmt"

	"memoryland-backend/internal/repository"
)

var (
	// ErrUnauthenticated means no identity and no valid token were presented
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the caller does not own the targeted resource
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is a cross-owner write; it is an ErrUnauthorized
	ErrForbidden    = fmt.Errorf("forbidden: %w", ErrUnauthorized)
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrClaimMissing = errors.New("required claim missing")
	// ErrInvalidToken is an absent or malformed access token
	ErrInvalidToken = fmt.Errorf("invalid token: %w", ErrUnauthorized)
)

// ValidationError is a user-correctable input error
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidPosition = &ValidationError{Reason: "position is outside the display's slots"}
	ErrPhotoNotFound   = &ValidationError{Reason: "photo not found"}
)

// notFound converts a repository miss into ErrNotFound and wraps anything
// else with the failed action.
func notFound(err error, action string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
