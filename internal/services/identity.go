package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"
)

// IdentityResolver maps verified claims onto user records
type IdentityResolver struct {
	users repository.UserStore
}

// NewIdentityResolver creates a new identity resolver
func NewIdentityResolver(users repository.UserStore) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// Resolve returns the user for claims, or nil when the claims carry no email
// or no such user exists.
func (r *IdentityResolver) Resolve(ctx context.Context, claims Claims) (*models.User, error) {
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return nil, nil
	}
	user, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ResolveOrProvision returns the user for claims, creating it on first
// sight. Concurrent first calls for one email converge on a single row.
func (r *IdentityResolver) ResolveOrProvision(ctx context.Context, claims Claims) (*models.User, error) {
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return nil, fmt.Errorf("email: %w", ErrClaimMissing)
	}

	user, err := r.Resolve(ctx, claims)
	if err != nil || user != nil {
		return user, err
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		return nil, fmt.Errorf("name: %w", ErrClaimMissing)
	}

	user = &models.User{
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := r.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// lost the race; the winner's row is the user
		existing, err := r.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read user: %w", err)
		}
		return existing, nil
	}
	return user, nil
}
