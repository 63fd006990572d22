package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestResolveWithoutEmailIsUnauthenticated(t *testing.T) {
	r := NewIdentityResolver(repository.NewMemoryStores().Users)

	user, err := r.Resolve(context.Background(), Claims{Name: "Ada"})
	require.NoError(t, err)
	require.Nil(t, user)

	user, err = r.Resolve(context.Background(), Claims{Email: "nobody@example.com"})
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestResolveOrProvisionRequiresClaims(t *testing.T) {
	r := NewIdentityResolver(repository.NewMemoryStores().Users)

	_, err := r.ResolveOrProvision(context.Background(), Claims{Name: "Ada"})
	require.ErrorIs(t, err, ErrClaimMissing)

	_, err = r.ResolveOrProvision(context.Background(), Claims{Email: "ada@example.com"})
	require.ErrorIs(t, err, ErrClaimMissing)
}

func TestResolveOrProvisionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewIdentityResolver(repository.NewMemoryStores().Users)

	first, err := r.ResolveOrProvision(ctx, Claims{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)

	// an existing user resolves even when the name claim is gone
	second, err := r.ResolveOrProvision(ctx, Claims{Email: "ada@example.com"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	resolved, err := r.Resolve(ctx, Claims{Email: "ada@example.com"})
	require.NoError(t, err)
	require.Equal(t, first.ID, resolved.ID)
}

func TestResolveOrProvisionConcurrent(t *testing.T) {
	ctx := context.Background()
	r := NewIdentityResolver(repository.NewMemoryStores().Users)

	const callers = 16
	ids := make([]int64, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := r.ResolveOrProvision(ctx, Claims{Email: "race@example.com", Name: "Race"})
			errs[i] = err
			if err == nil {
				ids[i] = u.ID
			}
		}()
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
}

// racingUsers lets another caller win the insert between our read and write
type racingUsers struct {
	repository.UserStore
}

func (r racingUsers) Create(ctx context.Context, user *models.User) error {
	winner := &models.User{Email: user.Email, Name: "Winner", CreatedAt: time.Now()}
	if err := r.UserStore.Create(ctx, winner); err != nil {
		return err
	}
	return fmt.Errorf("user email %q: %w", user.Email, repository.ErrConflict)
}

func TestResolveOrProvisionRereadsOnConflict(t *testing.T) {
	r := NewIdentityResolver(racingUsers{repository.NewMemoryStores().Users})

	user, err := r.ResolveOrProvision(context.Background(), Claims{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	require.Equal(t, "Winner", user.Name)
}

func TestClaimsVerifier(t *testing.T) {
	v := NewClaimsVerifier("secret", "memoryland")

	token, err := v.Sign(Claims{Email: "ada@example.com", Name: "Ada"}, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, Claims{Email: "ada@example.com", Name: "Ada"}, claims)

	_, err = NewClaimsVerifier("other", "memoryland").Verify(token)
	require.Error(t, err)

	_, err = NewClaimsVerifier("secret", "someone-else").Verify(token)
	require.Error(t, err)

	expired, err := v.Sign(Claims{Email: "ada@example.com"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.Error(t, err)

	_, err = v.Verify("not-a-jwt")
	require.Error(t, err)
}
