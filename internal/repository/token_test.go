package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireTokenChain issues tokens concurrently for one (display, kind) and
// checks that the reported previous values form a single chain: every
// replaced token is reported exactly once.
func requireTokenChain(t *testing.T, tokens TokenStore, displayID int64) {
	t.Helper()
	ctx := context.Background()
	const issuers = 16
	run := time.Now().UnixNano()

	var mu sync.Mutex
	previous := make(map[string]int)
	issued := make([]string, 0, issuers)

	var wg sync.WaitGroup
	for i := 0; i < issuers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := fmt.Sprintf("chain-%d-%d", run, i)
			prev, err := tokens.Upsert(ctx, &models.AccessToken{
				DisplayID: displayID,
				Kind:      models.TokenPublic,
				Token:     value,
				CreatedAt: time.Now(),
			})
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			previous[prev]++
			issued = append(issued, value)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, previous[""], "exactly one issuer found no token")

	list, err := tokens.ListByDisplay(ctx, displayID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	current := list[0].Token

	for _, value := range issued {
		if value == current {
			require.Zero(t, previous[value], "the current token was never replaced")
			continue
		}
		require.Equal(t, 1, previous[value], "token %s replaced exactly once", value)
	}
}

func TestMemoryTokenUpsertConcurrentChain(t *testing.T) {
	f := newFixture(t)
	requireTokenChain(t, f.stores.Tokens, f.display.ID)
}

// Runs against a real database when MEMORYLAND_TEST_DSN is set
func TestPostgresTokenUpsertConcurrentChain(t *testing.T) {
	dsn := os.Getenv("MEMORYLAND_TEST_DSN")
	if dsn == "" {
		t.Skip("MEMORYLAND_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, Migrate(ctx, db))

	stores := NewPostgresStores(db)
	user := &models.User{
		Email:     fmt.Sprintf("chain-%d@example.com", time.Now().UnixNano()),
		Name:      "Chain",
		CreatedAt: time.Now(),
	}
	require.NoError(t, stores.Users.Create(ctx, user))
	t.Cleanup(func() { stores.Users.Delete(context.Background(), user.ID) })

	display := &models.Display{Name: "Chain", OwnerID: user.ID, Type: models.DisplayType{ID: 2}}
	require.NoError(t, stores.Displays.Create(ctx, display))
	t.Cleanup(func() { stores.Displays.Delete(context.Background(), display.ID) })

	requireTokenChain(t, stores.Tokens, display.ID)
}
