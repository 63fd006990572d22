package repository

import (
	"context"
	"errors"
	"testing"

	"memoryland-backend/internal/models"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	stores  *Stores
	user    *models.User
	album   *models.Album
	photo   *models.Photo
	display *models.Display
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStores()

	user := &models.User{Email: "ada@example.com", Name: "Ada"}
	require.NoError(t, s.Users.Create(ctx, user))
	album := &models.Album{Name: "Vacation", OwnerID: user.ID}
	require.NoError(t, s.Albums.Create(ctx, album))
	photo := &models.Photo{Name: "beach", AlbumID: album.ID, ContentType: "image/jpeg"}
	require.NoError(t, s.Photos.Create(ctx, photo))
	display := &models.Display{Name: "Summer", OwnerID: user.ID, Type: models.DisplayType{ID: 2}}
	require.NoError(t, s.Displays.Create(ctx, display))

	return &fixture{stores: s, user: user, album: album, photo: photo, display: display}
}

func TestMemoryUniqueEmail(t *testing.T) {
	f := newFixture(t)
	err := f.stores.Users.Create(context.Background(), &models.User{Email: f.user.Email, Name: "Other"})
	require.True(t, errors.Is(err, ErrConflict))
}

func TestMemoryAlbumNameUniquePerOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.stores.Albums.Create(ctx, &models.Album{Name: "Vacation", OwnerID: f.user.ID})
	require.ErrorIs(t, err, ErrConflict)

	other := &models.User{Email: "bob@example.com", Name: "Bob"}
	require.NoError(t, f.stores.Users.Create(ctx, other))
	require.NoError(t, f.stores.Albums.Create(ctx, &models.Album{Name: "Vacation", OwnerID: other.ID}))
}

func TestMemoryDisplayCreateFillsType(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, "triptych", f.display.Type.Name)
	require.Equal(t, 3, f.display.Type.Capacity)

	err := f.stores.Displays.Create(context.Background(), &models.Display{
		Name: "Bad", OwnerID: f.user.ID, Type: models.DisplayType{ID: 99},
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySlotUpsertReplacesPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	second := &models.Photo{Name: "dunes", AlbumID: f.album.ID, ContentType: "image/png"}
	require.NoError(t, f.stores.Photos.Create(ctx, second))

	first := &models.Slot{DisplayID: f.display.ID, Position: 1, PhotoID: f.photo.ID}
	require.NoError(t, f.stores.Slots.Upsert(ctx, first))
	replaced := &models.Slot{DisplayID: f.display.ID, Position: 1, PhotoID: second.ID}
	require.NoError(t, f.stores.Slots.Upsert(ctx, replaced))
	require.Equal(t, first.ID, replaced.ID)

	require.NoError(t, f.stores.Slots.Upsert(ctx, &models.Slot{DisplayID: f.display.ID, Position: 0, PhotoID: f.photo.ID}))

	slots, err := f.stores.Slots.ListByDisplay(ctx, f.display.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, 0, slots[0].Position)
	require.Equal(t, 1, slots[1].Position)
	require.Equal(t, second.ID, slots[1].PhotoID)
}

func TestMemoryListSlotsEmpty(t *testing.T) {
	f := newFixture(t)
	slots, err := f.stores.Slots.ListByDisplay(context.Background(), f.display.ID)
	require.NoError(t, err)
	require.NotNil(t, slots)
	require.Empty(t, slots)
}

func TestMemoryTokenUpsertReturnsPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	previous, err := f.stores.Tokens.Upsert(ctx, &models.AccessToken{DisplayID: f.display.ID, Kind: models.TokenPublic, Token: "one"})
	require.NoError(t, err)
	require.Empty(t, previous)

	previous, err = f.stores.Tokens.Upsert(ctx, &models.AccessToken{DisplayID: f.display.ID, Kind: models.TokenPublic, Token: "two"})
	require.NoError(t, err)
	require.Equal(t, "one", previous)

	_, err = f.stores.Tokens.GetByToken(ctx, "one")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.stores.Tokens.Upsert(ctx, &models.AccessToken{DisplayID: f.display.ID, Kind: models.TokenInternal, Token: "two"})
	require.ErrorIs(t, err, ErrConflict)

	removed, err := f.stores.Tokens.DeleteByKind(ctx, f.display.ID, models.TokenPublic)
	require.NoError(t, err)
	require.Equal(t, "two", removed)
	_, err = f.stores.Tokens.DeleteByKind(ctx, f.display.ID, models.TokenPublic)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOwnerChains(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	slot := &models.Slot{DisplayID: f.display.ID, Position: 0, PhotoID: f.photo.ID}
	require.NoError(t, f.stores.Slots.Upsert(ctx, slot))

	owner, err := f.stores.Photos.OwnerID(ctx, f.photo.ID)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, owner)

	owner, err = f.stores.Slots.OwnerID(ctx, slot.ID)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, owner)
}

func TestMemoryCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	slot := &models.Slot{DisplayID: f.display.ID, Position: 0, PhotoID: f.photo.ID}
	require.NoError(t, f.stores.Slots.Upsert(ctx, slot))
	_, err := f.stores.Tokens.Upsert(ctx, &models.AccessToken{DisplayID: f.display.ID, Kind: models.TokenPublic, Token: "t"})
	require.NoError(t, err)
	require.NoError(t, f.stores.Transactions.Create(ctx, &models.Transaction{UserID: f.user.ID, AlbumID: f.album.ID}))

	require.NoError(t, f.stores.Albums.Delete(ctx, f.album.ID))
	_, err = f.stores.Photos.GetByID(ctx, f.photo.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.stores.Slots.GetByID(ctx, slot.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.stores.Transactions.GetByUser(ctx, f.user.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.stores.Users.Delete(ctx, f.user.ID))
	_, err = f.stores.Displays.GetByID(ctx, f.display.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.stores.Tokens.GetByToken(ctx, "t")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOneTransactionPerUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.stores.Transactions.Create(ctx, &models.Transaction{UserID: f.user.ID, AlbumID: f.album.ID}))
	err := f.stores.Transactions.Create(ctx, &models.Transaction{UserID: f.user.ID, AlbumID: f.album.ID})
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, f.stores.Transactions.DeleteByUser(ctx, f.user.ID))
	require.ErrorIs(t, f.stores.Transactions.DeleteByUser(ctx, f.user.ID), ErrNotFound)
}
