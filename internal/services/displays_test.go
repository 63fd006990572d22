package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestGetDisplayScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	stranger := env.user(t, "eve@example.com")

	album := env.album(t, owner, "Vacation")
	beach := env.photo(t, owner, album.ID, "beach.jpg")
	summer := env.display(t, owner, "Summer", triptychType)

	_, err := env.displays.AssignSlot(ctx, owner, summer.ID, 0, beach.ID)
	require.NoError(t, err)

	view, err := env.displays.GetFullDisplay(ctx, summer.ID, Credential{Identity: &owner})
	require.NoError(t, err)
	require.Equal(t, "Summer", view.Name)
	require.Equal(t, 3, view.Type.Capacity)
	require.Len(t, view.Slots, 1)
	require.Equal(t, 0, view.Slots[0].Position)
	require.Equal(t, beach.ID, view.Slots[0].PhotoID)
	require.NotEmpty(t, view.Slots[0].URL)

	_, err = env.displays.GetFullDisplay(ctx, summer.ID, Credential{Identity: &stranger})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetDisplayWithPublicTokenMatchesOwnerView(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	album := env.album(t, owner, "Vacation")
	photo := env.photo(t, owner, album.ID, "beach.jpg")
	display := env.display(t, owner, "Summer", triptychType)
	_, err := env.displays.AssignSlot(ctx, owner, display.ID, 2, photo.ID)
	require.NoError(t, err)

	token, err := env.tokens.Issue(ctx, display.ID, models.TokenPublic, owner.UserID)
	require.NoError(t, err)

	ownerView, err := env.displays.GetFullDisplay(ctx, display.ID, Credential{Identity: &owner})
	require.NoError(t, err)
	publicView, err := env.displays.GetFullDisplay(ctx, display.ID, Credential{Token: token.Token})
	require.NoError(t, err)
	require.Equal(t, ownerView, publicView)
}

func TestGetDisplayCredentialMatrix(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	stranger := env.user(t, "eve@example.com")
	display := env.display(t, owner, "Summer", triptychType)
	otherDisplay := env.display(t, owner, "Winter", singleType)

	internal, err := env.tokens.Issue(ctx, display.ID, models.TokenInternal, owner.UserID)
	require.NoError(t, err)
	public, err := env.tokens.Issue(ctx, otherDisplay.ID, models.TokenPublic, owner.UserID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		displayID int64
		cred      Credential
		wantErr   error
	}{
		{name: "no credential", displayID: display.ID, wantErr: ErrUnauthenticated},
		{name: "missing display", displayID: 999_999, cred: Credential{Identity: &owner}, wantErr: ErrNotFound},
		{name: "foreign session", displayID: display.ID, cred: Credential{Identity: &stranger}, wantErr: ErrUnauthorized},
		{name: "malformed token", displayID: display.ID, cred: Credential{Token: "abc"}, wantErr: ErrUnauthorized},
		{name: "token of another display", displayID: display.ID, cred: Credential{Token: public.Token}, wantErr: ErrNotFound},
		{name: "internal token without session", displayID: display.ID, cred: Credential{Token: internal.Token}, wantErr: ErrUnauthorized},
		{name: "internal token with foreign session", displayID: display.ID, cred: Credential{Token: internal.Token, Identity: &stranger}, wantErr: ErrUnauthorized},
		{name: "internal token with owner session", displayID: display.ID, cred: Credential{Token: internal.Token, Identity: &owner}},
		{name: "public token", displayID: otherDisplay.ID, cred: Credential{Token: public.Token}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := env.displays.GetFullDisplay(ctx, tt.displayID, tt.cred)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.displayID, view.ID)
			require.NotNil(t, view.Slots)
		})
	}
}

func TestGetDisplayOmitsSlotsWithoutBlob(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	album := env.album(t, owner, "Vacation")
	kept := env.photo(t, owner, album.ID, "beach.jpg")
	lost := env.photo(t, owner, album.ID, "dunes.jpg")
	display := env.display(t, owner, "Summer", triptychType)

	_, err := env.displays.AssignSlot(ctx, owner, display.ID, 0, lost.ID)
	require.NoError(t, err)
	_, err = env.displays.AssignSlot(ctx, owner, display.ID, 1, kept.ID)
	require.NoError(t, err)

	// the blob disappears behind the broker's back before any URL was issued
	require.NoError(t, env.objects.Delete(ctx, storage.PadID(owner.UserID), photoKey(lost)))

	view, err := env.displays.GetFullDisplay(ctx, display.ID, Credential{Identity: &owner})
	require.NoError(t, err)
	require.Len(t, view.Slots, 1)
	require.Equal(t, 1, view.Slots[0].Position)
	require.Equal(t, kept.ID, view.Slots[0].PhotoID)
}

// slowBroker resolves URLs with random latency and fails for chosen keys
type slowBroker struct {
	PhotoBroker
	mu      sync.Mutex
	rng     *rand.Rand
	missing map[string]bool
	failing map[string]bool
}

func (b *slowBroker) ResolveViewURL(ctx context.Context, ownerID int64, key string) (string, bool, error) {
	b.mu.Lock()
	delay := time.Duration(b.rng.Intn(5)) * time.Millisecond
	b.mu.Unlock()
	time.Sleep(delay)
	if b.failing[key] {
		return "", false, fmt.Errorf("storage unavailable")
	}
	if b.missing[key] {
		return "", false, nil
	}
	return "https://signed/" + key, true, nil
}

func TestGetDisplayKeepsPositionOrderUnderFanOut(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	album := env.album(t, owner, "Vacation")
	display := env.display(t, owner, "Wall", galleryType)

	photos := make([]*models.Photo, 9)
	for i := range photos {
		photos[i] = env.photo(t, owner, album.ID, fmt.Sprintf("photo-%d.jpg", i))
	}
	// assign in reverse so insertion order differs from position order
	for position := 8; position >= 0; position-- {
		_, err := env.displays.AssignSlot(ctx, owner, display.ID, position, photos[position].ID)
		require.NoError(t, err)
	}

	b := &slowBroker{
		rng:     rand.New(rand.NewSource(1)),
		missing: map[string]bool{photoKey(photos[3]): true},
		failing: map[string]bool{photoKey(photos[6]): true},
	}
	svc := NewDisplayService(env.stores, env.authz, env.slots, env.tokens, b, nil, 3)

	view, err := svc.GetFullDisplay(ctx, display.ID, Credential{Identity: &owner})
	require.NoError(t, err)

	positions := make([]int, 0, len(view.Slots))
	for _, slot := range view.Slots {
		positions = append(positions, slot.Position)
		require.True(t, strings.HasSuffix(slot.URL, photoKey(photos[slot.Position])))
	}
	require.Equal(t, []int{0, 1, 2, 4, 5, 7, 8}, positions)
}

func TestCreateDisplayValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	env.display(t, owner, "Summer", triptychType)

	tests := []struct {
		name        string
		displayName string
		typeID      int64
	}{
		{name: "blank", displayName: "   ", typeID: singleType},
		{name: "too long", displayName: strings.Repeat("x", 51), typeID: singleType},
		{name: "duplicate", displayName: "Summer", typeID: singleType},
		{name: "unknown type", displayName: "Autumn", typeID: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.displays.CreateDisplay(ctx, owner, tt.displayName, tt.typeID)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Reason)
		})
	}

	other := env.user(t, "bob@example.com")
	_, err := env.displays.CreateDisplay(ctx, other, "Summer", singleType)
	require.NoError(t, err)
}

func TestGetDisplaysForOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	other := env.user(t, "bob@example.com")
	env.display(t, owner, "Winter", singleType)
	env.display(t, owner, "Summer", triptychType)
	env.display(t, other, "Theirs", singleType)

	infos, err := env.displays.GetDisplaysForOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "Summer", infos[0].Name)
	require.Equal(t, "triptych", infos[0].Type.Name)
	require.Equal(t, "Winter", infos[1].Name)

	types, err := env.displays.ListDisplayTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 3)
}

func TestRenameDisplay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	other := env.user(t, "bob@example.com")
	summer := env.display(t, owner, "Summer", triptychType)
	env.display(t, owner, "Winter", triptychType)

	require.NoError(t, env.displays.RenameDisplay(ctx, owner, summer.ID, "Spring"))
	require.True(t, env.notifier.has(MessageDisplayUpdated, summer.ID))

	var verr *ValidationError
	require.ErrorAs(t, env.displays.RenameDisplay(ctx, owner, summer.ID, "Winter"), &verr)
	require.ErrorIs(t, env.displays.RenameDisplay(ctx, other, summer.ID, "Mine"), ErrForbidden)
	require.ErrorIs(t, env.displays.RenameDisplay(ctx, owner, 999_999, "Gone"), ErrNotFound)
}

func TestDeleteDisplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	other := env.user(t, "bob@example.com")
	album := env.album(t, owner, "Vacation")
	photo := env.photo(t, owner, album.ID, "beach.jpg")
	display := env.display(t, owner, "Summer", triptychType)
	_, err := env.displays.AssignSlot(ctx, owner, display.ID, 0, photo.ID)
	require.NoError(t, err)
	token, err := env.tokens.Issue(ctx, display.ID, models.TokenPublic, owner.UserID)
	require.NoError(t, err)

	require.ErrorIs(t, env.displays.DeleteDisplay(ctx, other, display.ID), ErrForbidden)

	require.NoError(t, env.displays.DeleteDisplay(ctx, owner, display.ID))
	require.NoError(t, env.displays.DeleteDisplay(ctx, owner, display.ID))
	require.True(t, env.notifier.has(MessageDisplayDeleted, display.ID))

	_, _, err = env.tokens.Validate(ctx, token.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	// the photo itself survives
	_, err = env.photos.GetPhoto(ctx, owner, photo.ID)
	require.NoError(t, err)
}

func TestSlotOperationsThroughDisplayService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "ada@example.com")
	other := env.user(t, "bob@example.com")
	album := env.album(t, owner, "Vacation")
	photo := env.photo(t, owner, album.ID, "beach.jpg")
	display := env.display(t, owner, "Summer", triptychType)

	_, err := env.displays.AssignSlot(ctx, other, display.ID, 0, photo.ID)
	require.ErrorIs(t, err, ErrForbidden)

	slot, err := env.displays.AssignSlot(ctx, owner, display.ID, 0, photo.ID)
	require.NoError(t, err)
	require.True(t, env.notifier.has(MessageDisplayUpdated, display.ID))

	require.ErrorIs(t, env.displays.RemoveSlot(ctx, other, slot.ID), ErrForbidden)
	require.NoError(t, env.displays.RemoveSlot(ctx, owner, slot.ID))
	require.NoError(t, env.displays.RemoveSlot(ctx, owner, slot.ID))
}
