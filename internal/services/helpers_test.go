package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"memoryland-backend/internal/broker"
	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"
	"memoryland-backend/internal/storage"

	"github.com/stretchr/testify/require"
)

const (
	singleType   int64 = 1
	triptychType int64 = 2
	galleryType  int64 = 3
)

type testEnv struct {
	stores   *repository.Stores
	objects  *storage.MemoryStore
	broker   *broker.Broker
	notifier *recordingNotifier

	identity *IdentityResolver
	authz    *Authorizer
	slots    *SlotEngine
	tokens   *TokenService
	displays *DisplayService
	albums   *AlbumService
	photos   *PhotoService
	txs      *TransactionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores := repository.NewMemoryStores()
	objects := storage.NewMemoryStore()
	b := broker.New(objects, broker.NewMemoryURLCache(), broker.Options{
		URLLifetime: 4 * time.Hour,
		CacheTTL:    time.Hour,
	})
	notifier := &recordingNotifier{}

	authz := NewAuthorizer(stores)
	slots := NewSlotEngine(stores)
	tokens := NewTokenService(stores, notifier)
	photos := NewPhotoService(stores, authz, b, notifier, 4)

	return &testEnv{
		stores:   stores,
		objects:  objects,
		broker:   b,
		notifier: notifier,
		identity: NewIdentityResolver(stores.Users),
		authz:    authz,
		slots:    slots,
		tokens:   tokens,
		displays: NewDisplayService(stores, authz, slots, tokens, b, notifier, 4),
		albums:   NewAlbumService(stores, authz, b, notifier, 4),
		photos:   photos,
		txs:      NewTransactionService(stores, authz, photos),
	}
}

func (e *testEnv) user(t *testing.T, email string) models.Identity {
	t.Helper()
	u, err := e.identity.ResolveOrProvision(context.Background(), Claims{Email: email, Name: email})
	require.NoError(t, err)
	return u.Identity()
}

func (e *testEnv) album(t *testing.T, owner models.Identity, name string) *models.Album {
	t.Helper()
	a, err := e.albums.CreateAlbum(context.Background(), owner, name)
	require.NoError(t, err)
	return a
}

func (e *testEnv) photo(t *testing.T, owner models.Identity, albumID int64, fileName string) *models.Photo {
	t.Helper()
	p, err := e.photos.UploadPhoto(context.Background(), owner, albumID, fileName, tinyJPEG(t))
	require.NoError(t, err)
	return p
}

func (e *testEnv) display(t *testing.T, owner models.Identity, name string, typeID int64) *models.Display {
	t.Helper()
	d, err := e.displays.CreateDisplay(context.Background(), owner, name, typeID)
	require.NoError(t, err)
	return d
}

func tinyJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type notification struct {
	kind      string
	displayID int64
	token     string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) record(e notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) DisplayChanged(displayID int64) {
	n.record(notification{kind: MessageDisplayUpdated, displayID: displayID})
}

func (n *recordingNotifier) TokenRevoked(displayID int64, token string) {
	n.record(notification{kind: MessageTokenRevoked, displayID: displayID, token: token})
}

func (n *recordingNotifier) DisplayDeleted(displayID int64) {
	n.record(notification{kind: MessageDisplayDeleted, displayID: displayID})
}

func (n *recordingNotifier) has(kind string, displayID int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.kind == kind && e.displayID == displayID {
			return true
		}
	}
	return false
}
