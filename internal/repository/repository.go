package repository

import (
	"context"

	"memoryland-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore persists users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

// AlbumStore persists albums
type AlbumStore interface {
	Create(ctx context.Context, album *models.Album) error
	GetByID(ctx context.Context, id int64) (*models.Album, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Album, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	OwnerID(ctx context.Context, id int64) (int64, error)
}

// PhotoStore persists photo metadata
type PhotoStore interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id int64) (*models.Photo, error)
	ListByAlbum(ctx context.Context, albumID int64) ([]*models.Photo, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	OwnerID(ctx context.Context, id int64) (int64, error)
}

// DisplayTypeStore reads display type reference data
type DisplayTypeStore interface {
	List(ctx context.Context) ([]*models.DisplayType, error)
	GetByID(ctx context.Context, id int64) (*models.DisplayType, error)
}

// DisplayStore persists displays
type DisplayStore interface {
	Create(ctx context.Context, display *models.Display) error
	GetByID(ctx context.Context, id int64) (*models.Display, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Display, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	OwnerID(ctx context.Context, id int64) (int64, error)
}

// SlotStore persists display slots. Upsert is keyed by (display, position).
type SlotStore interface {
	Upsert(ctx context.Context, slot *models.Slot) error
	GetByID(ctx context.Context, id int64) (*models.Slot, error)
	ListByDisplay(ctx context.Context, displayID int64) ([]*models.Slot, error)
	Delete(ctx context.Context, id int64) error
	OwnerID(ctx context.Context, id int64) (int64, error)
}

// TokenStore persists access tokens. Upsert is keyed by (display, kind) and
// returns the token value it replaced, if any.
type TokenStore interface {
	Upsert(ctx context.Context, token *models.AccessToken) (previous string, err error)
	GetByToken(ctx context.Context, token string) (*models.AccessToken, error)
	ListByDisplay(ctx context.Context, displayID int64) ([]*models.AccessToken, error)
	DeleteByKind(ctx context.Context, displayID int64, kind models.TokenKind) (removed string, err error)
}

// TransactionStore persists upload transactions, at most one per user
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByUser(ctx context.Context, userID int64) (*models.Transaction, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

// Stores bundles every store the services depend on
type Stores struct {
	Users        UserStore
	Albums       AlbumStore
	Photos       PhotoStore
	DisplayTypes DisplayTypeStore
	Displays     DisplayStore
	Slots        SlotStore
	Tokens       TokenStore
	Transactions TransactionStore
}

// NewPostgresStores creates stores backed by PostgreSQL
func NewPostgresStores(db *pgxpool.Pool) *Stores {
	return &Stores{
		Users:        NewUserRepository(db),
		Albums:       NewAlbumRepository(db),
		Photos:       NewPhotoRepository(db),
		DisplayTypes: NewDisplayTypeRepository(db),
		Displays:     NewDisplayRepository(db),
		Slots:        NewSlotRepository(db),
		Tokens:       NewTokenRepository(db),
		Transactions: NewTransactionRepository(db),
	}
}
