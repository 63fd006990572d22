package services

import (
	"context"
	"fmt"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"
)

// ResourceKind names an owner-scoped entity
type ResourceKind string

const (
	ResourceAlbum   ResourceKind = "album"
	ResourcePhoto   ResourceKind = "photo"
	ResourceDisplay ResourceKind = "display"
	ResourceSlot    ResourceKind = "slot"
)

// ResourceRef points at one owner-scoped entity
type ResourceRef struct {
	Kind ResourceKind
	ID   int64
}

func albumRef(id int64) ResourceRef   { return ResourceRef{Kind: ResourceAlbum, ID: id} }
func photoRef(id int64) ResourceRef   { return ResourceRef{Kind: ResourcePhoto, ID: id} }
func displayRef(id int64) ResourceRef { return ResourceRef{Kind: ResourceDisplay, ID: id} }
func slotRef(id int64) ResourceRef    { return ResourceRef{Kind: ResourceSlot, ID: id} }

// Authorizer follows ownership chains (photo to album to user, slot to
// display to user) and fails closed.
type Authorizer struct {
	stores *repository.Stores
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(stores *repository.Stores) *Authorizer {
	return &Authorizer{stores: stores}
}

// OwnerOf returns the id of the user at the end of ref's ownership chain
func (a *Authorizer) OwnerOf(ctx context.Context, ref ResourceRef) (int64, error) {
	var (
		ownerID int64
		err     error
	)
	switch ref.Kind {
	case ResourceAlbum:
		ownerID, err = a.stores.Albums.OwnerID(ctx, ref.ID)
	case ResourcePhoto:
		ownerID, err = a.stores.Photos.OwnerID(ctx, ref.ID)
	case ResourceDisplay:
		ownerID, err = a.stores.Displays.OwnerID(ctx, ref.ID)
	case ResourceSlot:
		ownerID, err = a.stores.Slots.OwnerID(ctx, ref.ID)
	default:
		return 0, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
	if err != nil {
		return 0, notFound(err, "resolve "+string(ref.Kind)+" owner")
	}
	return ownerID, nil
}

// Authorize returns nil when identity owns ref, ErrNotFound when ref does
// not exist and ErrForbidden otherwise.
func (a *Authorizer) Authorize(ctx context.Context, identity models.Identity, ref ResourceRef) error {
	ownerID, err := a.OwnerOf(ctx, ref)
	if err != nil {
		return err
	}
	if ownerID != identity.UserID {
		return ErrForbidden
	}
	return nil
}
