package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultFanOut = 8

// PhotoBroker is the URL broker as the services use it
type PhotoBroker interface {
	ResolveViewURL(ctx context.Context, ownerID int64, key string) (string, bool, error)
	UploadBytes(ctx context.Context, ownerID int64, key string, data []byte, contentType string) error
	DeleteResources(ctx context.Context, ownerID int64, keys []string) error
}

// Credential is what a display viewer presents: a resolved session
// identity, a bearer token, or both.
type Credential struct {
	Identity *models.Identity
	Token    string
}

// DisplayService assembles displays for viewers and manages them for owners
type DisplayService struct {
	stores   *repository.Stores
	authz    *Authorizer
	slots    *SlotEngine
	tokens   *TokenService
	broker   PhotoBroker
	notifier DisplayNotifier
	fanOut   int
}

// NewDisplayService creates a new display service
func NewDisplayService(
	stores *repository.Stores,
	authz *Authorizer,
	slots *SlotEngine,
	tokens *TokenService,
	broker PhotoBroker,
	notifier DisplayNotifier,
	fanOut int,
) *DisplayService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	return &DisplayService{
		stores:   stores,
		authz:    authz,
		slots:    slots,
		tokens:   tokens,
		broker:   broker,
		notifier: notifier,
		fanOut:   fanOut,
	}
}

// AuthorizeView checks that cred may view a display and returns it.
// Public tokens are bearer capabilities; internal tokens also need the
// owner's session.
func (s *DisplayService) AuthorizeView(ctx context.Context, displayID int64, cred Credential) (*models.Display, error) {
	if cred.Token != "" {
		display, kind, err := s.tokens.Validate(ctx, cred.Token)
		if err != nil {
			return nil, err
		}
		if display.ID != displayID {
			return nil, ErrNotFound
		}
		if kind == models.TokenInternal && (cred.Identity == nil || cred.Identity.UserID != display.OwnerID) {
			return nil, ErrUnauthorized
		}
		return display, nil
	}

	if cred.Identity == nil {
		return nil, ErrUnauthenticated
	}
	display, err := s.stores.Displays.GetByID(ctx, displayID)
	if err != nil {
		return nil, notFound(err, "get display")
	}
	if display.OwnerID != cred.Identity.UserID {
		return nil, ErrUnauthorized
	}
	return display, nil
}

// GetFullDisplay returns the display with a signed URL per occupied slot, in
// position order. Slots whose photo cannot be resolved are left out.
func (s *DisplayService) GetFullDisplay(ctx context.Context, displayID int64, cred Credential) (*models.DisplayView, error) {
	display, err := s.AuthorizeView(ctx, displayID, cred)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.ListSlots(ctx, display.ID)
	if err != nil {
		return nil, err
	}

	resolved := make([]*models.SlotView, len(slots))
	var g errgroup.Group
	g.SetLimit(s.fanOut)
	for i, slot := range slots {
		g.Go(func() error {
			url, ok := s.resolveSlot(ctx, display.OwnerID, slot)
			if ok {
				resolved[i] = &models.SlotView{
					SlotID:   slot.ID,
					Position: slot.Position,
					PhotoID:  slot.PhotoID,
					URL:      url,
				}
			}
			return nil
		})
	}
	// per-slot failures are absorbed above; Wait only joins
	g.Wait()

	view := &models.DisplayView{
		ID:    display.ID,
		Name:  display.Name,
		Type:  display.Type,
		Slots: make([]models.SlotView, 0, len(slots)),
	}
	for _, sv := range resolved {
		if sv != nil {
			view.Slots = append(view.Slots, *sv)
		}
	}
	return view, nil
}

func (s *DisplayService) resolveSlot(ctx context.Context, ownerID int64, slot *models.Slot) (string, bool) {
	photo, err := s.stores.Photos.GetByID(ctx, slot.PhotoID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Int64("slot_id", slot.ID).Int64("photo_id", slot.PhotoID).Msg("Failed to load slot photo")
		}
		return "", false
	}
	url, ok, err := s.broker.ResolveViewURL(ctx, ownerID, photoKey(photo))
	if err != nil {
		log.Warn().Err(err).Int64("slot_id", slot.ID).Int64("photo_id", slot.PhotoID).Msg("Failed to resolve slot URL")
		return "", false
	}
	return url, ok
}

// GetDisplaysForOwner lists the displays of the caller
func (s *DisplayService) GetDisplaysForOwner(ctx context.Context, identity models.Identity) ([]models.DisplayInfo, error) {
	displays, err := s.stores.Displays.ListByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list displays: %w", err)
	}
	infos := make([]models.DisplayInfo, 0, len(displays))
	for _, d := range displays {
		infos = append(infos, models.DisplayInfo{ID: d.ID, Name: d.Name, Type: d.Type})
	}
	return infos, nil
}

// ListDisplayTypes returns the display types ordered by id
func (s *DisplayService) ListDisplayTypes(ctx context.Context) ([]*models.DisplayType, error) {
	types, err := s.stores.DisplayTypes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list display types: %w", err)
	}
	return types, nil
}

// CreateDisplay creates a display of a type for the caller
func (s *DisplayService) CreateDisplay(ctx context.Context, identity models.Identity, name string, typeID int64) (*models.Display, error) {
	if err := validateDisplayName(name); err != nil {
		return nil, err
	}
	displayType, err := s.stores.DisplayTypes.GetByID(ctx, typeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("display type %d doesn't exist", typeID)
		}
		return nil, fmt.Errorf("failed to get display type: %w", err)
	}

	display := &models.Display{
		Name:      name,
		OwnerID:   identity.UserID,
		Type:      *displayType,
		CreatedAt: time.Now(),
	}
	if err := s.stores.Displays.Create(ctx, display); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalid("display name already exists")
		}
		return nil, fmt.Errorf("failed to create display: %w", err)
	}
	return display, nil
}

// RenameDisplay renames one of the caller's displays
func (s *DisplayService) RenameDisplay(ctx context.Context, identity models.Identity, displayID int64, name string) error {
	if err := validateDisplayName(name); err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, identity, displayRef(displayID)); err != nil {
		return err
	}
	if err := s.stores.Displays.Rename(ctx, displayID, name); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return invalid("display name already exists")
		}
		return notFound(err, "rename display")
	}
	s.notifier.DisplayChanged(displayID)
	return nil
}

// DeleteDisplay deletes one of the caller's displays with its slots and
// tokens. A missing display is not an error.
func (s *DisplayService) DeleteDisplay(ctx context.Context, identity models.Identity, displayID int64) error {
	if err := s.authz.Authorize(ctx, identity, displayRef(displayID)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.stores.Displays.Delete(ctx, displayID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete display: %w", err)
	}
	s.notifier.DisplayDeleted(displayID)
	log.Info().Int64("display_id", displayID).Int64("user_id", identity.UserID).Msg("Display deleted")
	return nil
}

// AssignSlot places one of the caller's photos on one of their displays
func (s *DisplayService) AssignSlot(ctx context.Context, identity models.Identity, displayID int64, position int, photoID int64) (*models.Slot, error) {
	if err := s.authz.Authorize(ctx, identity, displayRef(displayID)); err != nil {
		return nil, err
	}
	slot, err := s.slots.AssignSlot(ctx, displayID, position, photoID)
	if err != nil {
		return nil, err
	}
	s.notifier.DisplayChanged(displayID)
	return slot, nil
}

// RemoveSlot clears a slot. A missing slot is not an error.
func (s *DisplayService) RemoveSlot(ctx context.Context, identity models.Identity, slotID int64) error {
	slot, err := s.slots.RemoveSlot(ctx, slotID, identity.UserID)
	if err != nil {
		return err
	}
	if slot != nil {
		s.notifier.DisplayChanged(slot.DisplayID)
	}
	return nil
}
