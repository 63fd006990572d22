package services

import (
	"context"
	"errors"
	"fmt"

	"memoryland-backend/internal/models"
	"memoryland-backend/internal/repository"
)

// SlotEngine places photos on display positions. Callers authorize the
// display before assigning.
type SlotEngine struct {
	displays repository.DisplayStore
	photos   repository.PhotoStore
	slots    repository.SlotStore
}

// NewSlotEngine creates a new slot engine
func NewSlotEngine(stores *repository.Stores) *SlotEngine {
	return &SlotEngine{
		displays: stores.Displays,
		photos:   stores.Photos,
		slots:    stores.Slots,
	}
}

// AssignSlot puts a photo at a position. An occupied position is replaced
// in place; the last writer wins.
func (e *SlotEngine) AssignSlot(ctx context.Context, displayID int64, position int, photoID int64) (*models.Slot, error) {
	display, err := e.displays.GetByID(ctx, displayID)
	if err != nil {
		return nil, notFound(err, "get display")
	}

	if position < 0 || position >= display.Type.Capacity {
		return nil, ErrInvalidPosition
	}

	photoOwner, err := e.photos.OwnerID(ctx, photoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to get photo owner: %w", err)
	}
	if photoOwner != display.OwnerID {
		return nil, ErrPhotoNotFound
	}

	slot := &models.Slot{DisplayID: displayID, Position: position, PhotoID: photoID}
	for attempt := 0; ; attempt++ {
		err = e.slots.Upsert(ctx, slot)
		if err == nil {
			return slot, nil
		}
		if errors.Is(err, repository.ErrConflict) && attempt == 0 {
			continue
		}
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, repository.ErrNotFound):
			// display or photo deleted underneath us
			return nil, ErrPhotoNotFound
		}
		return nil, fmt.Errorf("failed to assign slot: %w", err)
	}
}

// RemoveSlot deletes a slot owned by callerOwnerID. A missing slot is a
// no-op and returns nil, nil.
func (e *SlotEngine) RemoveSlot(ctx context.Context, slotID, callerOwnerID int64) (*models.Slot, error) {
	slot, err := e.slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	ownerID, err := e.slots.OwnerID(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get slot owner: %w", err)
	}
	if ownerID != callerOwnerID {
		return nil, ErrForbidden
	}

	if err := e.slots.Delete(ctx, slotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to delete slot: %w", err)
	}
	return slot, nil
}

// ListSlots returns the slots of a display ordered by position
func (e *SlotEngine) ListSlots(ctx context.Context, displayID int64) ([]*models.Slot, error) {
	slots, err := e.slots.ListByDisplay(ctx, displayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	if slots == nil {
		slots = []*models.Slot{}
	}
	return slots, nil
}
