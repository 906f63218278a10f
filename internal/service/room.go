package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/queue"
)

// RoomRepository is the storage of the room directory.
// repository.RoomRepo satisfies it.
type RoomRepository interface {
	List(ctx context.Context) ([]model.Room, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Room, error)
	GetByID(ctx context.Context, id string) (model.Room, error)
	Create(ctx context.Context, d model.RoomDraft) (model.Room, error)
	Update(ctx context.Context, id, ownerID string, d model.RoomDraft) (model.Room, error)
	DeleteWithRelated(ctx context.Context, id, ownerID string) (int64, error)
}

// RoomService is the room directory.  Reads are public; writes need the
// owner role and, for existing rooms, ownership of the room.
type RoomService struct {
	repo   RoomRepository
	events EventPublisher
	cache  CacheInvalidator
	check  *validator.Validate
	now    func() time.Time
}

// NewRoomService wires a RoomService.  events and cache may be nil.
func NewRoomService(repo RoomRepository, events EventPublisher, cache CacheInvalidator) *RoomService {
	return &RoomService{repo: repo, events: events, cache: cache, check: validator.New(), now: time.Now}
}

// List returns all rooms, or only those of ownerID when it is set.
func (s *RoomService) List(ctx context.Context, ownerID string) ([]model.Room, error) {
	if ownerID != "" {
		return s.repo.ListByOwner(ctx, ownerID)
	}
	return s.repo.List(ctx)
}

// Get returns one room or ErrNotFound.
func (s *RoomService) Get(ctx context.Context, id string) (model.Room, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RoomService) validate(d *model.RoomDraft) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Location = strings.TrimSpace(d.Location)
	if d.AssignedMonthlyTenantID != nil && strings.TrimSpace(*d.AssignedMonthlyTenantID) == "" {
		d.AssignedMonthlyTenantID = nil
	}
	if err := s.check.Struct(d); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

// Create adds a room owned by the caller.
func (s *RoomService) Create(ctx context.Context, caller model.Identity, d model.RoomDraft) (model.Room, error) {
	if err := requireOwner(caller); err != nil {
		return model.Room{}, err
	}
	if err := s.validate(&d); err != nil {
		return model.Room{}, err
	}
	d.OwnerID = caller.ID
	room, err := s.repo.Create(ctx, d)
	if err != nil {
		return model.Room{}, fmt.Errorf("create room: %w", err)
	}
	invalidate(s.cache)
	publish(s.events, queue.KeyRoomCreated, queue.NewRoomEvent(queue.KeyRoomCreated, room, caller.ID, s.now()))
	return room, nil
}

// Update replaces the editable fields of a room the caller owns.
func (s *RoomService) Update(ctx context.Context, caller model.Identity, id string, d model.RoomDraft) (model.Room, error) {
	if err := requireOwner(caller); err != nil {
		return model.Room{}, err
	}
	if err := s.validate(&d); err != nil {
		return model.Room{}, err
	}
	room, err := s.repo.Update(ctx, id, caller.ID, d)
	if err != nil {
		return model.Room{}, fmt.Errorf("update room: %w", err)
	}
	invalidate(s.cache)
	publish(s.events, queue.KeyRoomUpdated, queue.NewRoomEvent(queue.KeyRoomUpdated, room, caller.ID, s.now()))
	return room, nil
}

// Delete runs delete-room-and-related-data for a room the caller owns.
func (s *RoomService) Delete(ctx context.Context, caller model.Identity, id string) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	removed, err := s.repo.DeleteWithRelated(ctx, id, caller.ID)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	invalidate(s.cache)
	publish(s.events, queue.KeyRoomDeleted, queue.RemovalEvent{
		Event: queue.KeyRoomDeleted, ID: id, ActorID: caller.ID, Removed: removed, OccurredAt: s.now().UTC(),
	})
	return nil
}
