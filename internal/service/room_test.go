package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/queue"
	"github.com/iliyamo/room-booking/internal/repository"
)

func newRoomFixture() (*RoomService, *memRooms, *recordingPublisher, *countingCache) {
	rooms := newMemRooms()
	rooms.profiles = newMemProfiles(repository.ProfileRecord{ID: tenant.ID, Role: model.RoleTenant})
	events := &recordingPublisher{}
	cache := &countingCache{}
	svc := NewRoomService(rooms, events, cache)
	svc.now = clock
	return svc, rooms, events, cache
}

func TestRoomWritesNeedOwner(t *testing.T) {
	svc, _, _, cache := newRoomFixture()
	ctx := context.Background()
	tests := []struct {
		name   string
		caller model.Identity
		want   error
	}{
		{"anonymous", model.Identity{}, apperr.ErrAuth},
		{"tenant", tenant, apperr.ErrForbidden},
		{"no role", guest, apperr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.caller, model.RoomDraft{Name: "Blue"}); !errors.Is(err, tt.want) {
				t.Errorf("create err = %v", err)
			}
			if err := svc.Delete(ctx, tt.caller, "r1"); !errors.Is(err, tt.want) {
				t.Errorf("delete err = %v", err)
			}
		})
	}
	if cache.n != 0 {
		t.Errorf("cache invalidated %d times on rejected writes", cache.n)
	}
}

func TestRoomLifecycle(t *testing.T) {
	svc, _, events, cache := newRoomFixture()
	ctx := context.Background()

	room, err := svc.Create(ctx, owner, model.RoomDraft{Name: "  Blue  ", Location: "2F", AssignedMonthlyTenantID: ptr("")})
	if err != nil {
		t.Fatal(err)
	}
	if room.Name != "Blue" || room.OwnerID != owner.ID || room.AssignedMonthlyTenantID != nil {
		t.Fatalf("created = %+v", room)
	}

	room, err = svc.Update(ctx, owner, room.ID, model.RoomDraft{Name: "Blue", AssignedMonthlyTenantID: ptr(tenant.ID)})
	if err != nil || room.AssignedMonthlyTenantID == nil || *room.AssignedMonthlyTenantID != tenant.ID {
		t.Fatalf("updated = %+v, %v", room, err)
	}

	mine, _ := svc.List(ctx, owner.ID)
	others, _ := svc.List(ctx, "someone-else")
	if len(mine) != 1 || len(others) != 0 {
		t.Errorf("owner filter: mine=%d others=%d", len(mine), len(others))
	}

	if err := svc.Delete(ctx, owner, room.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, room.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
	if cache.n != 3 {
		t.Errorf("cache invalidations = %d, want 3", cache.n)
	}
	want := []string{queue.KeyRoomCreated, queue.KeyRoomUpdated, queue.KeyRoomDeleted}
	if keys := events.keys(); !slices.Equal(keys, want) {
		t.Errorf("events = %v, want %v", keys, want)
	}
}

func TestRoomRejects(t *testing.T) {
	svc, rooms, _, _ := newRoomFixture()
	ctx := context.Background()
	rooms.rooms["theirs"] = model.Room{ID: "theirs", Name: "Red", OwnerID: "owner-2"}

	if _, err := svc.Create(ctx, owner, model.RoomDraft{Name: "   "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank name err = %v", err)
	}
	if _, err := svc.Create(ctx, owner, model.RoomDraft{Name: "Blue", AssignedMonthlyTenantID: ptr("ghost")}); !errors.Is(err, apperr.ErrReference) {
		t.Errorf("unknown tenant err = %v", err)
	}
	if _, err := svc.Update(ctx, owner, "theirs", model.RoomDraft{Name: "Mine now"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("foreign update err = %v", err)
	}
	if err := svc.Delete(ctx, owner, "theirs"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("foreign delete err = %v", err)
	}
	if err := svc.Delete(ctx, owner, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing delete err = %v", err)
	}
}
