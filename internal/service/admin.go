package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/credit"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/queue"
	"github.com/iliyamo/room-booking/internal/repository"
	"github.com/iliyamo/room-booking/internal/utils"
)

// ProfileRepository stores profiles and their credentials.
// repository.ProfileRepo satisfies it.
type ProfileRepository interface {
	Create(ctx context.Context, p repository.ProfileRecord, password string, cost int) (string, error)
	GetByEmail(ctx context.Context, email string) (repository.ProfileRecord, error)
	GetByPhone(ctx context.Context, phone string) (repository.ProfileRecord, error)
	GetByID(ctx context.Context, id string) (repository.ProfileRecord, error)
	List(ctx context.Context) ([]repository.ProfileRecord, error)
	ListAuthUsers(ctx context.Context) ([]model.AuthUser, error)
	UpdatePassword(ctx context.Context, id, password string, cost int) error
	DeleteWithRelated(ctx context.Context, id, today string) error
}

// AdminService backs the owner's user management page.
type AdminService struct {
	profiles   ProfileRepository
	bookings   BookingRepository
	events     EventPublisher
	bcryptCost int
	now        func() time.Time
}

// NewAdminService wires an AdminService.  events may be nil.
func NewAdminService(profiles ProfileRepository, bookings BookingRepository, events EventPublisher, bcryptCost int) *AdminService {
	return &AdminService{profiles: profiles, bookings: bookings, events: events, bcryptCost: bcryptCost, now: time.Now}
}

// ListUsers returns every profile with its credit projection.
func (s *AdminService) ListUsers(ctx context.Context, caller model.Identity) ([]model.UserWithCredits, error) {
	if err := requireOwner(caller); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	totals := credit.ByUser(history)
	out := make([]model.UserWithCredits, 0, len(profiles))
	for _, p := range profiles {
		sum := totals[p.ID]
		out = append(out, model.UserWithCredits{
			Profile:            p.Profile(),
			Phone:              p.Phone,
			TotalCreditsEarned: sum.Earned,
			TotalCreditsUsed:   sum.Used,
			AvailableCredits:   sum.Available,
		})
	}
	return out, nil
}

// ListAuthUsers is the list-all-auth-users procedure.
func (s *AdminService) ListAuthUsers(ctx context.Context, caller model.Identity) ([]model.AuthUser, error) {
	if err := requireOwner(caller); err != nil {
		return nil, err
	}
	return s.profiles.ListAuthUsers(ctx)
}

// DeleteUser runs delete-user-and-profile.  Owners cannot delete
// themselves.
func (s *AdminService) DeleteUser(ctx context.Context, caller model.Identity, id string) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	if id == caller.ID {
		return apperr.Validation("owners cannot delete their own account")
	}
	today := s.now().UTC().Format(model.DateLayout)
	if err := s.profiles.DeleteWithRelated(ctx, id, today); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	publish(s.events, queue.KeyUserDeleted, queue.RemovalEvent{
		Event: queue.KeyUserDeleted, ID: id, ActorID: caller.ID, OccurredAt: s.now().UTC(),
	})
	return nil
}

// UpdatePassword runs update-user-password on behalf of an owner.
func (s *AdminService) UpdatePassword(ctx context.Context, caller model.Identity, id, password string) error {
	if err := requireOwner(caller); err != nil {
		return err
	}
	if err := utils.CheckPassword(password); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if err := s.profiles.UpdatePassword(ctx, id, password, s.bcryptCost); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
