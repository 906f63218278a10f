package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/availability"
	"github.com/iliyamo/room-booking/internal/credit"
	"github.com/iliyamo/room-booking/internal/diagnostics"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/queue"
	"github.com/iliyamo/room-booking/internal/repository"
)

// BookingRepository is the storage the booking procedures run on.
// repository.BookingRepo satisfies it.
type BookingRepository interface {
	ListByRoom(ctx context.Context, roomID string) ([]model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListAll(ctx context.Context) ([]model.Booking, error)
	CreateAndUpdateCredits(ctx context.Context, d model.BookingDraft, policy repository.CreditPolicy) (model.CreateResult, error)
	Cancel(ctx context.Context, bookingID string, caller model.Identity) (model.Booking, error)
	ExpirePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
}

// RoomLookup resolves a room id.
type RoomLookup interface {
	GetByID(ctx context.Context, id string) (model.Room, error)
}

// BookingOptions configures a BookingService.
type BookingOptions struct {
	Policy      repository.CreditPolicy
	PendingTTL  time.Duration
	Events      EventPublisher
	Diagnostics *diagnostics.Handle
	Now         func() time.Time
}

// BookingService exposes the atomic booking procedures and the read models
// derived from booking history.
type BookingService struct {
	repo  BookingRepository
	rooms RoomLookup
	opts  BookingOptions
	calc  availability.Calculator
	check *validator.Validate
}

// NewBookingService wires a BookingService.
func NewBookingService(repo BookingRepository, rooms RoomLookup, opts BookingOptions) *BookingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 48 * time.Hour
	}
	s := &BookingService{repo: repo, rooms: rooms, opts: opts, check: validator.New()}
	if opts.Diagnostics.Enabled() {
		s.calc.Observer = opts.Diagnostics
	}
	return s
}

// ListByRoom returns every booking of an existing room sorted by start_date.
func (s *BookingService) ListByRoom(ctx context.Context, roomID string) ([]model.Booking, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repo.ListByRoom(ctx, roomID)
}

// Calendar classifies every day of month for a room as seen from loc.
func (s *BookingService) Calendar(ctx context.Context, roomID string, month time.Time, loc *time.Location) ([]availability.Day, error) {
	bookings, err := s.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return s.calc.Month(month, bookings, s.opts.Now().In(loc)), nil
}

// Create validates the draft and runs create-booking-and-update-credits.
// The draft's user defaults to the caller; booking on behalf of someone
// else is an owner affordance.
func (s *BookingService) Create(ctx context.Context, caller model.Identity, d model.BookingDraft) (model.CreateResult, error) {
	if caller.ID == "" {
		return model.CreateResult{}, apperr.ErrAuth
	}
	if d.UserID == "" {
		d.UserID = caller.ID
	}
	if d.Status == "" {
		d.Status = model.StatusConfirmed
	}
	if err := s.check.Struct(d); err != nil {
		return model.CreateResult{}, apperr.Validation("%s", err.Error())
	}
	if p := d.Problem(); p != "" {
		return model.CreateResult{}, apperr.Validation("%s", p)
	}
	if d.UserID != caller.ID && !caller.IsOwner() {
		return model.CreateResult{}, apperr.ErrForbidden
	}

	res, err := s.repo.CreateAndUpdateCredits(ctx, d, s.opts.Policy)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.opts.Diagnostics.Conflict()
		}
		return model.CreateResult{}, fmt.Errorf("create booking: %w", err)
	}

	now := s.opts.Now()
	publish(s.opts.Events, queue.KeyBookingCreated, queue.NewBookingEvent(queue.KeyBookingCreated, model.Booking{
		ID: res.BookingID, RoomID: d.RoomID, UserID: d.UserID, StartDate: d.StartDate, EndDate: d.EndDate,
		Type: d.Type, Status: d.Status, CreditsUsed: res.CreditsUsed,
	}, caller.ID, now))
	return res, nil
}

// Cancel runs cancel-booking for the caller.
func (s *BookingService) Cancel(ctx context.Context, caller model.Identity, bookingID string) (model.Booking, error) {
	if caller.ID == "" {
		return model.Booking{}, apperr.ErrAuth
	}
	b, err := s.repo.Cancel(ctx, bookingID, caller)
	if err != nil {
		return model.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}
	publish(s.opts.Events, queue.KeyBookingCancelled, queue.NewBookingEvent(queue.KeyBookingCancelled, b, caller.ID, s.opts.Now()))
	return b, nil
}

// UserCredits is a user's credit position and the entries behind it.
type UserCredits struct {
	credit.Summary
	Statement []credit.Entry `json:"statement"`
}

// CreditsForUser projects the credits of one user.  Callers other than the
// user need the owner role.
func (s *BookingService) CreditsForUser(ctx context.Context, caller model.Identity, userID string) (UserCredits, error) {
	if caller.ID == "" {
		return UserCredits{}, apperr.ErrAuth
	}
	if userID == "" {
		userID = caller.ID
	}
	if userID != caller.ID && !caller.IsOwner() {
		return UserCredits{}, apperr.ErrForbidden
	}
	history, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return UserCredits{}, err
	}
	return UserCredits{Summary: credit.Project(history), Statement: credit.Statement(history)}, nil
}

// RoomCredits is the credit position accumulated on one room.
type RoomCredits struct {
	credit.Summary
	ByUser map[string]credit.Summary `json:"by_user"`
}

// CreditsForRoom projects the credits recorded on a room.  Non-owners only
// see their own share.
func (s *BookingService) CreditsForRoom(ctx context.Context, caller model.Identity, roomID string) (RoomCredits, error) {
	if caller.ID == "" {
		return RoomCredits{}, apperr.ErrAuth
	}
	bookings, err := s.ListByRoom(ctx, roomID)
	if err != nil {
		return RoomCredits{}, err
	}
	if !caller.IsOwner() {
		mine := make([]model.Booking, 0, len(bookings))
		for _, b := range bookings {
			if b.UserID == caller.ID {
				mine = append(mine, b)
			}
		}
		bookings = mine
	}
	return RoomCredits{Summary: credit.Project(bookings), ByUser: credit.ByUser(bookings)}, nil
}

// ExpirePending cancels pending bookings older than the configured TTL and
// returns how many were cancelled.
func (s *BookingService) ExpirePending(ctx context.Context) (int, error) {
	now := s.opts.Now()
	expired, err := s.repo.ExpirePending(ctx, now.Add(-s.opts.PendingTTL))
	if err != nil {
		return 0, fmt.Errorf("expire pending: %w", err)
	}
	for _, b := range expired {
		publish(s.opts.Events, queue.KeyBookingExpired, queue.NewBookingEvent(queue.KeyBookingExpired, b, "", now))
	}
	s.opts.Diagnostics.PendingExpired(len(expired))
	return len(expired), nil
}
