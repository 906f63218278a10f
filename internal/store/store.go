// Package store keeps a client-side, per-room view of bookings that reflects
// user intent immediately and reconciles it with the backend's answer.
//
// Every local entry carries a correlation id and a state.  A create inserts
// a pending entry under a client-generated id, then either commits it under
// the server id or rolls it back.  A cancel flips the status to cancelled
// while the call is in flight and restores the previous status when the
// backend refuses.  The backend's atomic procedures are the only source of
// correctness; the store never locks anything remote.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/availability"
	"github.com/iliyamo/room-booking/internal/credit"
	"github.com/iliyamo/room-booking/internal/model"
)

// DefaultTimeout bounds every remote call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Backend is the set of atomic remote procedures the store relies on.
type Backend interface {
	ListBookings(ctx context.Context, roomID string) ([]model.Booking, error)
	CreateBooking(ctx context.Context, draft model.BookingDraft) (model.CreateResult, error)
	CancelBooking(ctx context.Context, bookingID string) (model.Booking, error)
}

// Identity reports the current user.  It returns (nil, nil) when nobody is
// signed in.
type Identity interface {
	CurrentUser(ctx context.Context) (*model.Identity, error)
}

// RollbackRecorder is told about every reverted optimistic mutation.
// diagnostics.Handle satisfies it.
type RollbackRecorder interface {
	Rollback(op, kind string)
}

// State is the reconciliation state of one local entry.
type State string

const (
	StatePending    State = "pending"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// Entry is a booking as the store currently believes it to be.
type Entry struct {
	CorrelationID string        `json:"correlation_id"`
	Op            string        `json:"op"`
	State         State         `json:"state"`
	Booking       model.Booking `json:"booking"`
	Err           string        `json:"error,omitempty"`

	// landed is set on an in-flight create whose server row a refetch
	// already brought in; the entry stays hidden until the call returns.
	landed bool
}

// Options tunes a Store.
type Options struct {
	Timeout     time.Duration
	Now         func() time.Time
	Diagnostics RollbackRecorder
	Calculator  availability.Calculator
}

// Store is the local projection of one room's bookings.  It is safe for
// concurrent use; the lock is never held across a remote call.
type Store struct {
	roomID  string
	backend Backend
	auth    Identity
	opts    Options
	check   *validator.Validate

	mu      sync.Mutex
	entries []*Entry
	loaded  bool
}

// New returns a Store scoped to roomID.
func New(roomID string, backend Backend, auth Identity, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		roomID:  roomID,
		backend: backend,
		auth:    auth,
		opts:    opts,
		check:   validator.New(),
	}
}

// RoomID returns the room the store is scoped to.
func (s *Store) RoomID() string { return s.roomID }

// List refetches the room's bookings, replaces the committed view and
// returns it sorted by start_date.  On failure the committed view is
// emptied and the error is returned as is; there is no retry.  Entries
// with a call still in flight survive a refetch, except that a create whose
// row the backend already returns is hidden behind that row.
func (s *Store) List(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		bookings, err = s.backend.ListBookings(ctx, s.roomID)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	inflight := s.inflightLocked()
	if err != nil {
		s.entries = inflight
		s.loaded = false
		return []model.Booking{}, err
	}
	fresh := make([]*Entry, 0, len(bookings)+len(inflight))
	known := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		known[b.ID] = true
		fresh = append(fresh, &Entry{CorrelationID: b.ID, Op: "fetch", State: StateCommitted, Booking: b})
	}
	claimed := make(map[string]bool)
	for _, e := range inflight {
		// A cancel in flight keeps its optimistic status over the fetched row.
		if known[e.Booking.ID] && e.Op == "cancel" {
			for i, f := range fresh {
				if f.Booking.ID == e.Booking.ID {
					fresh[i] = e
				}
			}
			continue
		}
		e.landed = false
		if e.Op == "create" {
			for _, f := range fresh {
				if f.Op == "fetch" && !claimed[f.Booking.ID] && sameRequest(f.Booking, e.Booking) {
					claimed[f.Booking.ID] = true
					e.landed = true
					break
				}
			}
		}
		fresh = append(fresh, e)
	}
	s.entries = fresh
	s.loaded = true
	return s.bookingsLocked(), nil
}

// Create validates the draft, shows it immediately as a confirmed booking
// under a temporary id and asks the backend to create it atomically.  On
// success the temporary id is replaced by the server id, which is returned.
// On any failure the optimistic entry is rolled back before the error is
// returned, so the visible bookings equal those before the call.
func (s *Store) Create(ctx context.Context, draft model.BookingDraft) (string, error) {
	if err := s.validate(draft); err != nil {
		return "", err
	}
	if _, err := s.requireUser(ctx); err != nil {
		return "", err
	}

	tempID := uuid.NewString()
	e := &Entry{
		CorrelationID: tempID,
		Op:            "create",
		State:         StatePending,
		Booking: model.Booking{
			ID:        tempID,
			RoomID:    draft.RoomID,
			UserID:    draft.UserID,
			StartDate: draft.StartDate,
			EndDate:   draft.EndDate,
			Type:      draft.Type,
			Status:    model.StatusConfirmed,
			CreatedAt: s.opts.Now().UTC(),
		},
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	var res model.CreateResult
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.backend.CreateBooking(ctx, draft)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		e.State = StateRolledBack
		e.Err = err.Error()
		s.recordRollback("create", err)
		return "", err
	}
	for _, other := range s.entries {
		if other != e && other.Booking.ID == res.BookingID {
			// A refetch already brought the server row in.
			e.State = StateRolledBack
			return res.BookingID, nil
		}
	}
	e.landed = false
	e.Booking.ID = res.BookingID
	e.Booking.Status = draft.Status
	e.Booking.CreditsUsed = res.CreditsUsed
	e.State = StateCommitted
	return res.BookingID, nil
}

// Cancel requires a signed-in user, flips the booking to cancelled locally
// and asks the backend to cancel it.  The record is never removed.  When
// the backend refuses (permission denial, unknown id, timeout...) the
// previous status is restored and the error returned.  Cancelling a
// booking that is already cancelled changes nothing locally.
func (s *Store) Cancel(ctx context.Context, bookingID string) (model.Booking, error) {
	if _, err := s.requireUser(ctx); err != nil {
		return model.Booking{}, err
	}

	s.mu.Lock()
	e := s.findLocked(bookingID)
	var prev model.BookingStatus
	var prevState State
	applied := false
	if e != nil && e.State != StatePending && e.Booking.Status.Cancellable() {
		prev, prevState = e.Booking.Status, e.State
		e.Booking.Status = model.StatusCancelled
		e.Op, e.State, e.Err = "cancel", StatePending, ""
		applied = true
	}
	s.mu.Unlock()

	var updated model.Booking
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.backend.CancelBooking(ctx, bookingID)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if applied {
			e.Booking.Status = prev
			e.State = prevState
			e.Err = err.Error()
			s.recordRollback("cancel", err)
		}
		return model.Booking{}, err
	}
	if e != nil {
		if updated.ID == "" {
			updated = e.Booking
			updated.Status = model.StatusCancelled
		}
		e.Booking = updated
		e.State = StateCommitted
	}
	return updated, nil
}

// Bookings returns the visible bookings sorted by start_date.  Rolled back
// entries are not visible.
func (s *Store) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookingsLocked()
}

// Entries returns a copy of every entry including rolled back ones, for
// inspection.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

// Loaded reports whether the last List succeeded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Classify classifies day against the visible bookings.
func (s *Store) Classify(day time.Time) availability.Status {
	return s.opts.Calculator.Classify(day, s.Bookings(), s.opts.Now())
}

// Month classifies every day of the month containing month.
func (s *Store) Month(month time.Time) []availability.Day {
	return s.opts.Calculator.Month(month, s.Bookings(), s.opts.Now())
}

// Credits projects the credit position of the visible bookings, optionally
// restricted to one user.
func (s *Store) Credits(userID string) credit.Summary {
	all := s.Bookings()
	if userID == "" {
		return credit.Project(all)
	}
	mine := all[:0]
	for _, b := range all {
		if b.UserID == userID {
			mine = append(mine, b)
		}
	}
	return credit.Project(mine)
}

func (s *Store) bookingsLocked() []model.Booking {
	out := make([]model.Booking, 0, len(s.entries))
	for _, e := range s.entries {
		if e.State == StateRolledBack || e.landed {
			continue
		}
		out = append(out, e.Booking)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	return out
}

// sameRequest reports whether the fetched row is the server side of the
// optimistic booking b.  An occupying row with identical fields can only be
// the in-flight create itself, since the backend rejects overlaps.
func sameRequest(row, b model.Booking) bool {
	return row.Occupies() &&
		row.RoomID == b.RoomID && row.UserID == b.UserID &&
		row.StartDate == b.StartDate && row.EndDate == b.EndDate &&
		row.Type == b.Type
}

func (s *Store) inflightLocked() []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.State == StatePending {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) findLocked(id string) *Entry {
	for _, e := range s.entries {
		if e.Booking.ID == id && e.State != StateRolledBack {
			return e
		}
	}
	return nil
}

func (s *Store) validate(d model.BookingDraft) error {
	if err := s.check.Struct(d); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if d.RoomID != s.roomID {
		return apperr.Validation("room_id %q does not belong to this store (room %q)", d.RoomID, s.roomID)
	}
	if p := d.Problem(); p != "" {
		return apperr.Validation("%s", p)
	}
	return nil
}

func (s *Store) requireUser(ctx context.Context) (*model.Identity, error) {
	if s.auth == nil {
		return nil, apperr.ErrAuth
	}
	var id *model.Identity
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.auth.CurrentUser(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAuth) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuth, err)
	}
	if id == nil || id.ID == "" {
		return nil, apperr.ErrAuth
	}
	return id, nil
}

// call runs fn under the store's timeout and normalizes its error into the
// taxonomy: deadline -> ErrTimeout, anything unclassified -> ErrFetch.
func (s *Store) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	err := fn(cctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		if !errors.Is(err, apperr.ErrTimeout) {
			return fmt.Errorf("%w: %v", apperr.ErrTimeout, err)
		}
		return err
	}
	if apperr.Kind(err) == nil {
		return fmt.Errorf("%w: %v", apperr.ErrFetch, err)
	}
	return err
}

func (s *Store) recordRollback(op string, err error) {
	if s.opts.Diagnostics == nil {
		return
	}
	kind := "other"
	if k := apperr.Kind(err); k != nil {
		kind = k.Error()
	}
	s.opts.Diagnostics.Rollback(op, kind)
}
