package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/room-booking/internal/credit"
	"github.com/iliyamo/room-booking/internal/model"
)

// BookingRepo owns the `appointments` table.  Rows are never deleted;
// cancellation is a status transition so that credit history survives.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, room_id, user_id, start_date, end_date, type, status, credits_earned, credits_used, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b          model.Booking
		start, end time.Time
	)
	if err := s.Scan(&b.ID, &b.RoomID, &b.UserID, &start, &end, &b.Type, &b.Status,
		&b.CreditsEarned, &b.CreditsUsed, &b.CreatedAt); err != nil {
		return b, err
	}
	b.StartDate = start.Format(model.DateLayout)
	b.EndDate = end.Format(model.DateLayout)
	return b, nil
}

func (r *BookingRepo) list(ctx context.Context, q queryer, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListByRoom returns every booking of a room, credit entries and cancelled
// rows included, ordered by start_date.
func (r *BookingRepo) ListByRoom(ctx context.Context, roomID string) ([]model.Booking, error) {
	return r.list(ctx, r.db,
		`SELECT `+bookingColumns+` FROM appointments WHERE room_id = ? ORDER BY start_date, created_at`, roomID)
}

// ListByUser returns the booking history of one user ordered by start_date.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return r.list(ctx, r.db,
		`SELECT `+bookingColumns+` FROM appointments WHERE user_id = ? ORDER BY start_date, created_at`, userID)
}

// ListAll returns the full history, used by the owner's user overview.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	return r.list(ctx, r.db,
		`SELECT `+bookingColumns+` FROM appointments ORDER BY start_date, created_at`)
}

// GetByID returns one booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM appointments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

// CreditPolicy parameterizes credit accrual inside the create procedure.
type CreditPolicy struct {
	PerRentalDay int
}

// CreateAndUpdateCredits is the atomic create procedure.  In one
// transaction it locks the room row, rejects any overlap with an active
// occupying booking, inserts the booking and applies the credit rules:
//
//   - a confirmed daily rental on a room with an assigned monthly tenant
//     inserts a credit_generated entry for that tenant worth
//     days × PerRentalDay;
//   - a confirmed monthly booking by the assigned tenant consumes
//     min(available, days) credits.
//
// Concurrent creates on the same room serialize on the room lock, so of two
// overlapping requests exactly one commits and the other gets ErrConflict.
func (r *BookingRepo) CreateAndUpdateCredits(ctx context.Context, d model.BookingDraft, policy CreditPolicy) (model.CreateResult, error) {
	var res model.CreateResult
	days := d.Days()
	if days == 0 {
		return res, fmt.Errorf("%w: end_date must not be before start_date", ErrValidation)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var tenant sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT assigned_monthly_tenant_id FROM rooms WHERE id = ? FOR UPDATE`, d.RoomID).Scan(&tenant)
	if errors.Is(err, sql.ErrNoRows) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, err
	}

	var overlapping int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments
		 WHERE room_id = ? AND status IN (?, ?) AND type <> ?
		   AND start_date <= ? AND end_date >= ?`,
		d.RoomID, model.StatusConfirmed, model.StatusPending, model.TypeCreditEarned,
		d.EndDate, d.StartDate).Scan(&overlapping)
	if err != nil {
		return res, err
	}
	if overlapping > 0 {
		return res, ErrConflict
	}

	isTenant := tenant.Valid && tenant.String == d.UserID
	confirmed := d.Status == model.StatusConfirmed

	if d.Type == model.TypeMonthlyTenant && isTenant && confirmed {
		history, err := r.list(ctx, tx,
			`SELECT `+bookingColumns+` FROM appointments WHERE user_id = ? FOR UPDATE`, d.UserID)
		if err != nil {
			return res, err
		}
		if avail := credit.Project(history).Available; avail > 0 {
			res.CreditsUsed = min(avail, days)
		}
	}

	res.BookingID = uuid.NewString()
	if err := insertBooking(ctx, tx, model.Booking{
		ID: res.BookingID, RoomID: d.RoomID, UserID: d.UserID,
		StartDate: d.StartDate, EndDate: d.EndDate, Type: d.Type, Status: d.Status,
		CreditsUsed: res.CreditsUsed,
	}); err != nil {
		return res, err
	}

	if d.Type == model.TypeDailyRental && tenant.Valid && !isTenant && confirmed && policy.PerRentalDay > 0 {
		res.CreditEntryID = uuid.NewString()
		res.CreditsEarned = days * policy.PerRentalDay
		if err := insertBooking(ctx, tx, model.Booking{
			ID: res.CreditEntryID, RoomID: d.RoomID, UserID: tenant.String,
			StartDate: d.StartDate, EndDate: d.EndDate,
			Type: model.TypeCreditEarned, Status: model.StatusCreditGenerated,
			CreditsEarned: res.CreditsEarned,
		}); err != nil {
			return res, err
		}
	}

	if err := tx.Commit(); err != nil {
		return res, err
	}
	committed = true
	return res, nil
}

func insertBooking(ctx context.Context, tx *sql.Tx, b model.Booking) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO appointments (id, room_id, user_id, start_date, end_date, type, status, credits_earned, credits_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.RoomID, b.UserID, b.StartDate, b.EndDate, b.Type, b.Status, b.CreditsEarned, b.CreditsUsed)
	if isForeignKey(err) {
		return ErrReference
	}
	return err
}

// Cancel is the atomic cancel procedure.  The caller must be the booking's
// user or an owner, otherwise ErrForbidden.  Only pending and confirmed
// bookings transition; an unknown id, an already cancelled booking or a
// credit entry yields ErrNotFound so that a repeated cancel never changes
// anything.  The updated row is returned.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID string, caller model.Identity) (model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM appointments WHERE id = ? FOR UPDATE`, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != caller.ID && !caller.IsOwner() {
		return model.Booking{}, ErrForbidden
	}
	if !b.Status.Cancellable() || b.Type.IsCredit() {
		return model.Booking{}, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE appointments SET status = ? WHERE id = ?`, model.StatusCancelled, bookingID); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	committed = true
	b.Status = model.StatusCancelled
	return b, nil
}

// ExpirePending cancels pending bookings created before cutoff and returns
// the cancelled rows.
func (r *BookingRepo) ExpirePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stale, err := r.list(ctx, tx,
		`SELECT `+bookingColumns+` FROM appointments WHERE status = ? AND created_at < ? FOR UPDATE`,
		model.StatusPending, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return stale, nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE appointments SET status = ? WHERE status = ? AND created_at < ?`,
		model.StatusCancelled, model.StatusPending, cutoff.UTC()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	for i := range stale {
		stale[i].Status = model.StatusCancelled
	}
	return stale, nil
}
