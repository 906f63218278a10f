package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of start_date/end_date.
const DateLayout = "2006-01-02"

// BookingType is the closed set of appointment types.
type BookingType string

const (
	TypeMonthlyTenant BookingType = "monthly_tenant_booking"
	TypeDailyRental   BookingType = "daily_third_party_rental"
	TypeCreditEarned  BookingType = "credit_earned_from_third_party_booking"
)

// Valid reports whether t is one of the known booking types.
func (t BookingType) Valid() bool {
	switch t {
	case TypeMonthlyTenant, TypeDailyRental, TypeCreditEarned:
		return true
	}
	return false
}

// IsCredit reports whether t is an accounting entry rather than occupancy.
func (t BookingType) IsCredit() bool { return t == TypeCreditEarned }

// BookingStatus is the closed set of appointment statuses.
type BookingStatus string

const (
	StatusConfirmed       BookingStatus = "confirmed"
	StatusPending         BookingStatus = "pending"
	StatusCancelled       BookingStatus = "cancelled"
	StatusCreditGenerated BookingStatus = "credit_generated"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusCancelled, StatusCreditGenerated:
		return true
	}
	return false
}

// Active reports whether a booking in status s occupies its dates.
func (s BookingStatus) Active() bool {
	return s == StatusConfirmed || s == StatusPending
}

// Cancellable reports whether the cancel transition is allowed from s.
// credit_generated is terminal and cancelled never returns to active.
func (s BookingStatus) Cancellable() bool { return s.Active() }

// Booking mirrors a row of the `appointments` table.  Field names in the
// json tags are the wire contract shared with clients.
type Booking struct {
	ID            string        `json:"id"`
	RoomID        string        `json:"room_id"`
	UserID        string        `json:"user_id"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	Type          BookingType   `json:"type"`
	Status        BookingStatus `json:"status"`
	CreditsEarned int           `json:"credits_earned"`
	CreditsUsed   int           `json:"credits_used"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Occupies reports whether the booking blocks its dates for other bookings.
func (b Booking) Occupies() bool {
	return b.Status.Active() && !b.Type.IsCredit()
}

// Covers reports whether the calendar date day falls inside the inclusive
// [start_date, end_date] range.  Malformed dates never cover anything.
func (b Booking) Covers(day string) bool {
	if len(day) != len(DateLayout) || len(b.StartDate) != len(DateLayout) || len(b.EndDate) != len(DateLayout) {
		return false
	}
	// YYYY-MM-DD sorts lexically in calendar order.
	return b.StartDate <= day && day <= b.EndDate
}

// BookingDraft is the input of the create-booking procedure.
type BookingDraft struct {
	RoomID    string        `json:"room_id" validate:"required"`
	UserID    string        `json:"user_id" validate:"required"`
	StartDate string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string        `json:"end_date" validate:"required,datetime=2006-01-02"`
	Type      BookingType   `json:"type" validate:"required"`
	Status    BookingStatus `json:"status" validate:"required"`
}

// DateRange parses the draft's dates.
func (d BookingDraft) DateRange() (start, end time.Time, err error) {
	start, err = time.Parse(DateLayout, d.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("start_date: %w", err)
	}
	end, err = time.Parse(DateLayout, d.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("end_date: %w", err)
	}
	return start, end, nil
}

// Days returns the number of calendar days in the inclusive range, or 0
// when the range is malformed or inverted.
func (d BookingDraft) Days() int {
	start, end, err := d.DateRange()
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Problem returns why a structurally valid draft cannot be submitted, or ""
// when it can.  Credit entries are produced by the create procedure itself
// and are never requested directly.
func (d BookingDraft) Problem() string {
	switch {
	case !d.Type.Valid() || d.Type.IsCredit():
		return fmt.Sprintf("type %q cannot be booked", d.Type)
	case !d.Status.Active():
		return fmt.Sprintf("status %q cannot be requested", d.Status)
	case d.Days() == 0:
		return "end_date must not be before start_date"
	}
	return ""
}

// CreateResult is returned by the create-booking procedure.
type CreateResult struct {
	BookingID     string `json:"booking_id"`
	CreditEntryID string `json:"credit_entry_id,omitempty"`
	CreditsEarned int    `json:"credits_earned"`
	CreditsUsed   int    `json:"credits_used"`
}
