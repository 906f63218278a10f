// Package availability maps a calendar date and a room's bookings to the
// classification the calendar renders.  Everything here is pure: it never
// fails and never touches storage.
package availability

import (
	"log"
	"time"

	"github.com/iliyamo/room-booking/internal/model"
)

// Status is the classification of one calendar date.
type Status string

const (
	Past            Status = "past"
	Available       Status = "available"
	MonthlyOccupied Status = "monthly_occupied"
	DailyOccupied   Status = "daily_occupied"
	UnknownOccupied Status = "unknown_occupied"
)

// UnknownTypeObserver is notified when an occupying booking has a type the
// calculator does not know.  diagnostics.Handle satisfies it.
type UnknownTypeObserver interface {
	UnknownBookingType(t model.BookingType)
}

// Calculator classifies dates.  The zero value is ready to use; Observer is
// optional.
type Calculator struct {
	Observer UnknownTypeObserver
}

// Classify is Calculator{}.Classify.
func Classify(day time.Time, bookings []model.Booking, now time.Time) Status {
	return Calculator{}.Classify(day, bookings, now)
}

// Classify returns the status of day given the room's bookings.  now fixes
// both "today" and the viewer's location: a date strictly before the start
// of now's calendar day is Past regardless of occupancy.  When more than one
// active booking covers the date the first one in input order decides.
func (c Calculator) Classify(day time.Time, bookings []model.Booking, now time.Time) Status {
	y, m, d := day.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if day.Before(startOfDay(now)) {
		return Past
	}
	key := day.Format(model.DateLayout)
	for _, b := range bookings {
		if !b.Occupies() || !b.Covers(key) {
			continue
		}
		switch b.Type {
		case model.TypeMonthlyTenant:
			return MonthlyOccupied
		case model.TypeDailyRental:
			return DailyOccupied
		case model.TypeCreditEarned:
			// Occupies already excludes credit entries.
			continue
		default:
			log.Printf("availability: booking %s on room %s has unknown type %q", b.ID, b.RoomID, b.Type)
			if c.Observer != nil {
				c.Observer.UnknownBookingType(b.Type)
			}
			return UnknownOccupied
		}
	}
	return Available
}

// Day is one cell of a month calendar.
type Day struct {
	Date   string `json:"date"`
	Status Status `json:"status"`
}

// Month classifies every day of the month containing month.  Days are in
// calendar order.
func (c Calculator) Month(month time.Time, bookings []model.Booking, now time.Time) []Day {
	loc := now.Location()
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)
	days := make([]Day, 0, 31)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		days = append(days, Day{Date: d.Format(model.DateLayout), Status: c.Classify(d, bookings, now)})
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
