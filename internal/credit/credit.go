// Package credit projects credit totals from booking history.  There is no
// stored ledger: totals are recomputed from the full history on every call.
package credit

import (
	"sort"

	"github.com/iliyamo/room-booking/internal/model"
)

// Summary is the credit position of a user or a room.  Available is
// Earned - Used and is deliberately not clamped at zero.
type Summary struct {
	Earned    int `json:"total_credits_earned"`
	Used      int `json:"total_credits_used"`
	Available int `json:"available_credits"`
}

// Project sums earned credits over credit_generated credit entries and
// used credits over confirmed monthly tenant bookings.
func Project(bookings []model.Booking) Summary {
	var s Summary
	for _, b := range bookings {
		s.add(b)
	}
	s.Available = s.Earned - s.Used
	return s
}

func (s *Summary) add(b model.Booking) {
	switch b.Type {
	case model.TypeCreditEarned:
		if b.Status == model.StatusCreditGenerated {
			s.Earned += b.CreditsEarned
		}
	case model.TypeMonthlyTenant:
		if b.Status == model.StatusConfirmed {
			s.Used += b.CreditsUsed
		}
	case model.TypeDailyRental:
		// occupancy only
	}
}

// ByUser projects each user's summary from a mixed history.
func ByUser(bookings []model.Booking) map[string]Summary {
	out := make(map[string]Summary)
	for _, b := range bookings {
		s := out[b.UserID]
		s.add(b)
		out[b.UserID] = s
	}
	for id, s := range out {
		s.Available = s.Earned - s.Used
		out[id] = s
	}
	return out
}

// Entry is one row of a user's credit statement.
type Entry struct {
	BookingID string            `json:"booking_id"`
	RoomID    string            `json:"room_id"`
	Date      string            `json:"date"`
	Type      model.BookingType `json:"type"`
	Delta     int               `json:"delta"`
	Balance   int               `json:"balance"`
}

// Statement lists the entries that move the balance in date order with a
// running balance.  The final balance equals Project(bookings).Available.
func Statement(bookings []model.Booking) []Entry {
	sorted := make([]model.Booking, len(bookings))
	copy(sorted, bookings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartDate != sorted[j].StartDate {
			return sorted[i].StartDate < sorted[j].StartDate
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	var (
		out     []Entry
		balance int
	)
	for _, b := range sorted {
		var s Summary
		s.add(b)
		delta := s.Earned - s.Used
		if s.Earned == 0 && s.Used == 0 {
			continue
		}
		balance += delta
		out = append(out, Entry{
			BookingID: b.ID,
			RoomID:    b.RoomID,
			Date:      b.StartDate,
			Type:      b.Type,
			Delta:     delta,
			Balance:   balance,
		})
	}
	return out
}
