package credit

import (
	"testing"

	"github.com/iliyamo/room-booking/internal/model"
)

func entry(user string, typ model.BookingType, status model.BookingStatus, earned, used int) model.Booking {
	return model.Booking{UserID: user, StartDate: "2024-06-01", EndDate: "2024-06-01", Type: typ, Status: status, CreditsEarned: earned, CreditsUsed: used}
}

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		bookings []model.Booking
		want     Summary
	}{
		{
			name: "earned minus used",
			bookings: []model.Booking{
				entry("u", model.TypeCreditEarned, model.StatusCreditGenerated, 10, 0),
				entry("u", model.TypeCreditEarned, model.StatusCreditGenerated, 5, 0),
				entry("u", model.TypeMonthlyTenant, model.StatusConfirmed, 0, 3),
			},
			want: Summary{Earned: 15, Used: 3, Available: 12},
		},
		{
			name:     "empty history",
			bookings: nil,
			want:     Summary{},
		},
		{
			name: "filters by type and status",
			bookings: []model.Booking{
				entry("u", model.TypeCreditEarned, model.StatusConfirmed, 7, 0),
				entry("u", model.TypeDailyRental, model.StatusConfirmed, 4, 4),
				entry("u", model.TypeMonthlyTenant, model.StatusCancelled, 0, 9),
				entry("u", model.TypeMonthlyTenant, model.StatusPending, 0, 2),
			},
			want: Summary{},
		},
		{
			name: "negative balance is not clamped",
			bookings: []model.Booking{
				entry("u", model.TypeCreditEarned, model.StatusCreditGenerated, 1, 0),
				entry("u", model.TypeMonthlyTenant, model.StatusConfirmed, 0, 4),
			},
			want: Summary{Earned: 1, Used: 4, Available: -3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Project(tt.bookings); got != tt.want {
				t.Errorf("Project() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestByUser(t *testing.T) {
	got := ByUser([]model.Booking{
		entry("a", model.TypeCreditEarned, model.StatusCreditGenerated, 3, 0),
		entry("b", model.TypeMonthlyTenant, model.StatusConfirmed, 0, 2),
		entry("a", model.TypeMonthlyTenant, model.StatusConfirmed, 0, 1),
	})
	if want := (Summary{Earned: 3, Used: 1, Available: 2}); got["a"] != want {
		t.Errorf("a = %+v, want %+v", got["a"], want)
	}
	if want := (Summary{Used: 2, Available: -2}); got["b"] != want {
		t.Errorf("b = %+v, want %+v", got["b"], want)
	}
}

func TestStatement(t *testing.T) {
	hist := []model.Booking{
		{ID: "m", StartDate: "2024-06-03", Type: model.TypeMonthlyTenant, Status: model.StatusConfirmed, CreditsUsed: 2},
		{ID: "c1", StartDate: "2024-06-01", Type: model.TypeCreditEarned, Status: model.StatusCreditGenerated, CreditsEarned: 4},
		{ID: "d", StartDate: "2024-06-02", Type: model.TypeDailyRental, Status: model.StatusConfirmed},
	}
	st := Statement(hist)
	if len(st) != 2 {
		t.Fatalf("len = %d, want 2", len(st))
	}
	if st[0].BookingID != "c1" || st[0].Balance != 4 {
		t.Errorf("first entry = %+v", st[0])
	}
	if st[1].BookingID != "m" || st[1].Delta != -2 || st[1].Balance != 2 {
		t.Errorf("second entry = %+v", st[1])
	}
	if st[len(st)-1].Balance != Project(hist).Available {
		t.Errorf("final balance %d != projection %d", st[len(st)-1].Balance, Project(hist).Available)
	}
}
