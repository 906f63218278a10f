package availability

import (
	"testing"
	"time"

	"github.com/iliyamo/room-booking/internal/model"
)

var today = time.Date(2024, 6, 5, 15, 30, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func booking(start, end string, typ model.BookingType, status model.BookingStatus) model.Booking {
	return model.Booking{ID: start + string(typ), RoomID: "r1", StartDate: start, EndDate: end, Type: typ, Status: status}
}

func TestClassify(t *testing.T) {
	daily := booking("2024-06-10", "2024-06-10", model.TypeDailyRental, model.StatusConfirmed)
	monthly := booking("2024-06-12", "2024-06-14", model.TypeMonthlyTenant, model.StatusPending)
	credit := booking("2024-06-20", "2024-06-20", model.TypeCreditEarned, model.StatusCreditGenerated)
	cancelled := booking("2024-06-22", "2024-06-22", model.TypeDailyRental, model.StatusCancelled)
	all := []model.Booking{daily, monthly, credit, cancelled}

	tests := []struct {
		name string
		date string
		want Status
	}{
		{"daily rental day", "2024-06-10", DailyOccupied},
		{"day after daily rental", "2024-06-11", Available},
		{"monthly range start", "2024-06-12", MonthlyOccupied},
		{"monthly range inclusive end", "2024-06-14", MonthlyOccupied},
		{"credit entry ignored", "2024-06-20", Available},
		{"cancelled booking frees date", "2024-06-22", Available},
		{"today is not past", "2024-06-05", Available},
		{"yesterday is past", "2024-06-04", Past},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(day(tt.date), all, today); got != tt.want {
				t.Errorf("Classify(%s) = %q, want %q", tt.date, got, tt.want)
			}
		})
	}
}

func TestClassify_PastWinsOverOccupancy(t *testing.T) {
	bookings := []model.Booking{
		booking("2024-06-01", "2024-06-30", model.TypeMonthlyTenant, model.StatusConfirmed),
	}
	for _, d := range []string{"2024-06-01", "2024-06-02", "2024-06-04", "2023-01-01"} {
		if got := Classify(day(d), bookings, today); got != Past {
			t.Errorf("Classify(%s) = %q, want past", d, got)
		}
	}
}

func TestClassify_CreditEntriesNeverOccupy(t *testing.T) {
	// Credit rows with any status must not block a date.
	statuses := []model.BookingStatus{model.StatusCreditGenerated, model.StatusConfirmed, model.StatusPending}
	for _, s := range statuses {
		b := booking("2024-06-10", "2024-06-15", model.TypeCreditEarned, s)
		for d := day("2024-06-10"); !d.After(day("2024-06-15")); d = d.AddDate(0, 0, 1) {
			if got := Classify(d, []model.Booking{b}, today); got != Available {
				t.Errorf("status %s: Classify(%s) = %q, want available", s, d.Format(model.DateLayout), got)
			}
		}
	}
}

type countingObserver struct{ n int }

func (o *countingObserver) UnknownBookingType(model.BookingType) { o.n++ }

func TestClassify_UnknownTypeFallsBack(t *testing.T) {
	obs := &countingObserver{}
	c := Calculator{Observer: obs}
	b := booking("2024-06-10", "2024-06-10", model.BookingType("hourly_rental"), model.StatusConfirmed)
	if got := c.Classify(day("2024-06-10"), []model.Booking{b}, today); got != UnknownOccupied {
		t.Fatalf("Classify() = %q, want unknown_occupied", got)
	}
	if obs.n != 1 {
		t.Errorf("observer called %d times, want 1", obs.n)
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	a := booking("2024-06-10", "2024-06-10", model.TypeDailyRental, model.StatusConfirmed)
	b := booking("2024-06-10", "2024-06-10", model.TypeMonthlyTenant, model.StatusConfirmed)
	if got := Classify(day("2024-06-10"), []model.Booking{a, b}, today); got != DailyOccupied {
		t.Errorf("got %q, want daily_occupied", got)
	}
	if got := Classify(day("2024-06-10"), []model.Booking{b, a}, today); got != MonthlyOccupied {
		t.Errorf("got %q, want monthly_occupied", got)
	}
}

func TestClassify_ViewerLocation(t *testing.T) {
	// 01:00 on June 5th in UTC+3 is still June 4th in UTC.
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2024, 6, 5, 1, 0, 0, 0, loc)
	if got := Classify(day("2024-06-05"), nil, now); got != Available {
		t.Errorf("June 5th for a UTC+3 viewer = %q, want available", got)
	}
	if got := Classify(day("2024-06-04"), nil, now); got != Past {
		t.Errorf("June 4th for a UTC+3 viewer = %q, want past", got)
	}
}

func TestMonth(t *testing.T) {
	bookings := []model.Booking{booking("2024-06-10", "2024-06-11", model.TypeDailyRental, model.StatusConfirmed)}
	days := Calculator{}.Month(day("2024-06-01"), bookings, today)
	if len(days) != 30 {
		t.Fatalf("len(days) = %d, want 30", len(days))
	}
	want := map[string]Status{
		"2024-06-01": Past,
		"2024-06-05": Available,
		"2024-06-10": DailyOccupied,
		"2024-06-11": DailyOccupied,
		"2024-06-30": Available,
	}
	for _, d := range days {
		if w, ok := want[d.Date]; ok && d.Status != w {
			t.Errorf("%s = %q, want %q", d.Date, d.Status, w)
		}
	}
}
