package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/room-booking/internal/database"
	"github.com/iliyamo/room-booking/internal/model"
)

// openTestDB connects to the MySQL named by ROOM_BOOKING_TEST_DSN and
// applies the schema.  Tests that need it are skipped without the variable.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("ROOM_BOOKING_TEST_DSN")
	if dsn == "" {
		t.Skip("ROOM_BOOKING_TEST_DSN not set")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatal(err)
	}
	database.PinUTC(cfg)
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatal(err)
	}
	return db
}

// seedRoom creates an owner, a tenant and a room assigned to that tenant.
func seedRoom(t *testing.T, db *sql.DB) (roomID, tenantID string) {
	t.Helper()
	ctx := context.Background()
	profiles := NewProfileRepo(db)
	ownerID, err := profiles.Create(ctx, ProfileRecord{FullName: "Owner", Email: uuid.NewString() + "@example.com", Role: model.RoleOwner}, "", 4)
	if err != nil {
		t.Fatal(err)
	}
	tenantID, err = profiles.Create(ctx, ProfileRecord{FullName: "Tenant", Email: uuid.NewString() + "@example.com", Role: model.RoleTenant}, "", 4)
	if err != nil {
		t.Fatal(err)
	}
	room, err := NewRoomRepo(db).Create(ctx, model.RoomDraft{Name: "Test", OwnerID: ownerID, AssignedMonthlyTenantID: &tenantID})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_, _ = NewRoomRepo(db).DeleteWithRelated(context.Background(), room.ID, ownerID)
	})
	return room.ID, tenantID
}

func countRows(t *testing.T, db *sql.DB, roomID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM appointments WHERE room_id = ?`, roomID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestMySQLOverlapRules(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewBookingRepo(db)
	roomID, tenantID := seedRoom(t, db)
	guest := uuid.NewString()

	book := func(start, end string) error {
		_, err := repo.CreateAndUpdateCredits(ctx, model.BookingDraft{
			RoomID: roomID, UserID: guest, StartDate: start, EndDate: end,
			Type: model.TypeDailyRental, Status: model.StatusConfirmed,
		}, CreditPolicy{PerRentalDay: 1})
		return err
	}

	// Writes a booking plus a credit entry for the tenant on the same dates.
	if err := book("2031-03-10", "2031-03-12"); err != nil {
		t.Fatal(err)
	}
	if n := countRows(t, db, roomID); n != 2 {
		t.Fatalf("rows after first booking = %d, want booking and credit entry", n)
	}

	tests := []struct {
		name       string
		start, end string
		want       error
	}{
		{"same last day", "2031-03-12", "2031-03-14", ErrConflict},
		{"same first day", "2031-03-08", "2031-03-10", ErrConflict},
		{"inside", "2031-03-11", "2031-03-11", ErrConflict},
		{"adjacent after", "2031-03-13", "2031-03-13", nil},
		{"adjacent before", "2031-03-09", "2031-03-09", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := countRows(t, db, roomID)
			err := book(tt.start, tt.end)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.want != nil && countRows(t, db, roomID) != before {
				t.Error("rejected booking left rows behind")
			}
		})
	}

	// Credit entries and cancelled rows never block dates.
	rows, err := repo.ListByRoom(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range rows {
		if b.UserID == guest && b.StartDate == "2031-03-10" {
			if _, err := repo.Cancel(ctx, b.ID, model.Identity{ID: guest}); err != nil {
				t.Fatal(err)
			}
		}
	}
	credits, err := repo.ListByUser(ctx, tenantID)
	if err != nil || len(credits) == 0 {
		t.Fatalf("tenant credit entries = %+v, %v", credits, err)
	}
	if err := book("2031-03-10", "2031-03-12"); err != nil {
		t.Errorf("rebook over cancelled row and credit entry: %v", err)
	}
}

func TestMySQLExpirePendingAgainstUTCCutoff(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewBookingRepo(db)
	roomID, _ := seedRoom(t, db)

	res, err := repo.CreateAndUpdateCredits(ctx, model.BookingDraft{
		RoomID: roomID, UserID: uuid.NewString(), StartDate: "2031-04-01", EndDate: "2031-04-01",
		Type: model.TypeDailyRental, Status: model.StatusPending,
	}, CreditPolicy{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := repo.GetByID(ctx, res.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if skew := time.Since(b.CreatedAt); skew < -time.Minute || skew > time.Minute {
		t.Fatalf("created_at %v is %v away from now; session time zone is not UTC", b.CreatedAt, skew)
	}

	expired := func(cutoff time.Time) bool {
		t.Helper()
		rows, err := repo.ExpirePending(ctx, cutoff)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range rows {
			if r.ID == res.BookingID {
				return true
			}
		}
		return false
	}
	if expired(time.Now().Add(-time.Hour)) {
		t.Error("fresh pending booking expired by an earlier cutoff")
	}
	if !expired(time.Now().Add(time.Minute)) {
		t.Error("pending booking not expired by a later cutoff")
	}
}
