package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/model"
)

// fakeAPI serves just enough of the booking API for the commands.
type fakeAPI struct {
	mu       sync.Mutex
	bookings []model.Booking
	drafts   []model.BookingDraft
}

func (f *fakeAPI) handler() http.Handler {
	authed := func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer tok-1" }
	deny := func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid token"}`)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"user":{"id":"u1","role":"tenant"},"access":{"token":"tok-1"}}`)
	})
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			deny(w)
			return
		}
		fmt.Fprint(w, `{"user":{"id":"u1","role":"tenant"}}`)
	})
	mux.HandleFunc("GET /v1/rooms/{id}/bookings", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"items": f.bookings})
	})
	mux.HandleFunc("POST /v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			deny(w)
			return
		}
		var d model.BookingDraft
		_ = json.NewDecoder(r.Body).Decode(&d)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.drafts = append(f.drafts, d)
		id := fmt.Sprintf("b%d", len(f.bookings)+1)
		f.bookings = append(f.bookings, model.Booking{ID: id, RoomID: d.RoomID, UserID: d.UserID,
			StartDate: d.StartDate, EndDate: d.EndDate, Type: d.Type, Status: d.Status})
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"booking_id":%q}`, id)
	})
	mux.HandleFunc("DELETE /v1/bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"forbidden"}`)
	})
	return mux
}

func run(t *testing.T, api, cfg string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg, "--api", api}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestLoginThenBook(t *testing.T) {
	f := &fakeAPI{}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()
	cfg := filepath.Join(t.TempDir(), "roomctl.toml")
	t.Setenv("ROOMCTL_TOKEN", "")

	if _, err := run(t, srv.URL, cfg, "book", "R", "2099-01-02"); !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("signed out book err = %v", err)
	}

	out, err := run(t, srv.URL, cfg, "login", "t@example.com", "-p", "secret1")
	if err != nil || !strings.Contains(out, "signed in as u1 (tenant)") {
		t.Fatalf("login = %q, %v", out, err)
	}
	s, err := LoadSettings(cfg)
	if err != nil || s.Token != "tok-1" {
		t.Fatalf("saved settings = %+v, %v", s, err)
	}

	out, err = run(t, srv.URL, cfg, "book", "R", "2099-01-02", "2099-01-04")
	if err != nil || strings.TrimSpace(out) != "b1" {
		t.Fatalf("book = %q, %v", out, err)
	}
	if d := f.drafts[0]; d.UserID != "u1" || d.Type != model.TypeDailyRental || d.Status != model.StatusConfirmed {
		t.Errorf("draft = %+v", d)
	}

	out, err = run(t, srv.URL, cfg, "bookings", "R")
	if err != nil || !strings.Contains(out, "b1") || !strings.Contains(out, "2099-01-04") {
		t.Errorf("bookings = %q, %v", out, err)
	}

	out, err = run(t, srv.URL, cfg, "calendar", "R", "--month", "2099-01")
	if err != nil || !strings.Contains(out, "2099-01-03  daily_occupied") || !strings.Contains(out, "2099-01-05  available") {
		t.Errorf("calendar = %q, %v", out, err)
	}

	if _, err := run(t, srv.URL, cfg, "cancel", "R", "b1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("cancel err = %v", err)
	}
}

func TestBookRejectsBadInput(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler())
	defer srv.Close()
	cfg := filepath.Join(t.TempDir(), "roomctl.toml")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown type", []string{"book", "R", "2099-01-02", "--type", "weekly"}},
		{"inverted range", []string{"book", "R", "2099-01-05", "2099-01-02", "--token", "tok-1"}},
		{"bad month", []string{"calendar", "R", "--month", "Jan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, srv.URL, cfg, tt.args...); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "roomctl.toml")
	if s, err := LoadSettings(path); err != nil || s != (Settings{}) {
		t.Fatalf("missing file = %+v, %v", s, err)
	}
	want := Settings{API: "https://rooms.example.com", Token: "abc", Timeout: 3 * time.Second}
	if err := SaveSettings(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSettings(path)
	if err != nil || got != want {
		t.Errorf("got %+v, %v", got, err)
	}
}
