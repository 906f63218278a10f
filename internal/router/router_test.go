package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/diagnostics"
	"github.com/iliyamo/room-booking/internal/handler"
	"github.com/iliyamo/room-booking/internal/middleware"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/utils"
)

const secret = "router-secret"

// The embedded interfaces leave every method the routes under test do not
// reach unimplemented.
type (
	stubAuth     struct{ handler.AuthAPI }
	stubBookings struct{ handler.BookingAPI }
	stubAdmin    struct{ handler.AdminAPI }
	stubRooms    struct{ handler.RoomAPI }
)

func (stubRooms) List(context.Context, string) ([]model.Room, error) { return []model.Room{}, nil }

func (stubRooms) Create(_ context.Context, caller model.Identity, d model.RoomDraft) (model.Room, error) {
	return model.Room{ID: "r1", Name: d.Name, OwnerID: caller.ID}, nil
}

func (stubAdmin) ListUsers(context.Context, model.Identity) ([]model.UserWithCredits, error) {
	return []model.UserWithCredits{}, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newServer(diag *diagnostics.Handle) *echo.Echo {
	e := echo.New()
	rooms := handler.NewRoomHandler(stubRooms{})
	bookings := handler.NewBookingHandler(stubBookings{})
	RegisterRoutes(e, okPinger{}, diag, "")
	RegisterAuth(e, handler.NewAuthHandler(stubAuth{}), secret, func(next echo.HandlerFunc) echo.HandlerFunc { return next })
	RegisterPublic(e, rooms, bookings, nil)
	RegisterBookings(e, bookings, secret)
	RegisterOwner(e, rooms, handler.NewAdminHandler(stubAdmin{}), secret)
	return e
}

func bearer(t *testing.T, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "u-"+string(role), string(role), 5)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func TestRouteGates(t *testing.T) {
	e := newServer(nil)
	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"public rooms", http.MethodGet, "/v1/rooms", "", "", http.StatusOK},
		{"anonymous booking", http.MethodPost, "/v1/bookings", "", "{}", http.StatusUnauthorized},
		{"anonymous credits", http.MethodGet, "/v1/me/credits", "", "", http.StatusUnauthorized},
		{"tenant creates room", http.MethodPost, "/v1/rooms", bearer(t, model.RoleTenant), `{"name":"x"}`, http.StatusForbidden},
		{"owner creates room", http.MethodPost, "/v1/rooms", bearer(t, model.RoleOwner), `{"name":"x"}`, http.StatusCreated},
		{"tenant lists users", http.MethodGet, "/v1/admin/users", bearer(t, model.RoleTenant), "", http.StatusForbidden},
		{"owner lists users", http.MethodGet, "/v1/admin/users", bearer(t, model.RoleOwner), "", http.StatusOK},
		{"metrics disabled", http.MethodGet, "/metrics", "", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	diag := diagnostics.New()
	e := newServer(diag)
	e.Use(middleware.Metrics(diag))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}

	custom := echo.New()
	RegisterRoutes(custom, okPinger{}, diag, "/internal/metrics")
	rec = httptest.NewRecorder()
	custom.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("custom path status = %d", rec.Code)
	}
}
