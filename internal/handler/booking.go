package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata" // calendar ?tz= works on hosts without zoneinfo

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/availability"
	"github.com/iliyamo/room-booking/internal/middleware"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/service"
)

// BookingAPI is the booking procedures and read models.
// service.BookingService satisfies it.
type BookingAPI interface {
	ListByRoom(ctx context.Context, roomID string) ([]model.Booking, error)
	Calendar(ctx context.Context, roomID string, month time.Time, loc *time.Location) ([]availability.Day, error)
	Create(ctx context.Context, caller model.Identity, d model.BookingDraft) (model.CreateResult, error)
	Cancel(ctx context.Context, caller model.Identity, bookingID string) (model.Booking, error)
	CreditsForUser(ctx context.Context, caller model.Identity, userID string) (service.UserCredits, error)
	CreditsForRoom(ctx context.Context, caller model.Identity, roomID string) (service.RoomCredits, error)
}

// BookingHandler serves bookings, calendars and credits.
type BookingHandler struct {
	Bookings BookingAPI
}

func NewBookingHandler(b BookingAPI) *BookingHandler { return &BookingHandler{Bookings: b} }

// ListByRoom handles GET /v1/rooms/:id/bookings.
func (h *BookingHandler) ListByRoom(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Bookings.ListByRoom(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// Calendar handles GET /v1/rooms/:id/calendar?month=YYYY-MM&tz=Area/City.
// month defaults to the current month and tz to UTC.
func (h *BookingHandler) Calendar(c echo.Context) error {
	loc := time.UTC
	if tz := strings.TrimSpace(c.QueryParam("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return badRequest(c, "invalid tz")
		}
		loc = l
	}
	month := time.Now().In(loc)
	if m := strings.TrimSpace(c.QueryParam("month")); m != "" {
		t, err := time.ParseInLocation("2006-01", m, loc)
		if err != nil {
			return badRequest(c, "month must be YYYY-MM")
		}
		month = t
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	days, err := h.Bookings.Calendar(ctx, c.Param("id"), month, loc)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"room_id": c.Param("id"),
		"month":   month.Format("2006-01"),
		"days":    days,
	})
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var d model.BookingDraft
	if err := c.Bind(&d); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Bookings.Create(ctx, middleware.CurrentIdentity(c), d)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Cancel handles DELETE /v1/bookings/:id and returns the cancelled booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Bookings.Cancel(ctx, middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// MyCredits handles GET /v1/me/credits.
func (h *BookingHandler) MyCredits(c echo.Context) error {
	return h.userCredits(c, "")
}

// UserCredits handles GET /v1/users/:id/credits.
func (h *BookingHandler) UserCredits(c echo.Context) error {
	return h.userCredits(c, c.Param("id"))
}

func (h *BookingHandler) userCredits(c echo.Context, userID string) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Bookings.CreditsForUser(ctx, middleware.CurrentIdentity(c), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// RoomCredits handles GET /v1/rooms/:id/credits.
func (h *BookingHandler) RoomCredits(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Bookings.CreditsForRoom(ctx, middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
