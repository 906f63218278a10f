package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/handler"
	"github.com/iliyamo/room-booking/internal/middleware"
)

// RegisterPublic registers the room directory reads, bookings and
// calendars.  They need no session; directory reads go through the
// response cache.
func RegisterPublic(e *echo.Echo, r *handler.RoomHandler, b *handler.BookingHandler, cache *middleware.ResponseCache) {
	cached := cache.Middleware()
	e.GET("/v1/rooms", r.List, cached)
	e.GET("/v1/rooms/:id", r.Get, cached)
	e.GET("/v1/rooms/:id/bookings", b.ListByRoom)
	e.GET("/v1/rooms/:id/calendar", b.Calendar)
}

// RegisterBookings registers the endpoints every signed-in user may call.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)
	e.POST("/v1/bookings", b.Create, auth)
	e.DELETE("/v1/bookings/:id", b.Cancel, auth)
	e.GET("/v1/me/credits", b.MyCredits, auth)
	e.GET("/v1/users/:id/credits", b.UserCredits, auth)
	e.GET("/v1/rooms/:id/credits", b.RoomCredits, auth)
}
