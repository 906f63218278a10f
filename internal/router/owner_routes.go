package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/handler"
	"github.com/iliyamo/room-booking/internal/middleware"
	"github.com/iliyamo/room-booking/internal/model"
)

// RegisterOwner registers owner-scoped endpoints: room writes and user
// management.  All routes require a valid JWT and the owner role.
func RegisterOwner(e *echo.Echo, r *handler.RoomHandler, a *handler.AdminHandler, jwtSecret string) {
	mw := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleOwner)}

	// ---- Rooms ----
	e.POST("/v1/rooms", r.Create, mw...)
	e.PUT("/v1/rooms/:id", r.Update, mw...)
	e.DELETE("/v1/rooms/:id", r.Delete, mw...)

	// ---- Users ----
	g := e.Group("/v1/admin", mw...)
	g.GET("/users", a.ListUsers)
	g.GET("/auth-users", a.ListAuthUsers)
	g.DELETE("/users/:id", a.DeleteUser)
	g.PUT("/users/:id/password", a.UpdatePassword)
}
