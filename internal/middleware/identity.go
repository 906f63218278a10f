package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/model"
)

// CurrentIdentity returns the caller placed in the context by JWTAuth.  The
// zero Identity means the request is anonymous.
func CurrentIdentity(c echo.Context) model.Identity {
	id, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	if id == "" {
		return model.Identity{}
	}
	return model.Identity{ID: id, Role: model.Role(role)}
}
