package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/diagnostics"
)

// Metrics counts every request by method, route template and status code.
// A nil handle turns it into a pass-through.
func Metrics(h *diagnostics.Handle) echo.MiddlewareFunc {
	if !h.Enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			code := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					code = he.Code
				} else if !c.Response().Committed {
					code = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			h.Request(c.Request().Method, route, strconv.Itoa(code))
			return err
		}
	}
}
