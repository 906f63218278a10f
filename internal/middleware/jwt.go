package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/utils"
)

// JWTAuth validates a Bearer access token and injects its subject and role
// into the context as "user_id" and "role" (both strings).  Wrap protected
// routes with it; handlers read the caller with CurrentIdentity.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", claims.Subject)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth for public routes: a valid token identifies the
// caller, a missing or invalid one leaves the request anonymous.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if claims, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set("user_id", claims.Subject)
					c.Set("role", claims.Role)
				}
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}
