// Package router registers the HTTP routes of the API on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/diagnostics"
	"github.com/iliyamo/room-booking/internal/handler"
	"github.com/iliyamo/room-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// The metrics endpoint is only exposed when diagnostics are enabled; an
// empty metricsPath means /metrics.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, diag *diagnostics.Handle, metricsPath string) {
	e.GET("/healthz", handler.Health(db))
	if !diag.Enabled() {
		return
	}
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	e.GET(metricsPath, echo.WrapHandler(diag.HTTPHandler()))
}

// RegisterAuth registers the auth provider.  Credential endpoints sit
// behind the stricter limiter; /v1/me needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/signup", a.SignUp)
	g.POST("/login", a.Login)
	g.POST("/otp", a.SendOTP)
	g.POST("/otp/verify", a.VerifyOTP)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/recover", a.Recover)
	g.POST("/reset", a.Reset)

	auth := middleware.JWTAuth(jwtSecret)
	e.GET("/v1/me", a.Me, auth)
	e.PUT("/v1/me/password", a.UpdatePassword, auth)
}
