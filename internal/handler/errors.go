// Package handler exposes the booking services over HTTP with echo.  Every
// handler answers errors as {"error": "..."} with the status derived from
// the apperr taxonomy.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/repository"
)

// requestTimeout bounds the storage work of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	if errors.Is(err, repository.ErrEmailExists) {
		return http.StatusConflict
	}
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrAuth:
		return http.StatusUnauthorized
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrReference:
		return http.StatusUnprocessableEntity
	case apperr.ErrFetch:
		return http.StatusServiceUnavailable
	case apperr.ErrTimeout:
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError answers err.  Internal errors are logged and hidden from the
// client.
func writeError(c echo.Context, err error) error {
	status := StatusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusConflict:
		if errors.Is(err, apperr.ErrConflict) {
			msg = apperr.ErrConflict.Error()
		} else {
			msg = repository.ErrEmailExists.Error()
		}
	case http.StatusForbidden:
		msg = "forbidden"
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusBadRequest, http.StatusUnauthorized:
		// Wrapped messages carry the operation name first.
		if i := strings.LastIndex(msg, ": "+apperr.Kind(err).Error()); i >= 0 {
			msg = msg[i+2:]
		}
	case http.StatusInternalServerError:
		log.Printf("http: %s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
