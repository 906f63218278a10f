// Package diagnostics is the opt-in debugging handle.  main creates one only
// when DIAGNOSTICS_ENABLED is set and passes it to the components that
// report into it.  A nil *Handle is valid and records nothing.
package diagnostics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/room-booking/internal/model"
)

// Handle owns a private prometheus registry.
type Handle struct {
	reg *prometheus.Registry

	requests       *prometheus.CounterVec
	conflicts      prometheus.Counter
	rollbacks      *prometheus.CounterVec
	unknownTypes   *prometheus.CounterVec
	expiredPending prometheus.Counter
}

// New builds a Handle with its own registry.
func New() *Handle {
	h := &Handle{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombooking_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombooking_booking_conflicts_total",
			Help: "Create attempts rejected by the double-booking check.",
		}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombooking_optimistic_rollbacks_total",
			Help: "Optimistic store mutations reverted after a failed remote call.",
		}, []string{"op", "kind"}),
		unknownTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombooking_unknown_booking_type_total",
			Help: "Occupying bookings with a type the calculator does not know.",
		}, []string{"type"}),
		expiredPending: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombooking_pending_expired_total",
			Help: "Pending bookings cancelled by the expiry job.",
		}),
	}
	h.reg.MustRegister(h.requests, h.conflicts, h.rollbacks, h.unknownTypes, h.expiredPending)
	return h
}

// Enabled reports whether h records anything.
func (h *Handle) Enabled() bool { return h != nil }

// Request counts one HTTP request.
func (h *Handle) Request(method, route, code string) {
	if h == nil {
		return
	}
	h.requests.WithLabelValues(method, route, code).Inc()
}

// Conflict counts one rejected double booking.
func (h *Handle) Conflict() {
	if h == nil {
		return
	}
	h.conflicts.Inc()
}

// Rollback counts one reverted optimistic mutation.
func (h *Handle) Rollback(op, kind string) {
	if h == nil {
		return
	}
	h.rollbacks.WithLabelValues(op, kind).Inc()
}

// UnknownBookingType counts a data-integrity signal from the calculator.
func (h *Handle) UnknownBookingType(t model.BookingType) {
	if h == nil {
		return
	}
	h.unknownTypes.WithLabelValues(string(t)).Inc()
}

// PendingExpired counts bookings cancelled by the expiry job.
func (h *Handle) PendingExpired(n int) {
	if h == nil || n <= 0 {
		return
	}
	h.expiredPending.Add(float64(n))
}

// Gatherer exposes the registry for tests and custom exporters.
func (h *Handle) Gatherer() prometheus.Gatherer {
	if h == nil {
		return prometheus.NewRegistry()
	}
	return h.reg
}

// HTTPHandler serves the registry in the prometheus text format.
func (h *Handle) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(h.Gatherer(), promhttp.HandlerOpts{})
}
