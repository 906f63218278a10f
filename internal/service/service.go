// Package service implements the booking, room directory, user
// administration and auth use cases on top of the repositories.  Every
// dependency is an interface so the services can be exercised with
// in-memory fakes.
package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/room-booking/internal/apperr"
	"github.com/iliyamo/room-booking/internal/model"
)

// EventPublisher publishes domain events.  queue.Publisher satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// CacheInvalidator drops cached directory responses after a room write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// publish sends an event on a detached context.  Publishing is best
// effort: a failure is logged and never fails the request.
func publish(p EventPublisher, key string, v any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.PublishJSON(ctx, key, v); err != nil {
		log.Printf("events: publish %s failed: %v", key, err)
	}
}

func invalidate(c CacheInvalidator) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Invalidate(ctx); err != nil {
		log.Printf("cache: invalidate failed: %v", err)
	}
}

func requireOwner(caller model.Identity) error {
	if caller.ID == "" {
		return apperr.ErrAuth
	}
	if !caller.IsOwner() {
		return apperr.ErrForbidden
	}
	return nil
}
