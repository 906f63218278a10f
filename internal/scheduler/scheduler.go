// Package scheduler runs the periodic maintenance jobs of the server.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Expirer cancels stale pending bookings.  service.BookingService
// satisfies it.
type Expirer interface {
	ExpirePending(ctx context.Context) (int, error)
}

// TokenPurger deletes refresh tokens that died before cutoff.
// repository.TokenRepo satisfies it.
type TokenPurger interface {
	PurgeDead(ctx context.Context, cutoff time.Time) (int64, error)
}

// tokenGrace is how long dead refresh tokens are kept before purging.
const tokenGrace = 24 * time.Hour

// Start schedules the pending-booking expiry every interval, plus a nightly
// refresh token purge when tokens is non-nil, and starts the scheduler.  The
// caller shuts it down.
func Start(exp Expirer, every time.Duration, tokens TokenPurger) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	_, err = s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() { RunExpiry(exp) }),
		gocron.WithName("expire-pending-bookings"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	if tokens != nil {
		_, err = s.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 30, 0))),
			gocron.NewTask(func() { RunPurge(tokens, time.Now()) }),
			gocron.WithName("purge-refresh-tokens"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, err
		}
	}
	s.Start()
	log.Printf("scheduler: pending booking expiry every %s", every)
	return s, nil
}

// RunExpiry runs one expiry pass with a bounded context.
func RunExpiry(exp Expirer) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := exp.ExpirePending(ctx)
	if err != nil {
		log.Printf("scheduler: expire pending failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: cancelled %d stale pending bookings", n)
	}
}

// RunPurge deletes refresh tokens dead for longer than a day as of now.
func RunPurge(tokens TokenPurger, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := tokens.PurgeDead(ctx, now.Add(-tokenGrace))
	if err != nil {
		log.Printf("scheduler: token purge failed: %v", err)
		return
	}
	log.Printf("scheduler: purged %d dead refresh tokens", n)
}
