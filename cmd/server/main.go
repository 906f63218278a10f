package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/room-booking/internal/config"
	"github.com/iliyamo/room-booking/internal/database"
	"github.com/iliyamo/room-booking/internal/diagnostics"
	"github.com/iliyamo/room-booking/internal/handler"
	"github.com/iliyamo/room-booking/internal/middleware"
	"github.com/iliyamo/room-booking/internal/queue"
	"github.com/iliyamo/room-booking/internal/repository"
	"github.com/iliyamo/room-booking/internal/router"
	"github.com/iliyamo/room-booking/internal/scheduler"
	"github.com/iliyamo/room-booking/internal/service"
)

func main() {
	cfg := config.Load()
	bcfg := config.LoadBookingConfig()
	mcfg := config.LoadMailConfig()
	dcfg := config.LoadDiagnosticsConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("db: migrate: %v", err)
		}
	}

	// Redis is optional: without it the cache, the rate limiter and
	// one-time codes are disabled.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		pub, err := queue.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Printf("events: publishing disabled: %v", err)
		} else {
			defer pub.Close()
			events = pub
		}
		go func() {
			err := queue.StartAuditConsumer(ctx, queue.ConsumerConfig{
				URL:      cfg.RabbitURL,
				Exchange: cfg.RabbitExchange,
				LogDir:   envOr("AUDIT_LOG_DIR", "logs"),
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("events: audit consumer stopped: %v", err)
			}
		}()
	}

	var diag *diagnostics.Handle
	if dcfg.Enabled {
		diag = diagnostics.New()
		log.Printf("diagnostics: metrics on %s", dcfg.Path)
	}

	bookingRepo := repository.NewBookingRepo(db)
	roomRepo := repository.NewRoomRepo(db)
	profileRepo := repository.NewProfileRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	bookings := service.NewBookingService(bookingRepo, roomRepo, service.BookingOptions{
		Policy:      repository.CreditPolicy{PerRentalDay: bcfg.CreditsPerRentalDay},
		PendingTTL:  bcfg.PendingTTL,
		Events:      events,
		Diagnostics: diag,
	})
	rooms := service.NewRoomService(roomRepo, events, cache)
	admin := service.NewAdminService(profileRepo, bookingRepo, events, cfg.BcryptCost)

	authOpts := service.AuthOptions{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		ResetTTL:       mcfg.TokenTTL,
		ResetURL:       mcfg.ResetURL,
		OwnerEmails:    cfg.OwnerEmails,
		Mailer:         service.NewMailer(mcfg),
	}
	if codes := service.NewRedisCodes(rdb, ""); codes != nil {
		authOpts.Codes = codes
	}
	auth := service.NewAuthService(profileRepo, tokenRepo, authOpts)

	sched, err := scheduler.Start(bookings, bcfg.ExpiryEvery, tokenRepo)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("scheduler: shutdown: %v", err)
		}
	}()

	rl := config.LoadRateLimitConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger(), echomw.Recover())
	e.Use(middleware.Metrics(diag))
	// Identify signed-in callers early so rate limit keys can use their id.
	e.Use(middleware.OptionalJWT(cfg.JWTSecret))
	e.Use(middleware.NewTokenBucket(rl, rdb))

	roomH := handler.NewRoomHandler(rooms)
	bookingH := handler.NewBookingHandler(bookings)
	router.RegisterRoutes(e, db, diag, dcfg.Path)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), cfg.JWTSecret, middleware.NewTokenBucket(rl.Auth(), rdb))
	router.RegisterPublic(e, roomH, bookingH, cache)
	router.RegisterBookings(e, bookingH, cfg.JWTSecret)
	router.RegisterOwner(e, roomH, handler.NewAdminHandler(admin), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
