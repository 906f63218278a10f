package config

import "time"

// BookingConfig holds the business knobs of the booking procedures.
type BookingConfig struct {
	CreditsPerRentalDay int           // credits a tenant earns per rented day
	PendingTTL          time.Duration // pending bookings older than this expire
	ExpiryEvery         time.Duration // how often the expiry job runs
	ClientTimeout       time.Duration // bound on every remote call of the store
}

// LoadBookingConfig reads BOOKING_* variables.
func LoadBookingConfig() BookingConfig {
	c := BookingConfig{
		CreditsPerRentalDay: envInt("CREDITS_PER_RENTAL_DAY", 1),
		PendingTTL:          envDur("PENDING_BOOKING_TTL", 48*time.Hour),
		ExpiryEvery:         envDur("PENDING_EXPIRY_EVERY", 15*time.Minute),
		ClientTimeout:       envDur("BOOKING_CLIENT_TIMEOUT", 10*time.Second),
	}
	if c.CreditsPerRentalDay < 0 {
		c.CreditsPerRentalDay = 0
	}
	if c.ExpiryEvery < time.Minute {
		c.ExpiryEvery = time.Minute
	}
	return c
}

// MailConfig configures the SMTP relay used for password recovery.  An
// empty Host disables sending; recovery links are then only logged.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ResetURL string // the emailed link is ResetURL + "?token=..."
	TokenTTL time.Duration
}

// LoadMailConfig reads SMTP_* and PASSWORD_RESET_* variables.
func LoadMailConfig() MailConfig {
	return MailConfig{
		Host:     envStr("SMTP_HOST", ""),
		Port:     envInt("SMTP_PORT", 587),
		Username: envStr("SMTP_USERNAME", ""),
		Password: envStr("SMTP_PASSWORD", ""),
		From:     envStr("SMTP_FROM", "no-reply@room-booking.local"),
		ResetURL: envStr("PASSWORD_RESET_URL", "http://localhost:3000/reset-password"),
		TokenTTL: envDur("PASSWORD_RESET_TTL", time.Hour),
	}
}

// DiagnosticsConfig enables the opt-in metrics handle and its endpoint.
type DiagnosticsConfig struct {
	Enabled bool
	Path    string
}

// LoadDiagnosticsConfig reads DIAGNOSTICS_*.
func LoadDiagnosticsConfig() DiagnosticsConfig {
	return DiagnosticsConfig{
		Enabled: envBool("DIAGNOSTICS_ENABLED", false),
		Path:    envStr("DIAGNOSTICS_PATH", "/metrics"),
	}
}
