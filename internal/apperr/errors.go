// Package apperr defines the error taxonomy shared by the booking core, the
// repositories and the HTTP layer.  Every error surfaced to a caller wraps
// exactly one of these sentinels so that callers can branch with errors.Is
// regardless of which layer produced it.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means there is no session or the session is invalid.
	ErrAuth = errors.New("authentication required")

	// ErrForbidden is a permission denial for an authenticated caller.  It
	// wraps ErrAuth so callers that only care about "auth failed" see both.
	ErrForbidden error = denied{}

	// ErrConflict is a double-booking attempt.
	ErrConflict = errors.New("date already booked")

	// ErrNotFound is an unknown id.
	ErrNotFound = errors.New("not found")

	// ErrReference is a dangling foreign key such as an unknown tenant.
	ErrReference = errors.New("invalid reference")

	// ErrFetch is transport or backend unavailability.
	ErrFetch = errors.New("backend unavailable")

	// ErrValidation is a malformed draft.
	ErrValidation = errors.New("validation failed")

	// ErrTimeout is a remote call that exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
)

// Validation returns an ErrValidation carrying a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Kind returns the sentinel an error belongs to, or nil when it is not part
// of the taxonomy.  ErrForbidden is reported before ErrAuth.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range []error{ErrForbidden, ErrAuth, ErrConflict, ErrNotFound, ErrReference, ErrValidation, ErrTimeout, ErrFetch} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

type denied struct{}

func (denied) Error() string { return "permission denied" }
func (denied) Unwrap() error { return ErrAuth }
