package model

import "time"

// Role gates administrative affordances.  The empty role is a plain user.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
	RoleNone   Role = ""
)

// Valid reports whether r is a known role, including the empty role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleTenant, RoleNone:
		return true
	}
	return false
}

// Profile is the public view of a user from the `profiles` table.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Identity is the authenticated caller as seen by the auth provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`
}

// IsOwner reports whether the identity carries the owner role.
func (i Identity) IsOwner() bool { return i.Role == RoleOwner }

// AuthUser is one row of the list-all-auth-users procedure.
type AuthUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// UserWithCredits joins a profile with its credit projection for the
// owner's user management view.
type UserWithCredits struct {
	Profile
	Phone              string `json:"phone"`
	TotalCreditsEarned int    `json:"total_credits_earned"`
	TotalCreditsUsed   int    `json:"total_credits_used"`
	AvailableCredits   int    `json:"available_credits"`
}
