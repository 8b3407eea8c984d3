package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider values for User.Provider.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User represents an account in the system. PasswordHash is set only for
// accounts that support local login; accounts created purely through an
// OAuth provider carry a nil hash until a local password is set.
//
// Email is stored as an opaque, case-sensitive string (trimmed on input);
// uniqueness is byte-wise on the stored value.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	Name         *string   `json:"name,omitempty"`
	Provider     string    `json:"provider"`
	ProviderID   *string   `json:"provider_id,omitempty"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsLocal reports whether the account supports password login.
func (u *User) IsLocal() bool {
	return u.Provider == ProviderLocal && u.PasswordHash != nil && *u.PasswordHash != ""
}

// Public returns the representation safe to hand to the route layer. The
// password hash never leaves this package boundary; json:"-" guards the
// encoder path and Public guards everything else.
func (u *User) Public() *User {
	clone := *u
	clone.PasswordHash = nil
	return &clone
}
