package domain

import (
	"regexp"
	"strings"
	"time"
)

// Account represents a registered identity.
//
// The username is unique system-wide and the ID is assigned by the
// identity provider. Neither changes after creation.
type Account struct {
	// ID is the opaque, stable identifier handed out by the identity provider.
	ID string `json:"id"`

	// Username is the normalized, human-chosen handle.
	// Example: alice
	Username string `json:"username"`

	// DisplayName falls back to Username when none was given at registration.
	DisplayName string `json:"displayName"`

	CreatedAt time.Time `json:"createdAt"`
}

// DirectoryEntry maps a username to the account that owns it.
// It is written once at registration and never mutated.
type DirectoryEntry struct {
	Username  string    `json:"-"`
	AccountID string    `json:"uid"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is what an identity provider returns for an authenticated user.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	CreatedAt   time.Time

	// Token identifies the provider session. ExpiresAt is zero when the
	// provider does not expire sessions.
	Token     string
	ExpiresAt time.Time
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidUsername reports whether a normalized username can be used as the
// local part of a credential identifier.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}
