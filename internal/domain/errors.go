package domain

import "errors"

// Authentication errors.
var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrNetwork            = errors.New("identity provider unreachable")
)

// Data errors.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrRemote          = errors.New("remote store failure")

	// ErrSessionChanged is returned when the session changed while a list
	// was in flight; the result was discarded.
	ErrSessionChanged = errors.New("session changed during request")
)

// Export errors.
var (
	ErrConversion        = errors.New("markup cannot be converted")
	ErrExportUnavailable = errors.New("export renderer unavailable")
)

// Identity provider signals. They are translated by the session manager and
// never reach callers of the core.
var (
	ErrIdentityExists   = errors.New("identity already exists")
	ErrIdentityRejected = errors.New("identity rejected")
)
