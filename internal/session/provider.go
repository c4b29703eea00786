package session

import (
	"context"
	"strings"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

// CredentialDomain is appended to usernames to build the e-mail shaped
// identifier the identity provider expects. It is never shown to users.
const CredentialDomain = "users.jot.internal"

// IdentityProvider authenticates e-mail shaped identifiers.
//
// Implementations return domain.ErrIdentityExists from CreateUser when the
// identifier is taken and domain.ErrIdentityRejected when a sign-in or token
// lookup is refused. Any other error is treated as a transport failure.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password string) (domain.Identity, error)
	SignIn(ctx context.Context, email, password string) (domain.Identity, error)
	SignOut(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, token, displayName string) error
	CurrentUser(ctx context.Context, token string) (domain.Identity, error)

	// WatchExpiry calls fn with the token of every session the provider
	// expires on its own. The returned func stops delivery.
	WatchExpiry(fn func(token string)) (cancel func())
}

// Directory records which account owns which username.
type Directory interface {
	// LookupUsername returns found=false when no entry exists.
	LookupUsername(ctx context.Context, username string) (entry domain.DirectoryEntry, found bool, err error)
	PutUsername(ctx context.Context, entry domain.DirectoryEntry) error
}

// CredentialID derives the provider identifier for a normalized username.
func CredentialID(username string) string {
	return username + "@" + CredentialDomain
}

// usernameFromCredential reverses CredentialID.
func usernameFromCredential(email string) string {
	return strings.TrimSuffix(email, "@"+CredentialDomain)
}
