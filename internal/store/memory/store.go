// Package memory is an in-process document store and identity provider.
// It backs tests and JOT_STORE=memory, and follows the same contracts as the
// Redis store.
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

// DefaultSessionTTL matches the Redis store.
const DefaultSessionTTL = 24 * time.Hour

// Options tune the store. Zero values select defaults.
type Options struct {
	SessionTTL time.Duration    // provider session lifetime
	BcryptCost int              // password hash cost (bcrypt.DefaultCost)
	Now        func() time.Time // clock, time.Now by default
}

// Store keeps notes, usernames, accounts and sessions in maps.
type Store struct {
	mu        sync.RWMutex
	notes     map[string]domain.Note           // ID -> Note
	byOwner   map[string][]string              // account ID -> note IDs in creation order
	usernames map[string]domain.DirectoryEntry // username -> entry

	credentials map[string]string          // email -> UID
	accounts    map[string]*accountRecord  // UID -> account
	sessions    map[string]*sessionRecord  // token -> session
	watchers    map[uint64]func(token string)
	nextWatcher uint64

	sessionTTL time.Duration
	cost       int
	now        func() time.Time
}

type accountRecord struct {
	uid          string
	email        string
	displayName  string
	passwordHash []byte
	createdAt    time.Time
}

type sessionRecord struct {
	uid       string
	expiresAt time.Time
}

// New creates an empty store.
func New(opts Options) *Store {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		notes:       make(map[string]domain.Note),
		byOwner:     make(map[string][]string),
		usernames:   make(map[string]domain.DirectoryEntry),
		credentials: make(map[string]string),
		accounts:    make(map[string]*accountRecord),
		sessions:    make(map[string]*sessionRecord),
		watchers:    make(map[uint64]func(string)),
		sessionTTL:  opts.SessionTTL,
		cost:        opts.BcryptCost,
		now:         opts.Now,
	}
}

// Count returns the number of stored notes across all owners.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.notes)
}

// Ping reports whether ctx is still usable; the store itself is always up.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
