// Package redis stores notes, the username directory and provider
// accounts and sessions in Redis.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/jot/internal/logger"
)

const (
	// DefaultSessionTTL is the lifetime of a provider session (24 hours)
	DefaultSessionTTL = 24 * time.Hour
)

// Options tune the store. Zero values select defaults.
type Options struct {
	SessionTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

// Store handles Redis operations for notes, usernames and identities
type Store struct {
	client *redis.Client
	logger logger.Logger

	sessionTTL time.Duration
	cost       int
	now        func() time.Time

	mu          sync.RWMutex
	watchers    map[uint64]func(token string)
	nextWatcher uint64
	sub         *redis.PubSub
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, opts Options, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
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
		client:     client,
		logger:     log.With(logger.Component("redis-store")),
		sessionTTL: opts.SessionTTL,
		cost:       opts.BcryptCost,
		now:        opts.Now,
		watchers:   make(map[uint64]func(string)),
	}
}

// Ping checks that Redis answers
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
