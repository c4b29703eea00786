package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

// ─────────────────────────────────────────────────────────────────
// Username directory
// ─────────────────────────────────────────────────────────────────

// LookupUsername returns the directory entry for username.
func (s *Store) LookupUsername(ctx context.Context, username string) (domain.DirectoryEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.DirectoryEntry{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.usernames[username]
	return e, ok, nil
}

// PutUsername writes a directory entry. Like the Redis store it does not
// check for an existing entry.
func (s *Store) PutUsername(ctx context.Context, entry domain.DirectoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usernames[entry.Username] = entry
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Identity provider
// ─────────────────────────────────────────────────────────────────

// CreateUser creates an account and opens a session for it.
func (s *Store) CreateUser(ctx context.Context, email, password string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.credentials[email]; taken {
		return domain.Identity{}, domain.ErrIdentityExists
	}
	acct := &accountRecord{
		uid:          uuid.NewString(),
		email:        email,
		passwordHash: hash,
		createdAt:    s.now().UTC(),
	}
	s.credentials[email] = acct.uid
	s.accounts[acct.uid] = acct
	return s.openSessionLocked(acct)
}

// SignIn checks the password and opens a session.
func (s *Store) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, ok := s.credentials[email]
	if !ok {
		return domain.Identity{}, domain.ErrIdentityRejected
	}
	acct := s.accounts[uid]
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return domain.Identity{}, domain.ErrIdentityRejected
	}
	return s.openSessionLocked(acct)
}

// SignOut ends a session. Unknown tokens are rejected.
func (s *Store) SignOut(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return domain.ErrIdentityRejected
	}
	delete(s.sessions, token)
	return nil
}

// UpdateProfile sets the display name of the session's account.
func (s *Store) UpdateProfile(ctx context.Context, token, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return domain.ErrIdentityRejected
	}
	s.accounts[sess.uid].displayName = displayName
	return nil
}

// CurrentUser resolves a session token. Sessions past their expiry are
// dropped and reported to expiry watchers.
func (s *Store) CurrentUser(ctx context.Context, token string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	s.mu.Lock()
	sess, ok := s.sessions[token]
	expired := ok && !s.now().Before(sess.expiresAt)
	if expired {
		delete(s.sessions, token)
	}
	var id domain.Identity
	if ok && !expired {
		id = identityOf(s.accounts[sess.uid], token, sess.expiresAt)
	}
	s.mu.Unlock()

	if expired {
		s.notifyExpired(token)
	}
	if !ok || expired {
		return domain.Identity{}, domain.ErrIdentityRejected
	}
	return id, nil
}

// WatchExpiry registers fn for sessions the store expires.
func (s *Store) WatchExpiry(fn func(token string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// ExpireSession drops a session as if its lifetime had ended and notifies
// watchers. It reports whether the token existed.
func (s *Store) ExpireSession(token string) bool {
	s.mu.Lock()
	_, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if ok {
		s.notifyExpired(token)
	}
	return ok
}

// SweepSessions expires every session past its lifetime.
func (s *Store) SweepSessions() int {
	now := s.now()
	s.mu.Lock()
	var expired []string
	for token, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, token)
			expired = append(expired, token)
		}
	}
	s.mu.Unlock()

	for _, token := range expired {
		s.notifyExpired(token)
	}
	return len(expired)
}

func (s *Store) notifyExpired(token string) {
	s.mu.RLock()
	fns := make([]func(string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(token)
	}
}

func (s *Store) openSessionLocked(acct *accountRecord) (domain.Identity, error) {
	token, err := newToken()
	if err != nil {
		return domain.Identity{}, err
	}
	expiresAt := s.now().Add(s.sessionTTL).UTC()
	s.sessions[token] = &sessionRecord{uid: acct.uid, expiresAt: expiresAt}
	return identityOf(acct, token, expiresAt), nil
}

func identityOf(acct *accountRecord, token string, expiresAt time.Time) domain.Identity {
	return domain.Identity{
		UID:         acct.uid,
		Email:       acct.email,
		DisplayName: acct.displayName,
		CreatedAt:   acct.createdAt,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
