// Package session owns the authenticated identity of one client.
//
// Usernames are turned into e-mail shaped identifiers for the identity
// provider, and a directory entry records which account owns each username.
//
// Registration checks the directory before creating the provider account and
// writes the entry afterwards. The two steps are not atomic: two concurrent
// registrations of the same username can both pass the directory check. The
// provider rejects the second identifier, but a provider without that check
// would end up with two accounts. Closing the gap needs a transactional
// uniqueness constraint in the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/metrics"
)

// Manager exclusively owns the current Session value.
type Manager struct {
	provider  IdentityProvider
	directory Directory
	logger    logger.Logger
	now       func() time.Time

	mu        sync.Mutex
	current   domain.Session
	subs      map[uint64]*Subscription
	nextSub   uint64
	stopWatch func()
	closed    bool
}

// NewManager creates an anonymous manager and starts listening for sessions
// the provider expires on its own.
func NewManager(provider IdentityProvider, directory Directory, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		provider:  provider,
		directory: directory,
		logger:    log.With(logger.Component("session")),
		now:       time.Now,
		subs:      make(map[uint64]*Subscription),
	}
	m.stopWatch = provider.WatchExpiry(m.handleExpiry)
	return m
}

// Register creates an account for username and signs it in.
func (m *Manager) Register(ctx context.Context, username, password, displayName string) (acct domain.Account, err error) {
	defer func() { metrics.AuthAttempts.WithLabelValues("register", metrics.Outcome(err)).Inc() }()

	username = domain.NormalizeUsername(username)
	if username == "" || password == "" {
		return domain.Account{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if !domain.ValidUsername(username) {
		return domain.Account{}, fmt.Errorf("%w: username may only contain letters, digits, '.', '_' and '-'", domain.ErrValidation)
	}

	_, found, err := m.directory.LookupUsername(ctx, username)
	if err != nil {
		return domain.Account{}, fmt.Errorf("%w: lookup username: %w", domain.ErrNetwork, err)
	}
	if found {
		return domain.Account{}, domain.ErrDuplicateUsername
	}

	id, err := m.provider.CreateUser(ctx, CredentialID(username), password)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityExists) {
			return domain.Account{}, domain.ErrDuplicateUsername
		}
		return domain.Account{}, fmt.Errorf("%w: create user: %w", domain.ErrNetwork, err)
	}

	entry := domain.DirectoryEntry{
		Username:  username,
		AccountID: id.UID,
		CreatedAt: m.now().UTC(),
	}
	if err := m.directory.PutUsername(ctx, entry); err != nil {
		m.signOutQuietly(ctx, id.Token)
		return domain.Account{}, fmt.Errorf("%w: write directory entry: %w", domain.ErrNetwork, err)
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = username
	}
	if err := m.provider.UpdateProfile(ctx, id.Token, name); err != nil {
		m.signOutQuietly(ctx, id.Token)
		return domain.Account{}, fmt.Errorf("%w: set display name: %w", domain.ErrNetwork, err)
	}
	id.DisplayName = name

	acct = accountFrom(id)
	m.establish(id, acct, domain.ReasonRegister)
	m.logger.Info("account registered",
		logger.String("username", acct.Username),
		logger.String("account_id", acct.ID))
	return acct, nil
}

// Login signs in an existing account. Every rejection is reported as
// domain.ErrInvalidCredentials so callers cannot tell unknown users apart.
func (m *Manager) Login(ctx context.Context, username, password string) (acct domain.Account, err error) {
	defer func() { metrics.AuthAttempts.WithLabelValues("login", metrics.Outcome(err)).Inc() }()

	username = domain.NormalizeUsername(username)
	if username == "" || password == "" {
		return domain.Account{}, domain.ErrInvalidCredentials
	}

	id, err := m.provider.SignIn(ctx, CredentialID(username), password)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityRejected) {
			m.logger.Debug("login rejected", logger.String("username", username))
			return domain.Account{}, domain.ErrInvalidCredentials
		}
		return domain.Account{}, fmt.Errorf("%w: sign in: %w", domain.ErrNetwork, err)
	}

	acct = accountFrom(id)
	m.establish(id, acct, domain.ReasonLogin)
	m.logger.Info("logged in", logger.String("account_id", acct.ID))
	return acct, nil
}

// Resume binds the manager to an existing provider session.
func (m *Manager) Resume(ctx context.Context, token string) (acct domain.Account, err error) {
	defer func() { metrics.AuthAttempts.WithLabelValues("resume", metrics.Outcome(err)).Inc() }()

	if token == "" {
		return domain.Account{}, domain.ErrInvalidCredentials
	}
	id, err := m.provider.CurrentUser(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityRejected) {
			return domain.Account{}, domain.ErrInvalidCredentials
		}
		return domain.Account{}, fmt.Errorf("%w: current user: %w", domain.ErrNetwork, err)
	}

	acct = accountFrom(id)
	m.establish(id, acct, domain.ReasonResume)
	m.logger.Debug("session resumed", logger.String("account_id", acct.ID))
	return acct, nil
}

// Logout ends the current session. It is a no-op when already anonymous.
func (m *Manager) Logout(ctx context.Context) (err error) {
	cur := m.Session()
	if cur.Anonymous() {
		return nil
	}
	defer func() { metrics.AuthAttempts.WithLabelValues("logout", metrics.Outcome(err)).Inc() }()

	// A rejected token is already gone on the provider side.
	if err := m.provider.SignOut(ctx, cur.Token); err != nil && !errors.Is(err, domain.ErrIdentityRejected) {
		return fmt.Errorf("%w: sign out: %w", domain.ErrNetwork, err)
	}

	m.clear(cur.Token, domain.ReasonLogout)
	m.logger.Info("logged out", logger.String("account_id", cur.AccountID()))
	return nil
}

// Current returns the authenticated account, if any.
func (m *Manager) Current() (domain.Account, bool) {
	s := m.Session()
	if s.Anonymous() {
		return domain.Account{}, false
	}
	return *s.Account, true
}

// Session returns a copy of the current session value.
func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.current)
}

// Subscribe starts delivery of session changes. Events published while the
// subscriber is not receiving are coalesced: C always holds the latest one.
func (m *Manager) Subscribe() *Subscription {
	ch := make(chan domain.SessionEvent, 1)
	sub := &Subscription{C: ch, ch: ch, m: m}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		sub.closed = true
		return sub
	}
	m.nextSub++
	sub.id = m.nextSub
	m.subs[sub.id] = sub
	return sub
}

// Close stops watching the provider and ends every subscription.
// The session value is left as is.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for id, sub := range m.subs {
		delete(m.subs, id)
		sub.closed = true
		close(sub.ch)
	}
	stop := m.stopWatch
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (m *Manager) handleExpiry(token string) {
	if m.clear(token, domain.ReasonExpired) {
		m.logger.Info("session expired by provider")
	}
}

func (m *Manager) establish(id domain.Identity, acct domain.Account, reason domain.SessionReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Session{
		Account:   &acct,
		Token:     id.Token,
		ExpiresAt: id.ExpiresAt,
	}
	a := acct
	m.publishLocked(domain.SessionEvent{Account: &a, Reason: reason})
}

// clear drops the session only if it still carries token.
func (m *Manager) clear(token string, reason domain.SessionReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Anonymous() || m.current.Token != token {
		return false
	}
	m.current = domain.Session{}
	m.publishLocked(domain.SessionEvent{Reason: reason})
	return true
}

func (m *Manager) publishLocked(ev domain.SessionEvent) {
	for _, sub := range m.subs {
		sub.deliver(ev)
	}
}

func (m *Manager) signOutQuietly(ctx context.Context, token string) {
	if err := m.provider.SignOut(ctx, token); err != nil {
		m.logger.Warn("failed to sign out after aborted registration", logger.Error(err))
	}
}

func accountFrom(id domain.Identity) domain.Account {
	username := usernameFromCredential(id.Email)
	name := id.DisplayName
	if name == "" {
		name = username
	}
	return domain.Account{
		ID:          id.UID,
		Username:    username,
		DisplayName: name,
		CreatedAt:   id.CreatedAt,
	}
}

func copySession(s domain.Session) domain.Session {
	if s.Account != nil {
		a := *s.Account
		s.Account = &a
	}
	return s
}
