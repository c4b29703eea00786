// Package workspace keeps one session manager and note repository per
// client session for the HTTP boundary.
//
// A workspace is keyed by its provider session token. Requests carrying an
// unknown token resume the provider session into a fresh workspace, so a
// restart or an eviction costs one note list, not a new login.
package workspace

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/notes"
	"github.com/MrSnakeDoc/jot/internal/session"
)

// Backend is everything a workspace needs from the store.
type Backend interface {
	session.IdentityProvider
	session.Directory
	notes.Store
}

// Workspace pairs the session manager of one client with its repository.
type Workspace struct {
	Sessions *session.Manager
	Notes    *notes.Repository

	lastSeen atomic.Int64 // unix nanoseconds
}

// LastSeen returns the time of the last request that used the workspace.
func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

func (w *Workspace) touch(t time.Time) {
	w.lastSeen.Store(t.UnixNano())
}

// Registry maps session tokens to workspaces.
type Registry struct {
	backend Backend
	logger  logger.Logger
	now     func() time.Time
	resumes singleflight.Group

	mu      sync.Mutex
	byToken map[string]*Workspace
}

// NewRegistry creates an empty registry.
func NewRegistry(backend Backend, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		backend: backend,
		logger:  log,
		now:     time.Now,
		byToken: make(map[string]*Workspace),
	}
}

// New returns an anonymous workspace that is not registered yet. Sign it in,
// then hand it to Adopt.
func (r *Registry) New() *Workspace {
	m := session.NewManager(r.backend, r.backend, r.logger)
	return &Workspace{
		Sessions: m,
		Notes:    notes.NewRepository(r.backend, m, r.logger),
	}
}

// Adopt registers a signed-in workspace under its session token and loads
// its notes. The workspace is dropped once its session ends. An anonymous
// workspace is closed and rejected.
func (r *Registry) Adopt(ctx context.Context, ws *Workspace) (string, error) {
	s := ws.Sessions.Session()
	if s.Anonymous() {
		ws.Sessions.Close()
		return "", domain.ErrUnauthenticated
	}
	ws.touch(r.now())

	sub := ws.Sessions.Subscribe()
	go r.watch(s.Token, ws, sub)

	if _, err := ws.Notes.List(ctx); err != nil {
		r.logger.Warn("initial note list failed",
			logger.String("account_id", s.AccountID()),
			logger.Error(err))
	}

	r.mu.Lock()
	old := r.byToken[s.Token]
	r.byToken[s.Token] = ws
	r.mu.Unlock()

	if old != nil && old != ws {
		old.Sessions.Close()
	}
	return s.Token, nil
}

// Get returns the workspace for token, resuming the provider session when
// the registry does not know it. Concurrent misses for one token share a
// single resume, which ignores cancellation of the request that started it.
// Unknown or expired tokens yield domain.ErrInvalidCredentials.
func (r *Registry) Get(ctx context.Context, token string) (*Workspace, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	if ws := r.lookup(token); ws != nil {
		return ws, nil
	}

	resumeCtx := context.WithoutCancel(ctx)
	v, err, _ := r.resumes.Do(token, func() (any, error) {
		if ws := r.lookup(token); ws != nil {
			return ws, nil
		}
		ws := r.New()
		if _, err := ws.Sessions.Resume(resumeCtx, token); err != nil {
			ws.Sessions.Close()
			return nil, err
		}
		if _, err := r.Adopt(resumeCtx, ws); err != nil {
			return nil, err
		}
		return ws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Workspace), nil
}

// Drop forgets the workspace for token and closes it.
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	ws := r.byToken[token]
	delete(r.byToken, token)
	r.mu.Unlock()

	if ws != nil {
		ws.Sessions.Close()
	}
}

// Sweep drops workspaces idle for longer than idle and returns how many
// went. Their provider sessions stay valid and can be resumed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Workspace
	for token, ws := range r.byToken {
		if ws.LastSeen().Before(cutoff) {
			delete(r.byToken, token)
			stale = append(stale, ws)
		}
	}
	r.mu.Unlock()

	for _, ws := range stale {
		ws.Sessions.Close()
	}
	return len(stale)
}

// Len returns the number of registered workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

// Close drops every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.byToken
	r.byToken = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range all {
		ws.Sessions.Close()
	}
}

// lookup returns a live workspace for token and marks it used. A workspace
// whose session already ended is dropped.
func (r *Registry) lookup(token string) *Workspace {
	r.mu.Lock()
	ws := r.byToken[token]
	r.mu.Unlock()
	if ws == nil {
		return nil
	}
	if ws.Sessions.Session().Token != token {
		r.remove(token, ws)
		return nil
	}
	ws.touch(r.now())
	return ws
}

// watch drops ws once its session ends by logout or expiry.
func (r *Registry) watch(token string, ws *Workspace, sub *session.Subscription) {
	for ev := range sub.C {
		if ev.Account != nil {
			continue
		}
		r.logger.Debug("session ended, dropping workspace", logger.String("reason", string(ev.Reason)))
		r.remove(token, ws)
		return
	}
}

func (r *Registry) remove(token string, ws *Workspace) {
	r.mu.Lock()
	if r.byToken[token] == ws {
		delete(r.byToken, token)
	}
	r.mu.Unlock()
	ws.Sessions.Close()
}
