// Package notes is the user-scoped note repository.
//
// The cache is confirm-then-cache: it only changes after the store has
// confirmed a list, create or delete. Remote calls are not serialized, so two
// concurrent mutations land in the cache in the order the store confirms
// them.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/metrics"
)

// Store is the remote document store holding the notes collection.
type Store interface {
	// QueryNotes returns the notes whose owner equals ownerID.
	QueryNotes(ctx context.Context, ownerID string) ([]domain.Note, error)
	// InsertNote stores a draft and returns it with its assigned ID and
	// creation time.
	InsertNote(ctx context.Context, draft domain.NoteDraft) (domain.Note, error)
	// DeleteNote removes a note; domain.ErrNotFound when it is already gone.
	DeleteNote(ctx context.Context, ownerID, id string) error
}

// SessionSource exposes the session owned by the session manager.
type SessionSource interface {
	Session() domain.Session
}

// Repository performs CRUD for the account of the current session.
type Repository struct {
	store    Store
	sessions SessionSource
	logger   logger.Logger

	mu    sync.Mutex
	owner domain.Session // session the cache was filled under
	cache []domain.Note
}

// NewRepository creates a repository with an empty cache.
func NewRepository(store Store, sessions SessionSource, log logger.Logger) *Repository {
	if log == nil {
		log = logger.Nop()
	}
	return &Repository{
		store:    store,
		sessions: sessions,
		logger:   log.With(logger.Component("notes")),
	}
}

// List fetches the notes of the current account and replaces the cache.
//
// If the session changed while the query was in flight the result is
// discarded and domain.ErrSessionChanged returned.
func (r *Repository) List(ctx context.Context) (notes []domain.Note, err error) {
	defer func() { metrics.NoteOps.WithLabelValues("list", metrics.Outcome(err)).Inc() }()

	issued := r.sessions.Session()
	if issued.Anonymous() {
		return nil, domain.ErrUnauthenticated
	}

	fetched, err := r.store.QueryNotes(ctx, issued.AccountID())
	if err != nil {
		return nil, fmt.Errorf("%w: query notes: %w", domain.ErrRemote, err)
	}

	// Never trust the fetch path to have filtered by owner.
	owned := make([]domain.Note, 0, len(fetched))
	for _, n := range fetched {
		if n.OwnerAccountID != issued.AccountID() {
			r.logger.Warn("dropping note owned by another account", logger.String("note_id", n.ID))
			continue
		}
		owned = append(owned, n.Clone())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sessions.Session().Same(issued) {
		r.logger.Info("session changed during list, discarding result")
		return nil, domain.ErrSessionChanged
	}
	r.owner = issued
	r.cache = owned
	return cloneAll(owned), nil
}

// Create stores a new note for the current account and appends the
// confirmed note to the cache.
func (r *Repository) Create(ctx context.Context, title, bodyMarkup string, tags []string) (note domain.Note, err error) {
	defer func() { metrics.NoteOps.WithLabelValues("create", metrics.Outcome(err)).Inc() }()

	issued := r.sessions.Session()
	if issued.Anonymous() {
		return domain.Note{}, domain.ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Note{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	note, err = r.store.InsertNote(ctx, domain.NoteDraft{
		OwnerAccountID: issued.AccountID(),
		Title:          title,
		BodyMarkup:     bodyMarkup,
		Tags:           domain.NormalizeTags(tags),
	})
	if err != nil {
		return domain.Note{}, fmt.Errorf("%w: insert note: %w", domain.ErrRemote, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cacheBelongsToLocked(issued) {
		r.cache = append(r.cache, note.Clone())
	}
	r.logger.Debug("note created", logger.String("note_id", note.ID))
	return note, nil
}

// Delete removes a note known to the cache.
func (r *Repository) Delete(ctx context.Context, id string) (err error) {
	defer func() { metrics.NoteOps.WithLabelValues("delete", metrics.Outcome(err)).Inc() }()

	issued := r.sessions.Session()
	if issued.Anonymous() {
		return domain.ErrUnauthenticated
	}
	if _, ok := r.Get(id); !ok {
		return fmt.Errorf("%w: note %s", domain.ErrNotFound, id)
	}

	// Already gone remotely counts as confirmed.
	if err := r.store.DeleteNote(ctx, issued.AccountID(), id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: delete note: %w", domain.ErrRemote, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cacheBelongsToLocked(issued) {
		for i, n := range r.cache {
			if n.ID == id {
				r.cache = append(r.cache[:i:i], r.cache[i+1:]...)
				break
			}
		}
	}
	r.logger.Debug("note deleted", logger.String("note_id", id))
	return nil
}

// Notes returns a copy of the cached notes of the current session.
func (r *Repository) Notes() []domain.Note {
	cur := r.sessions.Session()
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur.Anonymous() || !r.cacheBelongsToLocked(cur) {
		return []domain.Note{}
	}
	return cloneAll(r.cache)
}

// Get looks a note up in the cache of the current session.
func (r *Repository) Get(id string) (domain.Note, bool) {
	cur := r.sessions.Session()
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur.Anonymous() || !r.cacheBelongsToLocked(cur) {
		return domain.Note{}, false
	}
	for _, n := range r.cache {
		if n.ID == id {
			return n.Clone(), true
		}
	}
	return domain.Note{}, false
}

// cacheBelongsToLocked reports whether the cache holds notes of s. A cache
// filled under another session is dropped first.
func (r *Repository) cacheBelongsToLocked(s domain.Session) bool {
	if r.owner.Same(s) {
		return true
	}
	if !r.sessions.Session().Same(s) {
		return false
	}
	r.owner = s
	r.cache = nil
	return true
}

func cloneAll(in []domain.Note) []domain.Note {
	out := make([]domain.Note, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}
