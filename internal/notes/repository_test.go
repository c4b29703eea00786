package notes_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/notes"
	"github.com/MrSnakeDoc/jot/internal/session"
	"github.com/MrSnakeDoc/jot/internal/store/memory"
)

var errTransport = errors.New("connection reset")

// fakeSessions is a settable SessionSource.
type fakeSessions struct {
	mu sync.Mutex
	s  domain.Session
}

func (f *fakeSessions) Session() domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSessions) set(s domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s = s
}

func sessionFor(id, token string) domain.Session {
	return domain.Session{Account: &domain.Account{ID: id, Username: id}, Token: token}
}

// flakyStore wraps the memory store with failure injection and call counting.
type flakyStore struct {
	*memory.Store

	mu        sync.Mutex
	failNext  bool
	inserts   int
	deletes   int
	onQuery   func()
	extraRows []domain.Note
}

func (f *flakyStore) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return true
	}
	return false
}

func (f *flakyStore) QueryNotes(ctx context.Context, owner string) ([]domain.Note, error) {
	if f.fail() {
		return nil, errTransport
	}
	out, err := f.Store.QueryNotes(ctx, owner)
	if f.onQuery != nil {
		f.onQuery()
	}
	return append(out, f.extraRows...), err
}

func (f *flakyStore) InsertNote(ctx context.Context, d domain.NoteDraft) (domain.Note, error) {
	f.mu.Lock()
	f.inserts++
	f.mu.Unlock()
	if f.fail() {
		return domain.Note{}, errTransport
	}
	return f.Store.InsertNote(ctx, d)
}

func (f *flakyStore) DeleteNote(ctx context.Context, owner, id string) error {
	f.mu.Lock()
	f.deletes++
	f.mu.Unlock()
	if f.fail() {
		return errTransport
	}
	return f.Store.DeleteNote(ctx, owner, id)
}

func newRepo(t *testing.T) (*notes.Repository, *flakyStore, *fakeSessions) {
	t.Helper()
	st := &flakyStore{Store: memory.New(memory.Options{BcryptCost: bcrypt.MinCost})}
	ss := &fakeSessions{}
	return notes.NewRepository(st, ss, nil), st, ss
}

func ids(ns []domain.Note) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	repo, _, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	created, err := repo.Create(ctx, "T", "<p>x</p>", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "acct-a", created.OwnerAccountID)
	assert.False(t, created.CreatedAt.IsZero())

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "T", listed[0].Title)
	assert.Equal(t, created.ID, listed[0].ID)

	require.NoError(t, repo.Delete(ctx, created.ID))
	listed, err = repo.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids(listed), created.ID)
	assert.Empty(t, repo.Notes())
}

func TestCreateWithoutSessionDoesNotWrite(t *testing.T) {
	repo, st, _ := newRepo(t)

	_, err := repo.Create(context.Background(), "T", "<p>x</p>", nil)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Zero(t, st.inserts)
	assert.Zero(t, st.Count())
}

func TestOperationsRequireSession(t *testing.T) {
	repo, st, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.List(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.ErrorIs(t, repo.Delete(ctx, "x"), domain.ErrUnauthenticated)
	assert.Zero(t, st.deletes)
}

func TestCreateValidatesTitle(t *testing.T) {
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	for _, title := range []string{"", "   "} {
		_, err := repo.Create(context.Background(), title, "<p>x</p>", nil)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Zero(t, st.inserts)
}

func TestCreateNormalizesTags(t *testing.T) {
	repo, _, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	n, err := repo.Create(context.Background(), "T", "", []string{"a", " b ", "a", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, n.Tags)
}

func TestCreateRemoteFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	_, err := repo.Create(ctx, "first", "", nil)
	require.NoError(t, err)

	st.failNext = true
	_, err = repo.Create(ctx, "second", "", nil)
	require.ErrorIs(t, err, domain.ErrRemote)
	require.ErrorIs(t, err, errTransport)

	cached := repo.Notes()
	require.Len(t, cached, 1)
	assert.Equal(t, "first", cached[0].Title)
}

func TestDeleteUnknownID(t *testing.T) {
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	err := repo.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, st.deletes)
}

func TestDeleteRemoteFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	n, err := repo.Create(ctx, "T", "", nil)
	require.NoError(t, err)

	st.failNext = true
	require.ErrorIs(t, repo.Delete(ctx, n.ID), domain.ErrRemote)
	_, ok := repo.Get(n.ID)
	assert.True(t, ok)
}

func TestDeleteAlreadyGoneRemotely(t *testing.T) {
	ctx := context.Background()
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	n, err := repo.Create(ctx, "T", "", nil)
	require.NoError(t, err)
	require.NoError(t, st.Store.DeleteNote(ctx, "acct-a", n.ID))

	require.NoError(t, repo.Delete(ctx, n.ID))
	assert.Empty(t, repo.Notes())
}

func TestListFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	_, err := repo.Create(ctx, "T", "", nil)
	require.NoError(t, err)

	st.failNext = true
	_, err = repo.List(ctx)
	require.ErrorIs(t, err, domain.ErrRemote)
	assert.Len(t, repo.Notes(), 1)
}

func TestListDropsForeignNotes(t *testing.T) {
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))
	st.extraRows = []domain.Note{{ID: "intruder", OwnerAccountID: "acct-b", Title: "not yours"}}

	listed, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, ids(listed), "intruder")
	_, ok := repo.Get("intruder")
	assert.False(t, ok)
}

func TestListDiscardedWhenSessionChanges(t *testing.T) {
	ctx := context.Background()
	repo, st, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	_, err := repo.Create(ctx, "A's note", "", nil)
	require.NoError(t, err)

	// Logout and login as B while A's query is in flight.
	st.onQuery = func() { ss.set(sessionFor("acct-b", "tok-b")) }

	_, err = repo.List(ctx)
	require.ErrorIs(t, err, domain.ErrSessionChanged)
	assert.Empty(t, repo.Notes())
}

func TestCacheIsScopedToSession(t *testing.T) {
	ctx := context.Background()
	repo, _, ss := newRepo(t)

	ss.set(sessionFor("acct-a", "tok-a"))
	a, err := repo.Create(ctx, "A", "", nil)
	require.NoError(t, err)

	ss.set(sessionFor("acct-b", "tok-b"))
	assert.Empty(t, repo.Notes())
	_, ok := repo.Get(a.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), domain.ErrNotFound)

	ss.set(domain.Session{})
	assert.Empty(t, repo.Notes())
}

func TestListKeepsStoreOrder(t *testing.T) {
	ctx := context.Background()
	repo, _, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	var want []string
	for _, title := range []string{"one", "two", "three"} {
		n, err := repo.Create(ctx, title, "", nil)
		require.NoError(t, err)
		want = append(want, n.ID)
	}

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, ids(listed))
	assert.Equal(t, want, ids(repo.Notes()))
}

func TestNotesReturnsCopy(t *testing.T) {
	repo, _, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	_, err := repo.Create(context.Background(), "T", "", []string{"a"})
	require.NoError(t, err)

	got := repo.Notes()
	got[0].Title = "mutated"
	got[0].Tags[0] = "z"

	again := repo.Notes()
	assert.Equal(t, "T", again[0].Title)
	assert.Equal(t, []string{"a"}, again[0].Tags)
}

func TestAccountsAreIsolated(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Options{BcryptCost: bcrypt.MinCost})
	mgr := session.NewManager(st, st, nil)
	defer mgr.Close()
	repo := notes.NewRepository(st, mgr, nil)

	_, err := mgr.Register(ctx, "alice", "pw1", "Alice")
	require.NoError(t, err)
	secret, err := repo.Create(ctx, "alice only", "<p>x</p>", nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Logout(ctx))

	_, err = mgr.Register(ctx, "bob", "pw2", "")
	require.NoError(t, err)
	listed, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids(listed), secret.ID)
	assert.Empty(t, listed)
}

func TestConcurrentCreatesAllLand(t *testing.T) {
	ctx := context.Background()
	repo, _, ss := newRepo(t)
	ss.set(sessionFor("acct-a", "tok-a"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, "T", "", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.Notes(), 16)
}
