package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/session"
	"github.com/MrSnakeDoc/jot/internal/store/memory"
)

var errDown = errors.New("dial tcp: connection refused")

// outage wraps the memory store and fails selected calls.
type outage struct {
	*memory.Store

	mu   sync.Mutex
	down map[string]bool
	outs int
}

func (o *outage) failing(op string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.down[op]
}

func (o *outage) SignIn(ctx context.Context, email, pw string) (domain.Identity, error) {
	if o.failing("signin") {
		return domain.Identity{}, errDown
	}
	return o.Store.SignIn(ctx, email, pw)
}

func (o *outage) SignOut(ctx context.Context, token string) error {
	o.mu.Lock()
	o.outs++
	o.mu.Unlock()
	if o.failing("signout") {
		return errDown
	}
	return o.Store.SignOut(ctx, token)
}

func (o *outage) CreateUser(ctx context.Context, email, pw string) (domain.Identity, error) {
	if o.failing("create") {
		return domain.Identity{}, errDown
	}
	return o.Store.CreateUser(ctx, email, pw)
}

func (o *outage) LookupUsername(ctx context.Context, u string) (domain.DirectoryEntry, bool, error) {
	if o.failing("lookup") {
		return domain.DirectoryEntry{}, false, errDown
	}
	return o.Store.LookupUsername(ctx, u)
}

func (o *outage) PutUsername(ctx context.Context, e domain.DirectoryEntry) error {
	if o.failing("put") {
		return errDown
	}
	return o.Store.PutUsername(ctx, e)
}

func newStore() *memory.Store {
	return memory.New(memory.Options{BcryptCost: bcrypt.MinCost})
}

func newManager(t *testing.T) (*session.Manager, *outage) {
	t.Helper()
	o := &outage{Store: newStore(), down: map[string]bool{}}
	m := session.NewManager(o, o, nil)
	t.Cleanup(m.Close)
	return m, o
}

func recv(t *testing.T, sub *session.Subscription) domain.SessionEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no session event")
		return domain.SessionEvent{}
	}
}

func TestCredentialID(t *testing.T) {
	assert.Equal(t, "alice@"+session.CredentialDomain, session.CredentialID("alice"))
}

func TestRegisterEstablishesSession(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	acct, err := m.Register(ctx, "  Alice ", "pw1", "Alice A.")
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Username)
	assert.Equal(t, "Alice A.", acct.DisplayName)
	assert.NotEmpty(t, acct.ID)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, acct, cur)
	assert.NotEmpty(t, m.Session().Token)

	entry, found, err := st.LookupUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, acct.ID, entry.AccountID)
}

func TestRegisterDisplayNameFallsBackToUsername(t *testing.T) {
	m, _ := newManager(t)

	acct, err := m.Register(context.Background(), "bob", "pw", " ")
	require.NoError(t, err)
	assert.Equal(t, "bob", acct.DisplayName)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	first, err := m.Register(ctx, "alice", "pw1", "Alice")
	require.NoError(t, err)

	_, err = m.Register(ctx, "alice", "pw2", "Alice2")
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, first.ID, cur.ID)
}

// A provider account without a directory entry models the lost half of the
// registration race.
func TestRegisterDuplicateAtProvider(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	_, err := st.Store.CreateUser(ctx, session.CredentialID("carol"), "pw")
	require.NoError(t, err)

	_, err = m.Register(ctx, "carol", "pw", "")
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestRegisterValidation(t *testing.T) {
	m, _ := newManager(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "alice", ""},
		{"contains at sign", "a@b", "pw"},
		{"contains space", "a b", "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Register(context.Background(), tt.username, tt.password, "")
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRegisterNetworkFailures(t *testing.T) {
	for _, op := range []string{"lookup", "create", "put"} {
		t.Run(op, func(t *testing.T) {
			m, st := newManager(t)
			st.down[op] = true

			_, err := m.Register(context.Background(), "alice", "pw", "")
			require.ErrorIs(t, err, domain.ErrNetwork)
			require.ErrorIs(t, err, errDown)
			assert.True(t, m.Session().Anonymous())
		})
	}
}

func TestRegisterSignsOutWhenDirectoryWriteFails(t *testing.T) {
	m, st := newManager(t)
	st.down["put"] = true

	_, err := m.Register(context.Background(), "alice", "pw", "")
	require.Error(t, err)
	assert.Equal(t, 1, st.outs)
}

func TestLoginUnknownUser(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.Login(context.Background(), "nouser", "whatever")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestLoginWrongPasswordIsIndistinguishable(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "right", "")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))

	_, wrongPw := m.Login(ctx, "alice", "wrong")
	_, unknown := m.Login(ctx, "nobody", "wrong")
	_, empty := m.Login(ctx, "", "")

	assert.Equal(t, unknown, wrongPw)
	assert.Equal(t, unknown, empty)
	assert.True(t, m.Session().Anonymous())
}

func TestLoginRoundTrip(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	reg, err := m.Register(ctx, "alice", "pw", "Alice")
	require.NoError(t, err)
	first := m.Session()
	require.NoError(t, m.Logout(ctx))

	acct, err := m.Login(ctx, "ALICE", "pw")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, acct.ID)
	assert.Equal(t, "Alice", acct.DisplayName)
	assert.False(t, m.Session().Same(first))
}

func TestLoginNetworkFailure(t *testing.T) {
	m, st := newManager(t)
	st.down["signin"] = true

	_, err := m.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogoutIdempotent(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.Logout(ctx))
	assert.Zero(t, st.outs)

	_, err := m.Register(ctx, "alice", "pw", "")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))
	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, 1, st.outs)
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestLogoutNetworkFailureKeepsSession(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	_, err := m.Register(ctx, "alice", "pw", "")
	require.NoError(t, err)
	st.down["signout"] = true

	require.ErrorIs(t, m.Logout(ctx), domain.ErrNetwork)
	_, ok := m.Current()
	assert.True(t, ok)
}

func TestResume(t *testing.T) {
	st := newStore()
	ctx := context.Background()

	a := session.NewManager(st, st, nil)
	defer a.Close()
	acct, err := a.Register(ctx, "alice", "pw", "")
	require.NoError(t, err)

	b := session.NewManager(st, st, nil)
	defer b.Close()
	resumed, err := b.Resume(ctx, a.Session().Token)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, resumed.ID)
	assert.Equal(t, "alice", resumed.Username)

	_, err = b.Resume(ctx, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()
	sub := m.Subscribe()
	defer sub.Close()

	acct, err := m.Register(ctx, "alice", "pw", "")
	require.NoError(t, err)
	ev := recv(t, sub)
	assert.Equal(t, domain.ReasonRegister, ev.Reason)
	require.NotNil(t, ev.Account)
	assert.Equal(t, acct.ID, ev.Account.ID)

	require.NoError(t, m.Logout(ctx))
	ev = recv(t, sub)
	assert.Equal(t, domain.ReasonLogout, ev.Reason)
	assert.Nil(t, ev.Account)

	_, err = m.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonLogin, recv(t, sub).Reason)

	require.True(t, st.ExpireSession(m.Session().Token))
	ev = recv(t, sub)
	assert.Equal(t, domain.ReasonExpired, ev.Reason)
	assert.Nil(t, ev.Account)
	assert.True(t, m.Session().Anonymous())
}

func TestSubscriptionCoalesces(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	sub := m.Subscribe()
	defer sub.Close()

	_, err := m.Register(ctx, "alice", "pw", "")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))

	ev := recv(t, sub)
	assert.Equal(t, domain.ReasonLogout, ev.Reason)
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestSubscriptionClose(t *testing.T) {
	m, _ := newManager(t)
	sub := m.Subscribe()
	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	_, err := m.Register(context.Background(), "alice", "pw", "")
	require.NoError(t, err)
}

func TestExpiryOfOtherTokenIgnored(t *testing.T) {
	st := newStore()
	ctx := context.Background()
	a := session.NewManager(st, st, nil)
	defer a.Close()
	b := session.NewManager(st, st, nil)
	defer b.Close()

	_, err := a.Register(ctx, "alice", "pw", "")
	require.NoError(t, err)
	_, err = b.Register(ctx, "bob", "pw", "")
	require.NoError(t, err)

	st.ExpireSession(b.Session().Token)
	assert.False(t, a.Session().Anonymous())
	assert.True(t, b.Session().Anonymous())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	st := newStore()
	m := session.NewManager(st, st, nil)
	sub := m.Subscribe()
	m.Close()
	m.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	late := m.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
}
