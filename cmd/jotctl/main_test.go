package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/jot/internal/app"
	"github.com/MrSnakeDoc/jot/internal/config"
	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/store/memory"
)

// harness runs jotctl commands against one in-memory store.
type harness struct {
	t     *testing.T
	store *memory.Store
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, store: memory.New(memory.Options{BcryptCost: bcrypt.MinCost})}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	c := &cli{
		out:  &out,
		load: func() *config.Config { return &config.Config{Store: config.StoreMemory} },
		open: func(context.Context, *config.Config, logger.Logger) (*app.Backend, error) {
			return app.NewMemoryBackend(h.store, logger.Nop()), nil
		},
	}
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err)
	return out
}

var creds = []string{"--username", "alice", "--password", "secret"}

func with(args ...string) []string {
	return append(append([]string{}, args...), creds...)
}

func TestRegisterAndList(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(with("register", "--display-name", "Alice")...)
	assert.Contains(t, out, "Account created: alice (Alice)")

	_, err := h.run(with("register")...)
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)

	out = h.mustRun(with("notes", "create", "--title", "Groceries", "--body", "<p>milk</p>", "--tag", "home,errands")...)
	assert.Contains(t, out, "Note created: ")
	h.mustRun(with("notes", "create", "--title", "Standup", "--tag", "work")...)

	out = h.mustRun(with("notes", "list")...)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Groceries\t[home, errands]")
	assert.Contains(t, lines[1], "Standup\t[work]")

	out = h.mustRun(with("notes", "list", "--tag", "work", "--json")...)
	var list []noteJSON
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Standup", list[0].Title)
}

func TestCredentialsRequired(t *testing.T) {
	h := newHarness(t)
	t.Setenv("JOT_USERNAME", "")
	t.Setenv("JOT_PASSWORD", "")

	_, err := h.run("notes", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username and password are required")
}

func TestWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.mustRun(with("register")...)

	_, err := h.run("notes", "list", "--username", "alice", "--password", "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestDeleteNote(t *testing.T) {
	h := newHarness(t)
	h.mustRun(with("register")...)
	out := h.mustRun(with("notes", "create", "--title", "gone soon")...)
	id := strings.TrimSpace(strings.TrimPrefix(out, "Note created: "))

	out = h.mustRun(with("notes", "delete", id)...)
	assert.Contains(t, out, "Note deleted: "+id)

	_, err := h.run(with("notes", "delete", id)...)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExportMarkdown(t *testing.T) {
	h := newHarness(t)
	h.mustRun(with("register")...)
	out := h.mustRun(with("notes", "create", "--title", "Hi", "--body", "<p>World</p>")...)
	id := strings.TrimSpace(strings.TrimPrefix(out, "Note created: "))

	out = h.mustRun(with("export", id, "--output", "-")...)
	assert.Equal(t, "# Hi\n\nWorld\n", out)

	dir := t.TempDir()
	out = h.mustRun(with("export", id, "--format", "pdf", "--output", dir)...)
	path := filepath.Join(dir, "Hi.pdf")
	assert.Contains(t, out, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestExportErrors(t *testing.T) {
	h := newHarness(t)
	h.mustRun(with("register")...)

	_, err := h.run(with("export", "missing")...)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.run(with("export", "missing", "--format", "docx")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("version")
	assert.True(t, strings.HasPrefix(out, "jotctl version "))
}
