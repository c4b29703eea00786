package domain

import (
	"strings"
	"time"
)

// Note is a titled, tagged, markup-bodied document owned by one account.
type Note struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned by the store at creation.
	ID string `json:"id"`

	// OwnerAccountID is set once from the acting session.
	OwnerAccountID string `json:"userId"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Title string `json:"title"`

	// BodyMarkup is the rich HTML-like markup produced by the editor.
	BodyMarkup string `json:"body"`

	// Tags never holds duplicates; insertion order is kept for display.
	Tags []string `json:"tags"`

	// CreatedAt is assigned by the store.
	CreatedAt time.Time `json:"createdAt"`
}

// NoteDraft is a note that has not been confirmed by the store yet.
type NoteDraft struct {
	OwnerAccountID string
	Title          string
	BodyMarkup     string
	Tags           []string
}

// NormalizeTags trims tags, drops empty ones and removes duplicates keeping
// the first occurrence.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Clone returns a copy that shares no slices with n.
func (n Note) Clone() Note {
	c := n
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	return c
}
