package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

// QueryNotes returns the notes owned by ownerID in creation order.
func (s *Store) QueryNotes(ctx context.Context, ownerID string) ([]domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	out := make([]domain.Note, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.notes[id]; ok {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// InsertNote assigns an ID and creation time and stores the draft.
func (s *Store) InsertNote(ctx context.Context, draft domain.NoteDraft) (domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return domain.Note{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := domain.Note{
		ID:             uuid.NewString(),
		OwnerAccountID: draft.OwnerAccountID,
		Title:          draft.Title,
		BodyMarkup:     draft.BodyMarkup,
		Tags:           append([]string{}, draft.Tags...),
		CreatedAt:      s.now().UTC(),
	}
	s.notes[n.ID] = n
	s.byOwner[n.OwnerAccountID] = append(s.byOwner[n.OwnerAccountID], n.ID)
	return n.Clone(), nil
}

// DeleteNote removes a note owned by ownerID.
// It returns domain.ErrNotFound when no such note exists for that owner.
func (s *Store) DeleteNote(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[id]
	if !ok || n.OwnerAccountID != ownerID {
		return domain.ErrNotFound
	}
	delete(s.notes, id)

	ids := s.byOwner[ownerID]
	for i, v := range ids {
		if v == id {
			s.byOwner[ownerID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
