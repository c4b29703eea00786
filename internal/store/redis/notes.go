package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
)

// noteRecord is the stored document. The ID lives in the key.
type noteRecord struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r noteRecord) note(id string) domain.Note {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Note{
		ID:             id,
		OwnerAccountID: r.UserID,
		Title:          r.Title,
		BodyMarkup:     r.Body,
		Tags:           tags,
		CreatedAt:      r.CreatedAt,
	}
}

// QueryNotes returns the notes of an account in creation order
func (s *Store) QueryNotes(ctx context.Context, ownerID string) ([]domain.Note, error) {
	ids, err := s.client.ZRange(ctx, UserNotesKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get note IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Note{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, NoteKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}

	notes := make([]domain.Note, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			// Index entry left behind by an interrupted delete
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get note %s: %w", ids[i], err)
		}

		var rec noteRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("skipping undecodable note", logger.String("note_id", ids[i]), logger.Error(err))
			continue
		}
		notes = append(notes, rec.note(ids[i]))
	}
	return notes, nil
}

// InsertNote stores a new note and indexes it under its owner
func (s *Store) InsertNote(ctx context.Context, draft domain.NoteDraft) (domain.Note, error) {
	id := uuid.NewString()
	rec := noteRecord{
		Title:     draft.Title,
		Body:      draft.BodyMarkup,
		Tags:      append([]string{}, draft.Tags...),
		UserID:    draft.OwnerAccountID,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return domain.Note{}, fmt.Errorf("failed to marshal note: %w", err)
	}

	seq, err := s.client.Incr(ctx, UserSeqKey(draft.OwnerAccountID)).Result()
	if err != nil {
		return domain.Note{}, fmt.Errorf("failed to allocate note sequence: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, NoteKey(id), data, 0)
		pipe.ZAdd(ctx, UserNotesKey(draft.OwnerAccountID), redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return domain.Note{}, fmt.Errorf("failed to save note: %w", err)
	}

	return rec.note(id), nil
}

// DeleteNote removes a note owned by ownerID. It returns domain.ErrNotFound
// when no such note exists for that owner.
func (s *Store) DeleteNote(ctx context.Context, ownerID, id string) error {
	data, err := s.client.Get(ctx, NoteKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to get note: %w", err)
	}

	var rec noteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal note: %w", err)
	}
	if rec.UserID != ownerID {
		return domain.ErrNotFound
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, NoteKey(id))
		pipe.ZRem(ctx, UserNotesKey(ownerID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}
