package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

// LookupUsername retrieves the directory entry for a username
func (s *Store) LookupUsername(ctx context.Context, username string) (domain.DirectoryEntry, bool, error) {
	data, err := s.client.Get(ctx, UsernameKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DirectoryEntry{}, false, nil
		}
		return domain.DirectoryEntry{}, false, fmt.Errorf("failed to get username: %w", err)
	}

	var entry domain.DirectoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.DirectoryEntry{}, false, fmt.Errorf("failed to unmarshal username: %w", err)
	}
	entry.Username = username
	return entry, true, nil
}

// PutUsername writes a directory entry. Uniqueness is enforced by the
// session manager's lookup and the provider's credential check, not here.
func (s *Store) PutUsername(ctx context.Context, entry domain.DirectoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal username: %w", err)
	}
	if err := s.client.Set(ctx, UsernameKey(entry.Username), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save username: %w", err)
	}
	return nil
}
