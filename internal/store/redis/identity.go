package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
)

// accountRecord is the provider-side account
type accountRecord struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash []byte    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (a *accountRecord) identity(token string, expiresAt time.Time) domain.Identity {
	return domain.Identity{
		UID:         a.UID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
}

// CreateUser claims the credential identifier, stores the account and opens
// a session. A taken identifier yields domain.ErrIdentityExists.
func (s *Store) CreateUser(ctx context.Context, email, password string) (domain.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to hash password: %w", err)
	}

	acct := &accountRecord{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	data, err := json.Marshal(acct)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to marshal account: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, CredentialKey(email), acct.UID, 0).Result()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to claim credential: %w", err)
	}
	if !claimed {
		return domain.Identity{}, domain.ErrIdentityExists
	}

	if err := s.client.Set(ctx, AccountKey(acct.UID), data, 0).Err(); err != nil {
		// Release the claim so the identifier can be registered again
		if delErr := s.client.Del(ctx, CredentialKey(email)).Err(); delErr != nil {
			s.logger.Warn("failed to release credential claim", logger.Error(delErr))
		}
		return domain.Identity{}, fmt.Errorf("failed to save account: %w", err)
	}

	return s.openSession(ctx, acct)
}

// SignIn verifies the password and opens a session
func (s *Store) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	uid, err := s.client.Get(ctx, CredentialKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Identity{}, domain.ErrIdentityRejected
		}
		return domain.Identity{}, fmt.Errorf("failed to get credential: %w", err)
	}

	acct, err := s.getAccount(ctx, uid)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return domain.Identity{}, domain.ErrIdentityRejected
	}

	return s.openSession(ctx, acct)
}

// SignOut deletes a session. Unknown tokens are rejected.
func (s *Store) SignOut(ctx context.Context, token string) error {
	n, err := s.client.Del(ctx, SessionKey(token)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return domain.ErrIdentityRejected
	}
	return nil
}

// UpdateProfile sets the display name of the session's account
func (s *Store) UpdateProfile(ctx context.Context, token, displayName string) error {
	uid, err := s.sessionUID(ctx, token)
	if err != nil {
		return err
	}
	acct, err := s.getAccount(ctx, uid)
	if err != nil {
		return err
	}

	acct.DisplayName = displayName
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := s.client.Set(ctx, AccountKey(uid), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// CurrentUser resolves a session token to its account
func (s *Store) CurrentUser(ctx context.Context, token string) (domain.Identity, error) {
	pipe := s.client.Pipeline()
	uidCmd := pipe.Get(ctx, SessionKey(token))
	ttlCmd := pipe.PTTL(ctx, SessionKey(token))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.Identity{}, fmt.Errorf("failed to get session: %w", err)
	}

	uid, err := uidCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Identity{}, domain.ErrIdentityRejected
		}
		return domain.Identity{}, fmt.Errorf("failed to get session: %w", err)
	}

	acct, err := s.getAccount(ctx, uid)
	if err != nil {
		return domain.Identity{}, err
	}

	var expiresAt time.Time
	if ttl := ttlCmd.Val(); ttl > 0 {
		expiresAt = s.now().Add(ttl).UTC()
	}
	return acct.identity(token, expiresAt), nil
}

func (s *Store) openSession(ctx context.Context, acct *accountRecord) (domain.Identity, error) {
	token, err := newToken()
	if err != nil {
		return domain.Identity{}, err
	}
	if err := s.client.Set(ctx, SessionKey(token), acct.UID, s.sessionTTL).Err(); err != nil {
		return domain.Identity{}, fmt.Errorf("failed to save session: %w", err)
	}
	return acct.identity(token, s.now().Add(s.sessionTTL).UTC()), nil
}

func (s *Store) sessionUID(ctx context.Context, token string) (string, error) {
	uid, err := s.client.Get(ctx, SessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrIdentityRejected
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return uid, nil
}

func (s *Store) getAccount(ctx context.Context, uid string) (*accountRecord, error) {
	data, err := s.client.Get(ctx, AccountKey(uid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Credential claimed but account never written
			return nil, domain.ErrIdentityRejected
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var acct accountRecord
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &acct, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
