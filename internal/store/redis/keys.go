package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixNote is the prefix for note documents
	KeyPrefixNote = "jot:notes:"
	// KeyPrefixUser is the prefix for per-account indexes
	KeyPrefixUser = "jot:user:"
	// KeyPrefixUsername is the prefix for username directory entries
	KeyPrefixUsername = "jot:usernames:"
	// KeyPrefixCredential maps credential identifiers to account IDs
	KeyPrefixCredential = "jot:credential:"
	// KeyPrefixAccount is the prefix for account records
	KeyPrefixAccount = "jot:account:"
	// KeyPrefixSession is the prefix for session tokens
	KeyPrefixSession = "jot:session:"
)

// NoteKey returns the Redis key for a note by ID
func NoteKey(id string) string {
	return KeyPrefixNote + id
}

// UserNotesKey returns the sorted set indexing an account's notes by
// creation sequence
func UserNotesKey(uid string) string {
	return KeyPrefixUser + uid + ":notes"
}

// UserSeqKey returns the counter that orders an account's notes
func UserSeqKey(uid string) string {
	return KeyPrefixUser + uid + ":seq"
}

// UsernameKey returns the directory key for a username
func UsernameKey(username string) string {
	return KeyPrefixUsername + username
}

// CredentialKey returns the key mapping a credential identifier to its account
func CredentialKey(email string) string {
	return KeyPrefixCredential + strings.ToLower(email)
}

// AccountKey returns the key of an account record
func AccountKey(uid string) string {
	return KeyPrefixAccount + uid
}

// SessionKey returns the key of a session token
func SessionKey(token string) string {
	return KeyPrefixSession + token
}

// ExtractSessionToken extracts the token from a session key
func ExtractSessionToken(key string) (string, error) {
	if len(key) <= len(KeyPrefixSession) || !strings.HasPrefix(key, KeyPrefixSession) {
		return "", fmt.Errorf("invalid session key: %s", key)
	}
	return key[len(KeyPrefixSession):], nil
}

// ExpiredEventsChannel returns the keyspace notification channel for
// expired keys of a database
func ExpiredEventsChannel(db int) string {
	return fmt.Sprintf("__keyevent@%d__:expired", db)
}
