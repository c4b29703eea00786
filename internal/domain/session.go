package domain

import "time"

// Session is either anonymous or bound to one account.
// The zero value is the anonymous session.
type Session struct {
	Account   *Account
	Token     string
	ExpiresAt time.Time
}

// Anonymous reports whether no account is bound.
func (s Session) Anonymous() bool {
	return s.Account == nil
}

// AccountID returns the bound account ID, or "" when anonymous.
func (s Session) AccountID() string {
	if s.Account == nil {
		return ""
	}
	return s.Account.ID
}

// Same reports whether two sessions are the same authenticated identity.
// A fresh login by the same account is a different session.
func (s Session) Same(other Session) bool {
	return s.AccountID() == other.AccountID() && s.Token == other.Token
}

// SessionReason says why a session change was published.
type SessionReason string

const (
	ReasonRegister SessionReason = "register"
	ReasonLogin    SessionReason = "login"
	ReasonResume   SessionReason = "resume"
	ReasonLogout   SessionReason = "logout"
	ReasonExpired  SessionReason = "expired"
)

// SessionEvent is delivered to session subscribers.
// Account is nil when the session became anonymous.
type SessionEvent struct {
	Account *Account
	Reason  SessionReason
}
