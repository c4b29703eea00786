package session

import "github.com/MrSnakeDoc/jot/internal/domain"

// Subscription delivers session changes until closed.
type Subscription struct {
	// C receives the new account (nil when anonymous). It is closed when the
	// subscription or its manager is closed.
	C <-chan domain.SessionEvent

	ch     chan domain.SessionEvent
	id     uint64
	m      *Manager
	closed bool // guarded by m.mu
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.m.subs, s.id)
	close(s.ch)
}

// deliver replaces any undelivered event with ev. Callers hold m.mu, so
// there is a single sender at a time.
func (s *Subscription) deliver(ev domain.SessionEvent) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
