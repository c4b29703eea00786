package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/jot/internal/logger"
)

// WatchExpiry registers fn for sessions Redis expires. Delivery needs Start
// and keyspace notifications for expired keys (notify-keyspace-events Ex).
func (s *Store) WatchExpiry(fn func(token string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// Start subscribes to expired-key events and forwards expired sessions to
// the registered watchers until Stop or ctx is done.
func (s *Store) Start(ctx context.Context) error {
	channel := ExpiredEventsChannel(s.client.Options().DB)
	sub := s.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	s.logger.Info("listening for session expiry", logger.String("channel", channel))
	go s.listen(ctx, sub.Channel())
	return nil
}

// Stop ends the expiry subscription
func (s *Store) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			s.logger.Warn("failed to close expiry subscription", logger.Error(err))
		}
	}
}

func (s *Store) listen(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			token, err := ExtractSessionToken(msg.Payload)
			if err != nil {
				// Some other key expired
				continue
			}
			s.logger.Debug("session expired")
			s.notifyExpired(token)
		case <-ctx.Done():
			s.Stop()
			return
		}
	}
}

func (s *Store) notifyExpired(token string) {
	s.mu.RLock()
	fns := make([]func(string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(token)
	}
}
