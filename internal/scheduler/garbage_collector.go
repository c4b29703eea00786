package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/metrics"
)

const (
	// DefaultIdleTTL is how long a workspace may go unused before it is dropped
	DefaultIdleTTL = 30 * time.Minute
)

// Workspaces is the registry the collector sweeps
type Workspaces interface {
	Sweep(idle time.Duration) int
	Len() int
}

// SessionSweeper is implemented by stores that expire sessions themselves
// instead of relying on the backend (the memory store).
type SessionSweeper interface {
	SweepSessions() int
}

// GarbageCollector drops idle workspaces and, when the store needs it,
// expires sessions past their lifetime.
type GarbageCollector struct {
	workspaces Workspaces
	sessions   SessionSweeper
	logger     logger.Logger
	interval   time.Duration
	idleTTL    time.Duration
	stopCh     chan struct{}
}

// NewGarbageCollector creates a new garbage collector. sessions may be nil.
func NewGarbageCollector(
	workspaces Workspaces,
	sessions SessionSweeper,
	log logger.Logger,
	interval time.Duration,
	idleTTL time.Duration,
) *GarbageCollector {
	if idleTTL == 0 {
		idleTTL = DefaultIdleTTL
	}

	return &GarbageCollector{
		workspaces: workspaces,
		sessions:   sessions,
		logger:     log.With(logger.Component("gc")),
		interval:   interval,
		idleTTL:    idleTTL,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	// Run immediately on start
	if err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed",
			logger.Error(err))
	}

	// Start periodic collection
	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	close(gc.stopCh)
}

// Collect expires overdue sessions, then drops workspaces idle for longer
// than the idle TTL. Workspaces of expired sessions leave the registry on
// their own once the expiry is delivered.
func (gc *GarbageCollector) Collect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	expired := 0
	if gc.sessions != nil {
		expired = gc.sessions.SweepSessions()
	}

	dropped := gc.workspaces.Sweep(gc.idleTTL)
	remaining := gc.workspaces.Len()
	metrics.Workspaces.Set(float64(remaining))

	if expired > 0 || dropped > 0 {
		gc.logger.Info("garbage collection completed",
			logger.Int("sessions_expired", expired),
			logger.Int("workspaces_dropped", dropped),
			logger.Int("workspaces_remaining", remaining))
	} else {
		gc.logger.Debug("no items to garbage collect")
	}

	return nil
}
