package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/jot/internal/metrics"
)

// RateLimitConfig configures a per-client-IP token bucket.
type RateLimitConfig struct {
	Burst             int              // bucket size
	RefillPerIPPerMin int              // tokens added per minute
	MaxEntries        int              // sweep early once this many IPs are tracked (0 = no cap)
	SweepInterval     time.Duration    // how often idle buckets are dropped (default 1m)
	IdleTTL           time.Duration    // bucket lifetime without requests (default 15m)
	TrustProxy        bool             // resolve the IP from proxy headers
	Now               func() time.Time // clock, time.Now by default
}

func (c *RateLimitConfig) defaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 15 * time.Minute
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.RefillPerIPPerMin < 1 {
		c.RefillPerIPPerMin = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type bucket struct {
	tokens   float64
	refilled time.Time
	seen     time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	perSecond float64

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	cfg.defaults()
	return &limiter{
		cfg:       cfg,
		perSecond: float64(cfg.RefillPerIPPerMin) / 60.0,
		buckets:   make(map[string]*bucket, 256),
		lastSweep: cfg.Now(),
	}
}

// take consumes one token for key. When none is left it returns the number
// of seconds until the next one.
func (l *limiter) take(key string, now time.Time) (ok bool, remaining, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}

	capacity := float64(l.cfg.Burst)
	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: capacity, refilled: now}
		l.buckets[key] = b
	}
	b.seen = now

	if elapsed := now.Sub(b.refilled).Seconds(); elapsed > 0 {
		b.tokens = math.Min(capacity, b.tokens+elapsed*l.perSecond)
		b.refilled = now
	}

	if b.tokens < 1 {
		wait := int(math.Ceil((1 - b.tokens) / l.perSecond))
		return false, 0, max(wait, 1)
	}
	b.tokens--
	return true, int(b.tokens), 0
}

func (l *limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) > l.cfg.IdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimit rejects requests with 429 once a client IP has spent its bucket.
// Every response carries X-RateLimit-Limit and X-RateLimit-Remaining.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retry := l.take(ClientIP(r, l.cfg.TrustProxy), l.cfg.Now())

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				metrics.RateLimited.Inc()
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
