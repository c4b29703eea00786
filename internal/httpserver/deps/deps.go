package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/jot/internal/export"
	"github.com/MrSnakeDoc/jot/internal/httpserver/mw"
	"github.com/MrSnakeDoc/jot/internal/logger"
	"github.com/MrSnakeDoc/jot/internal/workspace"
)

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	StoreKind    string              // "memory" | "redis"
	Store        Pinger              // readiness probe target
	Workspaces   *workspace.Registry // per-session managers and repositories
	Exporter     *export.Exporter    // Markdown and PDF conversion
	MaxBodySize  int64               // max JSON request body in bytes
	RateLimit    mw.RateLimitConfig  // applied to the auth endpoints
	AllowedHosts []string            // Host headers allowed to access the server
	AllowedCIDRS []string            // IPs allowed to access readyz and metrics endpoints
	TrustProxy   bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
}
