package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout, PDF export included (ex: 30s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store       string        // "memory" | "redis"
	SessionTTL  time.Duration // provider session lifetime (default: 24h)
	BcryptCost  int           // password hashing cost
	IdleTTL     time.Duration // drop a client workspace after this long without requests
	GCInterval  time.Duration // interval to sweep idle workspaces (default: 5m)
	MaxBodySize int64         // max request body in bytes

	// PDF export
	PDFStyleFile    string        // optional YAML style sheet
	PDFFontDir      string        // optional directory holding the TTF files named in the style sheet
	PDFFontURL      string        // optional base URL to download the TTF files from
	PDFFetchTimeout time.Duration // timeout for the font download (default: 30s)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
	RedisExpiryEvents     bool          // true => enable keyspace notifications for expired sessions at startup

	// Rate limiting (per client IP)
	RateBurst        int // bucket size
	RateRefillPerMin int // tokens added per minute

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict /metrics and probes to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("JOT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("JOT_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("JOT_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("JOT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("JOT_PRETTY_LOG", true),

		// Sessions and storage
		Store:       strings.ToLower(getenv("JOT_STORE", StoreRedis)),
		SessionTTL:  mustDuration("JOT_SESSION_TTL", 24*time.Hour),
		BcryptCost:  getenvInt("JOT_BCRYPT_COST", 10),
		IdleTTL:     mustDuration("JOT_IDLE_TTL", 30*time.Minute),
		GCInterval:  mustDuration("JOT_GC_INTERVAL", 5*time.Minute),
		MaxBodySize: int64(getenvInt("JOT_MAX_BODY_SIZE", 1<<20)),

		// PDF export
		PDFStyleFile:    getenv("JOT_PDF_STYLE_FILE", ""),
		PDFFontDir:      getenv("JOT_PDF_FONT_DIR", ""),
		PDFFontURL:      getenv("JOT_PDF_FONT_URL", ""),
		PDFFetchTimeout: mustDuration("JOT_PDF_FETCH_TIMEOUT", 30*time.Second),

		// Rate limiting
		RateBurst:        getenvInt("JOT_RATE_BURST", 30),
		RateRefillPerMin: getenvInt("JOT_RATE_REFILL_PER_MIN", 120),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("JOT_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("JOT_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("JOT_TRUST_PROXY", false),
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreRedis:
		loadRedis(cfg)
	default:
		panic(fmt.Sprintf("❌ FATAL: JOT_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, cfg.Store))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// loadRedis reads the Redis settings. Only the redis store needs them.
func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("JOT_REDIS_ADDR")
	cfg.RedisUser = getenv("JOT_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("JOT_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("JOT_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("JOT_REDIS_DB")
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)
	cfg.RedisExpiryEvents = mustBool("JOT_REDIS_EXPIRY_EVENTS", true)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: JOT_REDIS_PASSWORD is required when JOT_REDIS_PASSWORD_REQUIRED=true")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
