package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/jot/internal/logger"
)

// AllowOnlyCIDRS lets through requests whose client IP is in allowed (IPs or
// CIDRs). An empty list disables the filter.
// trustProxy should be true when running behind a trusted reverse proxy/tunnel (e.g., cloudflared).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	set, invalid := parsePrefixes(allowed)
	if len(invalid) > 0 {
		log.Warn("ignoring invalid allowed CIDRs", logger.Strings("entries", invalid))
	}
	if len(set) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustProxy)
			if !set.contains(ip) {
				log.Debug("client IP rejected",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
