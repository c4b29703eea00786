// Package metrics holds the Prometheus collectors shared by the service and
// the command line client.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrSnakeDoc/jot/internal/domain"
)

var (
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jot",
			Name:      "auth_attempts_total",
			Help:      "Register, login, resume and logout attempts by outcome.",
		},
		[]string{"op", "outcome"},
	)

	NoteOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jot",
			Name:      "note_operations_total",
			Help:      "Repository list/create/delete calls by outcome.",
		},
		[]string{"op", "outcome"},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jot",
			Name:      "exports_total",
			Help:      "Markdown and PDF exports by outcome.",
		},
		[]string{"format", "outcome"},
	)

	RendererAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jot",
			Name:      "pdf_renderer_acquisitions_total",
			Help:      "Attempts to acquire the PDF rendering capability.",
		},
		[]string{"outcome"},
	)

	Workspaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jot",
			Name:      "workspaces",
			Help:      "Client workspaces held by the server.",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jot",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jot",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status class.",
		},
		[]string{"method", "status"},
	)
)

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionChanged):
		return "session_changed"
	case errors.Is(err, domain.ErrConversion):
		return "conversion"
	case errors.Is(err, domain.ErrExportUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrRemote):
		return "remote"
	default:
		return "error"
	}
}
