package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps the error taxonomy to HTTP. The returned message is what
// a server-side failure may tell the client.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation", err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrDuplicateUsername):
		return http.StatusConflict, "duplicate_username", err.Error()
	case errors.Is(err, domain.ErrSessionChanged):
		return http.StatusConflict, "session_changed", err.Error()
	case errors.Is(err, domain.ErrConversion):
		return http.StatusUnprocessableEntity, "conversion", err.Error()
	case errors.Is(err, domain.ErrExportUnavailable):
		return http.StatusServiceUnavailable, "export_unavailable", domain.ErrExportUnavailable.Error()
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, "remote", domain.ErrNetwork.Error()
	case errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway, "remote", domain.ErrRemote.Error()
	default:
		return http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError)
	}
}

// Fail returns the error writer shared by handlers and middlewares.
// Server-side failures are logged in full and reach the client only as
// their taxonomy message; client errors are not logged.
func Fail(log logger.Logger) func(http.ResponseWriter, error) {
	return func(w http.ResponseWriter, err error) {
		status, code, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Warn("request failed", logger.Int("status", status), logger.Error(err))
		}
		writeJSON(w, status, errorResponse{Error: msg, Code: code})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads one JSON object of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", domain.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %w", domain.ErrValidation, err)
	}
	return nil
}
