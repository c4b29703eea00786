package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/logger"
)

func TestFail(t *testing.T) {
	dial := errors.New("dial tcp 10.0.0.5:6379: connect: connection refused")

	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{
			name:   "remote store failure hides transport detail",
			err:    fmt.Errorf("%w: %w", domain.ErrRemote, dial),
			status: http.StatusBadGateway,
			code:   "remote",
			msg:    domain.ErrRemote.Error(),
		},
		{
			name:   "identity provider failure hides transport detail",
			err:    fmt.Errorf("%w: %w", domain.ErrNetwork, dial),
			status: http.StatusBadGateway,
			code:   "remote",
			msg:    domain.ErrNetwork.Error(),
		},
		{
			name:   "renderer failure hides font source",
			err:    fmt.Errorf("%w: download font a.ttf: status 503", domain.ErrExportUnavailable),
			status: http.StatusServiceUnavailable,
			code:   "export_unavailable",
			msg:    domain.ErrExportUnavailable.Error(),
		},
		{
			name:   "unknown failure",
			err:    dial,
			status: http.StatusInternalServerError,
			code:   "internal",
			msg:    "Internal Server Error",
		},
		{
			name:   "client error keeps detail",
			err:    fmt.Errorf("%w: title is required", domain.ErrValidation),
			status: http.StatusBadRequest,
			code:   "validation",
			msg:    "validation failed: title is required",
		},
	}

	fail := Fail(logger.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fail(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")

			var body errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}
