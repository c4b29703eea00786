package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/jot/internal/httpserver/deps"
)

type componentStatus struct {
	OK    bool   `json:"ok"`
	Mode  string `json:"mode,omitempty"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Workspaces int                        `json:"workspaces"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports the store as the only hard dependency. The PDF renderer is
// acquired on first export, so it is informational.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeStatus := checkStore(r.Context(), d)

		resp := readyzResponse{
			Ready:      storeStatus.OK,
			Workspaces: d.Workspaces.Len(),
			Components: map[string]componentStatus{
				"store": storeStatus,
				"pdf_renderer": {
					OK:   d.Exporter.RendererReady(),
					Mode: "lazy",
				},
			},
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.StoreKind, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.StoreKind}
}
