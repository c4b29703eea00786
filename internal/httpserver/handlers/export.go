package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/export"
	"github.com/MrSnakeDoc/jot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jot/internal/httpserver/mw"
)

// loadedNote returns a note the session has already listed or created.
func loadedNote(r *http.Request) (domain.Note, error) {
	ws, _, ok := mw.Workspace(r.Context())
	if !ok {
		return domain.Note{}, domain.ErrUnauthenticated
	}
	n, ok := ws.Notes.Get(chi.URLParam(r, "id"))
	if !ok {
		return domain.Note{}, domain.ErrNotFound
	}
	return n, nil
}

func writeArtifact(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func ExportMarkdown(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := loadedNote(r)
		if err != nil {
			fail(w, err)
			return
		}
		md := d.Exporter.ToMarkdown(n)
		writeArtifact(w, "text/markdown; charset=utf-8", export.FileName(n.Title, "md"), []byte(md))
	}
}

func ExportPDF(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := loadedNote(r)
		if err != nil {
			fail(w, err)
			return
		}
		pdf, err := d.Exporter.ToPDF(r.Context(), n)
		if err != nil {
			fail(w, err)
			return
		}
		writeArtifact(w, "application/pdf", export.FileName(n.Title, "pdf"), pdf)
	}
}
