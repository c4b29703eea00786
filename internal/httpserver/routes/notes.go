package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jot/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/jot/internal/httpserver/mw"
)

func init() { Register("notes", registerNotes) }

func registerNotes(r chi.Router, d deps.Deps) {
	r.Route("/api/notes", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Workspaces, handlers.Fail(d.Logger)))
		r.Get("/", handlers.ListNotes(d))
		r.Post("/", handlers.CreateNote(d))
		r.Delete("/{id}", handlers.DeleteNote(d))
		r.Get("/{id}/export.md", handlers.ExportMarkdown(d))
		r.Get("/{id}/export.pdf", handlers.ExportPDF(d))
	})
}
