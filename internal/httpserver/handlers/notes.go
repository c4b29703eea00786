package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jot/internal/httpserver/mw"
)

type noteRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

type notesResponse struct {
	Notes []noteResponse `json:"notes"`
}

func toNote(n domain.Note) noteResponse {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteResponse{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.BodyMarkup,
		Tags:      tags,
		CreatedAt: n.CreatedAt,
	}
}

// ListNotes reloads the notes of the session from the store.
func ListNotes(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ws, _, ok := mw.Workspace(r.Context())
		if !ok {
			fail(w, domain.ErrUnauthenticated)
			return
		}
		list, err := ws.Notes.List(r.Context())
		if err != nil {
			fail(w, err)
			return
		}
		resp := notesResponse{Notes: make([]noteResponse, 0, len(list))}
		for _, n := range list {
			resp.Notes = append(resp.Notes, toNote(n))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func CreateNote(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ws, _, ok := mw.Workspace(r.Context())
		if !ok {
			fail(w, domain.ErrUnauthenticated)
			return
		}
		var req noteRequest
		if err := decodeJSON(w, r, d.MaxBodySize, &req); err != nil {
			fail(w, err)
			return
		}
		n, err := ws.Notes.Create(r.Context(), req.Title, req.Body, req.Tags)
		if err != nil {
			fail(w, err)
			return
		}
		w.Header().Set("Location", "/api/notes/"+n.ID)
		writeJSON(w, http.StatusCreated, toNote(n))
	}
}

func DeleteNote(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ws, _, ok := mw.Workspace(r.Context())
		if !ok {
			fail(w, domain.ErrUnauthenticated)
			return
		}
		if err := ws.Notes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
