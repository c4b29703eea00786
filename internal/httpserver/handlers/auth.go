package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jot/internal/httpserver/mw"
	"github.com/MrSnakeDoc/jot/internal/workspace"
)

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type accountResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type sessionResponse struct {
	Token     string          `json:"token,omitempty"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Account   accountResponse `json:"account"`
}

func toAccount(a domain.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt,
	}
}

func toSession(s domain.Session, withToken bool) sessionResponse {
	resp := sessionResponse{Account: toAccount(*s.Account)}
	if withToken {
		resp.Token = s.Token
	}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt
		resp.ExpiresAt = &t
	}
	return resp
}

// signIn runs fn on a fresh workspace and registers it once fn succeeds.
func signIn(ctx context.Context, d deps.Deps, fn func(ws *workspace.Workspace) error) (domain.Session, error) {
	ws := d.Workspaces.New()
	if err := fn(ws); err != nil {
		ws.Sessions.Close()
		return domain.Session{}, err
	}
	s := ws.Sessions.Session()
	if _, err := d.Workspaces.Adopt(ctx, ws); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func Register(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, d.MaxBodySize, &req); err != nil {
			fail(w, err)
			return
		}

		s, err := signIn(r.Context(), d, func(ws *workspace.Workspace) error {
			_, err := ws.Sessions.Register(r.Context(), req.Username, req.Password, req.DisplayName)
			return err
		})
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSession(s, true))
	}
}

func Login(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, d.MaxBodySize, &req); err != nil {
			fail(w, err)
			return
		}

		s, err := signIn(r.Context(), d, func(ws *workspace.Workspace) error {
			_, err := ws.Sessions.Login(r.Context(), req.Username, req.Password)
			return err
		})
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSession(s, true))
	}
}

func Logout(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ws, token, ok := mw.Workspace(r.Context())
		if !ok {
			fail(w, domain.ErrUnauthenticated)
			return
		}
		if err := ws.Sessions.Logout(r.Context()); err != nil {
			fail(w, err)
			return
		}
		d.Workspaces.Drop(token)
		w.WriteHeader(http.StatusNoContent)
	}
}

func CurrentSession(d deps.Deps) http.HandlerFunc {
	fail := Fail(d.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		ws, _, ok := mw.Workspace(r.Context())
		if !ok {
			fail(w, domain.ErrUnauthenticated)
			return
		}
		s := ws.Sessions.Session()
		if s.Anonymous() {
			fail(w, domain.ErrUnauthenticated)
			return
		}
		writeJSON(w, http.StatusOK, toSession(s, false))
	}
}
