package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/jot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jot/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/jot/internal/httpserver/mw"
)

func init() { Register("auth", registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	limited := r.With(mw.RateLimit(d.RateLimit))
	limited.Post("/api/auth/register", handlers.Register(d))
	limited.Post("/api/auth/login", handlers.Login(d))

	authed := r.With(mw.RequireSession(d.Workspaces, handlers.Fail(d.Logger)))
	authed.Post("/api/auth/logout", handlers.Logout(d))
	authed.Get("/api/auth/session", handlers.CurrentSession(d))
}
