package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/workspace"
)

type ctxKey int

const (
	workspaceKey ctxKey = iota
	tokenKey
)

// WorkspaceResolver finds the workspace of a session token.
type WorkspaceResolver interface {
	Get(ctx context.Context, token string) (*workspace.Workspace, error)
}

// RequireSession resolves the bearer token to a workspace and stores it in
// the request context. Failures are written by fail.
func RequireSession(resolver WorkspaceResolver, fail func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="jot"`)
				fail(w, domain.ErrUnauthenticated)
				return
			}

			ws, err := resolver.Get(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="jot", error="invalid_token"`)
				fail(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), workspaceKey, ws)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Workspace returns the workspace stored by RequireSession.
func Workspace(ctx context.Context) (*workspace.Workspace, string, bool) {
	ws, ok := ctx.Value(workspaceKey).(*workspace.Workspace)
	if !ok {
		return nil, "", false
	}
	token, _ := ctx.Value(tokenKey).(string)
	return ws, token, true
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
