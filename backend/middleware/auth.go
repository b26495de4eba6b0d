package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/token"
)

type ctxKey struct{}

// RequireToken requires an admin bearer token issued for action.
func RequireToken(m *token.Manager, action string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			v := m.Verify(r.Header.Get("Authorization"))
			if !v.Allows(action) {
				reason := v.Reason
				if v.Valid {
					reason = "forbidden"
				}
				slog.Warn("admin request rejected", "source", "admin", "action", action, "reason", reason, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": "forbidden", "reason": reason})
				return
			}
			next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, v)))
		}
	}
}

// Verification returns the token verification stored by RequireToken.
func Verification(ctx context.Context) (token.Verification, bool) {
	v, ok := ctx.Value(ctxKey{}).(token.Verification)
	return v, ok
}
