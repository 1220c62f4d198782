// Package auth guards the monitoring listener with a static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// open lists paths that never require a token so orchestrator health checks work
// without credentials.
var open = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// Middleware requires "Authorization: Bearer <token>" on every path except
// the health checks. An empty token disables the check.
func Middleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				http.Error(w, "missing API token", http.StatusUnauthorized)
				return
			}
			got := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "invalid API token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
