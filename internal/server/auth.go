package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware enforces the shared master key when one is configured.
// With no master key set, every request passes through unauthenticated.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MasterKey == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/health" || r.URL.Path == "/" || r.URL.Path == "/openapi.json" || r.URL.Path == "/docs" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.MasterKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"type":  "error",
				"error": map[string]string{"type": "authentication_error", "message": "invalid or missing API key"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("x-api-key")
}
