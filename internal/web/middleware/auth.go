package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/config"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/logging"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that validates the X-API-Key header against
// the configured keys.
//
// If RequireAPIKey is false, all requests pass through.
// If RequireAPIKey is true but no keys are configured, all requests are rejected.
//
// Denials are JSON bodies in the same shape as other API errors:
//   - 401 with code AUTH001 when the header is missing
//   - 403 with code AUTH002 when the key matches no configured key
//
// Usage:
//
//	r.Route("/api", func(r chi.Router) {
//	    r.Use(middleware.APIKeyAuth(&cfg.Security))
//	    r.Post("/import/validate", s.handleValidate)
//	})
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			switch {
			case key == "":
				logging.FromContext(r.Context()).Warn("auth: missing API key",
					"path", r.URL.Path, "remote_addr", r.RemoteAddr)
				denyJSON(w, http.StatusUnauthorized, "missing API key", "AUTH001")
			case !isValidAPIKey(key, cfg.APIKeys):
				logging.FromContext(r.Context()).Warn("auth: invalid API key",
					"path", r.URL.Path, "remote_addr", r.RemoteAddr)
				denyJSON(w, http.StatusForbidden, "invalid API key", "AUTH002")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func denyJSON(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

// isValidAPIKey compares key against every configured key in constant time,
// so timing does not reveal which key (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, k := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}
