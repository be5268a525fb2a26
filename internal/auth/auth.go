// Package auth resolves API keys to stable key IDs. The key ID is the
// preferred rate-limit scope: limits follow the credential, not the
// client address.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const keyID ctxKey = 0

// Store is a static in-memory key store mapping secret -> key ID.
type Store struct {
	header   string
	bySecret map[string]string
}

// NewStatic creates a key store reading secrets from the given header
// (default "X-API-Key").
func NewStatic(header string, pairs map[string]string) *Store {
	if header == "" {
		header = "X-API-Key"
	}
	return &Store{header: header, bySecret: pairs}
}

// WithKeyID injects the resolved key ID into the context.
func WithKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyID, id)
}

// KeyIDFrom extracts the key ID placed by the auth middleware.
func KeyIDFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(keyID)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Middleware validates the API key and stores the key ID in the
// request context for downstream scope extraction. Paths in skipPaths
// pass through unauthenticated.
func (s *Store) Middleware(skipPaths map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			secret := strings.TrimSpace(r.Header.Get(s.header))
			if secret == "" {
				writeJSON(w, http.StatusUnauthorized, "missing_api_key", "Provide API key in "+s.header)
				return
			}
			id, ok := s.bySecret[secret]
			if !ok {
				writeJSON(w, http.StatusUnauthorized, "invalid_api_key", "API key not recognized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithKeyID(r.Context(), id)))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"code":"` + errCode + `","message":"` + msg + `"}}`))
}
