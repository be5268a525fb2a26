package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	return NewStatic("X-API-Key", map[string]string{"s3cret": "alice"})
}

func handlerCapturingKeyID(gotID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := KeyIDFrom(r.Context())
		*gotID = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidKey(t *testing.T) {
	var gotID string
	handler := newStore().Middleware(nil)(handlerCapturingKeyID(&gotID))

	req := httptest.NewRequest("GET", "/orders", nil)
	req.Header.Set("X-API-Key", "s3cret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", gotID)
}

func TestMiddleware_MissingKey(t *testing.T) {
	var gotID string
	handler := newStore().Middleware(nil)(handlerCapturingKeyID(&gotID))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing_api_key")
}

func TestMiddleware_InvalidKey(t *testing.T) {
	var gotID string
	handler := newStore().Middleware(nil)(handlerCapturingKeyID(&gotID))

	req := httptest.NewRequest("GET", "/orders", nil)
	req.Header.Set("X-API-Key", "wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_api_key")
}

func TestMiddleware_SkipPaths(t *testing.T) {
	var gotID string
	skip := map[string]struct{}{"/health": {}}
	handler := newStore().Middleware(skip)(handlerCapturingKeyID(&gotID))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, gotID)
}

func TestKeyIDFrom_Absent(t *testing.T) {
	_, ok := KeyIDFrom(httptest.NewRequest("GET", "/", nil).Context())
	assert.False(t, ok)
}
