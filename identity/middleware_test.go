package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	b, table, _, _ := newTestBridge(t)
	valid := table.issue("valid", "u1", epoch, epoch.Add(time.Hour))
	stale := table.issue("stale", "u1", epoch.Add(-time.Hour), epoch)

	var seen *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := b.Middleware(next, AnonymousPaths("/api/health", "/public/"))

	tests := []struct {
		name   string
		path   string
		token  string
		code   int
		body   string
		authed bool
	}{
		{name: "anonymous_path", path: "/api/health", code: http.StatusNoContent},
		{name: "anonymous_prefix", path: "/public/logo.svg", code: http.StatusNoContent},
		{
			name: "missing_token",
			path: "/api/me",
			code: http.StatusUnauthorized,
			body: `{"error":"unauthorized","reason":"MissingToken"}`,
		},
		{
			name:  "expired",
			path:  "/api/me",
			token: stale,
			code:  http.StatusUnauthorized,
			body:  `{"error":"unauthorized","reason":"Expired"}`,
		},
		{
			name:  "bad_signature_on_anonymous_path",
			path:  "/api/health",
			token: "forged.x",
			code:  http.StatusUnauthorized,
			body:  `{"error":"unauthorized","reason":"BadSignature"}`,
		},
		{name: "valid", path: "/api/me", token: valid, code: http.StatusNoContent, authed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, w.Body.String())
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
			if tt.authed {
				require.NotNil(t, seen)
				assert.Equal(t, "u1", seen.Subject)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestMiddlewareInternal(t *testing.T) {
	table := newTokenTable()
	token := table.issue("t", "u1", epoch, epoch.Add(time.Hour))
	b, err := NewBridge(failingStore{NewMemoryStore(), errors.New("down")}, []Provider{table}, WithClock(func() time.Time { return epoch }))
	require.NoError(t, err)

	called := false
	h := b.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal"}`, w.Body.String())
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := NewContext(context.Background(), Result{State: Unauthenticated})
	res, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, Unauthenticated, res.State)
	_, ok = PrincipalFromContext(ctx)
	assert.False(t, ok, "anonymous requests carry no principal")
}
