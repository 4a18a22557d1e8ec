package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type resultKey struct{}

// NewContext returns a new context with the given authentication result.
func NewContext(parent context.Context, res Result) context.Context {
	return context.WithValue(parent, resultKey{}, res)
}

// FromContext returns the authentication result stored in ctx, if any.
func FromContext(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey{}).(Result)
	return res, ok
}

// PrincipalFromContext returns the authenticated principal stored in ctx.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	res, ok := FromContext(ctx)
	if !ok || res.State != Authenticated {
		return nil, false
	}
	return res.Principal, true
}

type middlewareConfig struct {
	anonymous []string
}

// MiddlewareOption configures Bridge.Middleware.
type MiddlewareOption func(*middlewareConfig)

// AnonymousPaths permits requests without a token on the given paths. A
// path ending in "/" matches every path under it.
func AnonymousPaths(paths ...string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.anonymous = append(c.anonymous, paths...)
	}
}

func (c *middlewareConfig) anonymousOK(path string) bool {
	for _, p := range c.anonymous {
		if path == p || strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware authenticates every request before calling next. Rejected
// requests get a 401 with a JSON body naming the reason:
//
//	{"error":"unauthorized","reason":"Expired"}
//
// The result is available to next through FromContext and
// PrincipalFromContext.
func (b *Bridge) Middleware(next http.Handler, opts ...MiddlewareOption) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res := b.Authenticate(ctx, r, cfg.anonymousOK(r.URL.Path))
		switch {
		case res.Reason == Internal:
			writeError(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		case res.State == Rejected:
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, map[string]string{
				"error":  "unauthorized",
				"reason": res.Reason.String(),
			})
		default:
			next.ServeHTTP(w, r.WithContext(NewContext(ctx, res)))
		}
	})
}

func writeError(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
