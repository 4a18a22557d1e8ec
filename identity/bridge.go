package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/stackgen"
)

// cacheNamespace prefixes validation cache keys.
const cacheNamespace = "identity"

// Bridge authenticates requests carrying tokens of one or more providers
// and maps their subjects to principals of the serving application.
type Bridge struct {
	store      Store
	providers  Providers
	cache      stackgen.Cache
	logger     *slog.Logger
	now        func() time.Time
	registerer prometheus.Registerer
	metrics    *metrics
	group      singleflight.Group
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithCache caches successful validations in c. Entries never outlive the
// token expiry, and expiry is rechecked on every hit.
func WithCache(c stackgen.Cache) Option {
	return func(b *Bridge) {
		b.cache = c
	}
}

// WithLogger sets the logger. Tokens are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithClock sets the time source used for expiry and revocation checks.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// WithRegisterer registers the bridge metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(b *Bridge) {
		b.registerer = r
	}
}

// NewBridge returns a bridge validating tokens with providers, in priority
// order, and mapping principals in store.
func NewBridge(store Store, providers []Provider, opts ...Option) (*Bridge, error) {
	if store == nil {
		return nil, errors.New("identity: nil store")
	}
	if len(providers) == 0 {
		return nil, errors.New("identity: no providers")
	}
	for i, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("identity: provider %d is nil", i)
		}
	}
	b := &Bridge{
		store:     store,
		providers: append(Providers(nil), providers...),
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		metrics:   newMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registerer != nil {
		if err := b.metrics.register(b.registerer); err != nil {
			return nil, fmt.Errorf("identity: register metrics: %w", err)
		}
	}
	return b, nil
}

// Authenticate runs the authentication state machine for r. A request
// without an Authorization header ends Unauthenticated when anonymousOK is
// set, and is rejected with MissingToken otherwise.
func (b *Bridge) Authenticate(ctx context.Context, r *http.Request, anonymousOK bool) Result {
	res := Result{State: Unauthenticated, Trail: []State{Unauthenticated}}
	header := r.Header.Get("Authorization")
	if header == "" {
		if anonymousOK {
			return b.finish(ctx, res)
		}
		return b.reject(ctx, res, MissingToken, nil)
	}
	res.enter(TokenPresented)
	token, ok := parseBearer(header)
	if !ok {
		return b.reject(ctx, res, Malformed, nil)
	}
	return b.validate(ctx, res, token)
}

// AuthenticateToken validates a bare token, as carried outside HTTP headers.
func (b *Bridge) AuthenticateToken(ctx context.Context, token string) Result {
	res := Result{State: Unauthenticated, Trail: []State{Unauthenticated}}
	res.enter(TokenPresented)
	if token == "" {
		return b.reject(ctx, res, Malformed, nil)
	}
	return b.validate(ctx, res, token)
}

// Recheck re-verifies an authenticated result against the clock and the
// revocation state. Long-running handlers call it before acting so that a
// request admitted before a logout does not act after it.
func (b *Bridge) Recheck(ctx context.Context, res Result) Result {
	if res.State != Authenticated || res.Principal == nil || res.Claims == nil {
		return res
	}
	out := Result{
		State:     Validating,
		Trail:     append(append([]State(nil), res.Trail...), Validating),
		Principal: res.Principal,
		Claims:    res.Claims,
	}
	return b.admit(ctx, out, res.Claims, res.Principal)
}

// Logout revokes every token of the principal issued up to now. It takes
// effect for validations that start after it returns. Tokens without an
// issue time, or issued ahead of the bridge clock, are rejected as
// Malformed, so no token existing at logout can outlive it.
func (b *Bridge) Logout(ctx context.Context, id uuid.UUID) error {
	if err := b.store.Revoke(ctx, id, b.now()); err != nil {
		return fmt.Errorf("identity: logout %s: %w", id, err)
	}
	b.logger.InfoContext(ctx, "principal logged out", slog.String("principal", id.String()))
	return nil
}

func (b *Bridge) validate(ctx context.Context, res Result, token string) Result {
	res.enter(Validating)
	claims, err := b.claims(ctx, token)
	if err != nil {
		return b.reject(ctx, res, reasonOf(err), err)
	}
	// Revocation compares issue times, so a token must carry one and it
	// must not lie ahead of the bridge clock.
	now := b.now()
	if claims.Subject == "" || claims.ExpiresAt.IsZero() || claims.IssuedAt.IsZero() || claims.IssuedAt.After(now) {
		return b.reject(ctx, res, Malformed, nil)
	}
	// Expiry is checked before mapping so that stale tokens never create
	// principals.
	if !now.Before(claims.ExpiresAt) {
		return b.reject(ctx, res, Expired, nil)
	}
	issuer := claims.Issuer
	if issuer == "" {
		issuer = claims.Provider
	}
	p, err := b.principal(ctx, issuer, claims)
	if err != nil {
		return b.reject(ctx, res, Internal, err)
	}
	res.Claims = claims
	return b.admit(ctx, res, claims, p)
}

// admit applies the checks that are never cached: expiry and revocation.
func (b *Bridge) admit(ctx context.Context, res Result, claims *Claims, p *Principal) Result {
	if !b.now().Before(claims.ExpiresAt) {
		res.Principal = nil
		return b.reject(ctx, res, Expired, nil)
	}
	at, revoked, err := b.store.RevokedAt(ctx, p.ID)
	if err != nil {
		res.Principal = nil
		return b.reject(ctx, res, Internal, err)
	}
	if revoked && !claims.IssuedAt.After(at) {
		res.Principal = nil
		return b.reject(ctx, res, Revoked, nil)
	}
	res.Principal = p
	res.enter(Authenticated)
	return b.finish(ctx, res)
}

// claims validates token through the providers, consulting the cache first.
func (b *Bridge) claims(ctx context.Context, token string) (*Claims, error) {
	if b.cache == nil {
		return b.providers.Validate(ctx, token)
	}
	sum := sha256.Sum256([]byte(token))
	key := stackgen.CacheKey(cacheNamespace, hex.EncodeToString(sum[:]))
	if data, err := b.cache.Get(ctx, key); err != nil {
		b.logger.WarnContext(ctx, "validation cache get failed", slog.Any("error", err))
	} else if data != nil {
		var claims Claims
		if err := msgpack.Unmarshal(data, &claims); err == nil {
			return &claims, nil
		}
		_ = b.cache.Delete(ctx, key)
	}
	claims, err := b.providers.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if ttl := claims.ExpiresAt.Sub(b.now()); ttl > 0 {
		data, err := msgpack.Marshal(claims)
		if err == nil {
			err = b.cache.Set(ctx, key, data, ttl)
		}
		if err != nil {
			b.logger.WarnContext(ctx, "validation cache set failed", slog.Any("error", err))
		}
	}
	return claims, nil
}

// principal resolves the principal of (issuer, subject). Concurrent calls
// for one identity share a single store round trip.
func (b *Bridge) principal(ctx context.Context, issuer string, claims *Claims) (*Principal, error) {
	key := issuer + "\x00" + claims.Subject
	v, err, _ := b.group.Do(key, func() (any, error) {
		p, created, err := b.store.GetOrCreate(ctx, issuer, claims.Subject, claims)
		if err != nil {
			return nil, err
		}
		if created {
			b.metrics.created.Inc()
			b.logger.InfoContext(ctx, "principal created",
				slog.String("principal", p.ID.String()),
				slog.String("issuer", issuer),
			)
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("identity: map principal: %w", err)
	}
	return v.(*Principal), nil
}

func (b *Bridge) reject(ctx context.Context, res Result, reason Reason, err error) Result {
	res.Reason = reason
	if reason == Internal {
		res.Err = err
	}
	res.enter(Rejected)
	return b.finish(ctx, res)
}

func (b *Bridge) finish(ctx context.Context, res Result) Result {
	b.metrics.observe(res)
	switch {
	case res.Reason == Internal:
		b.logger.ErrorContext(ctx, "authentication failed", slog.Any("error", res.Err))
	case res.State == Rejected:
		b.logger.DebugContext(ctx, "authentication rejected", slog.String("reason", res.Reason.String()))
	}
	return res
}

func (r *Result) enter(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// BearerToken returns the token of a well-formed "Authorization: Bearer"
// header of r.
func BearerToken(r *http.Request) (string, bool) {
	return parseBearer(r.Header.Get("Authorization"))
}

func parseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
