// Package jwtauth provides an identity.Provider validating JSON Web Tokens
// signed with HS256, RS256 or EdDSA.
//
//	provider, err := jwtauth.New("clerk",
//		jwtauth.WithRSAPublicKeyPEM(pem),
//		jwtauth.WithIssuer("https://clerk.example.com"),
//	)
//
// A provider configured with an issuer declines tokens of other issuers with
// identity.ErrNotApplicable, so several providers can share one bridge.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/syssam/stackgen/identity"
)

// Provider validates JWTs with one verification key.
type Provider struct {
	name     string
	key      any
	methods  []string
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// Option configures a Provider.
type Option func(*Provider) error

// WithHMACSecret verifies HS256 tokens with secret.
func WithHMACSecret(secret []byte) Option {
	return func(p *Provider) error {
		if len(secret) == 0 {
			return errors.New("jwtauth: empty HMAC secret")
		}
		return p.setKey(append([]byte(nil), secret...), jwt.SigningMethodHS256.Alg())
	}
}

// WithRSAPublicKeyPEM verifies RS256 tokens with a PEM-encoded public key.
func WithRSAPublicKeyPEM(pem []byte) Option {
	return func(p *Provider) error {
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return fmt.Errorf("jwtauth: parse RSA public key: %w", err)
		}
		return p.setKey(key, jwt.SigningMethodRS256.Alg())
	}
}

// WithEdDSAPublicKeyPEM verifies EdDSA tokens with a PEM-encoded Ed25519
// public key.
func WithEdDSAPublicKeyPEM(pem []byte) Option {
	return func(p *Provider) error {
		key, err := jwt.ParseEdPublicKeyFromPEM(pem)
		if err != nil {
			return fmt.Errorf("jwtauth: parse Ed25519 public key: %w", err)
		}
		return p.setKey(key, jwt.SigningMethodEdDSA.Alg())
	}
}

// WithIssuer requires the "iss" claim to equal iss. Tokens of other issuers
// are not applicable to the provider.
func WithIssuer(iss string) Option {
	return func(p *Provider) error {
		p.issuer = iss
		return nil
	}
}

// WithAudience requires the "aud" claim to contain aud.
func WithAudience(aud string) Option {
	return func(p *Provider) error {
		p.audience = aud
		return nil
	}
}

// WithLeeway tolerates clock skew when checking time based claims.
func WithLeeway(d time.Duration) Option {
	return func(p *Provider) error {
		p.leeway = d
		return nil
	}
}

// WithClock sets the time source for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) error {
		p.now = now
		return nil
	}
}

// New returns a provider named name. Exactly one verification key option
// is required.
func New(name string, opts ...Option) (*Provider, error) {
	p := &Provider{name: name, now: time.Now}
	var errs []error
	for _, opt := range opts {
		if err := opt(p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if p.key == nil {
		return nil, fmt.Errorf("jwtauth: provider %q has no verification key", name)
	}
	return p, nil
}

func (p *Provider) setKey(key any, method string) error {
	if p.key != nil {
		return errors.New("jwtauth: multiple verification keys")
	}
	p.key, p.methods = key, []string{method}
	return nil
}

// Name implements identity.Provider.
func (p *Provider) Name() string { return p.name }

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Validate implements identity.Provider.
func (p *Provider) Validate(_ context.Context, token string) (*identity.Claims, error) {
	var peek tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &peek); err != nil {
		return nil, identity.NotApplicablef("jwtauth: %s: not a JWT", p.name)
	}
	if p.issuer != "" && peek.Issuer != p.issuer {
		return nil, identity.NotApplicablef("jwtauth: %s: issuer %q", p.name, peek.Issuer)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(p.methods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(p.leeway),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) { return p.key, nil }, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, identity.BadSignaturef("jwtauth: %s: %v", p.name, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, identity.Expiredf("jwtauth: %s", p.name)
	default:
		return nil, identity.Malformedf("jwtauth: %s: %v", p.name, err)
	}
	if tc.Subject == "" {
		return nil, identity.Malformedf("jwtauth: %s: missing subject", p.name)
	}

	claims := &identity.Claims{
		Issuer:    tc.Issuer,
		Subject:   tc.Subject,
		Email:     tc.Email,
		Name:      tc.Name,
		ExpiresAt: tc.ExpiresAt.Time,
		Provider:  p.name,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	return claims, nil
}

var _ identity.Provider = (*Provider)(nil)
