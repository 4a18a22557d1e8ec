package identity

import (
	"context"
	"errors"
	"fmt"
)

// Provider validation sentinel errors.
//
// Providers return these (optionally wrapped) from Validate. Use errors.Is
// to check for them:
//
//	if errors.Is(err, identity.ErrExpired) { ... }
var (
	// ErrNotApplicable may be returned by a provider to indicate that the
	// token is not in its format or from its issuer, and the next provider
	// in the chain should be consulted.
	ErrNotApplicable = errors.New("identity: token not applicable")

	// ErrMalformed reports a token that is structurally invalid.
	ErrMalformed = errors.New("identity: malformed token")

	// ErrBadSignature reports a token whose signature or integrity check failed.
	ErrBadSignature = errors.New("identity: bad signature")

	// ErrExpired reports a token past its expiry.
	ErrExpired = errors.New("identity: token expired")
)

// NotApplicablef returns a formatted wrapped ErrNotApplicable decision.
func NotApplicablef(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrNotApplicable)...)
}

// Malformedf returns a formatted wrapped ErrMalformed rejection.
func Malformedf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrMalformed)...)
}

// BadSignaturef returns a formatted wrapped ErrBadSignature rejection.
func BadSignaturef(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrBadSignature)...)
}

// Expiredf returns a formatted wrapped ErrExpired rejection.
func Expiredf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, ErrExpired)...)
}

// Provider validates tokens issued by one authentication subsystem.
//
// Validate returns the token claims, or an error wrapping one of
// ErrNotApplicable, ErrMalformed, ErrBadSignature or ErrExpired. Any other
// error is treated as an infrastructure failure.
type Provider interface {
	Name() string
	Validate(ctx context.Context, token string) (*Claims, error)
}

// ProviderFunc adapts a named function to a Provider.
type ProviderFunc struct {
	ProviderName string
	Func         func(context.Context, string) (*Claims, error)
}

// Name returns the provider name.
func (f ProviderFunc) Name() string { return f.ProviderName }

// Validate calls f.Func(ctx, token).
func (f ProviderFunc) Validate(ctx context.Context, token string) (*Claims, error) {
	return f.Func(ctx, token)
}

// Providers is a prioritized list of providers. The first provider that does
// not return ErrNotApplicable decides.
type Providers []Provider

// Name returns the provider name.
func (Providers) Name() string { return "chain" }

// Validate evaluates the providers in order. A token no provider accepts is
// malformed. The returned claims carry the name of the deciding provider.
func (ps Providers) Validate(ctx context.Context, token string) (*Claims, error) {
	for _, p := range ps {
		claims, err := p.Validate(ctx, token)
		switch {
		case err == nil && claims == nil:
			return nil, fmt.Errorf("identity: provider %s returned no claims", p.Name())
		case err == nil:
			if claims.Provider == "" {
				claims.Provider = p.Name()
			}
			return claims, nil
		case errors.Is(err, ErrNotApplicable):
			continue
		default:
			return nil, err
		}
	}
	return nil, Malformedf("identity: no provider accepts the token")
}

// reasonOf maps a provider error to a rejection reason.
func reasonOf(err error) Reason {
	switch {
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrNotApplicable):
		return Malformed
	case errors.Is(err, ErrBadSignature):
		return BadSignature
	case errors.Is(err, ErrExpired):
		return Expired
	default:
		return Internal
	}
}

var _ Provider = (Providers)(nil)
