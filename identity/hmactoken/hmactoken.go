// Package hmactoken issues and validates compact session tokens for
// applications that authenticate users themselves.
//
// A token is "st1.<payload>.<mac>", where payload is the msgpack encoding of
// identity.Claims and mac is its HMAC-SHA256 under the provider secret, both
// base64url encoded without padding.
package hmactoken

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/stackgen/identity"
)

// Prefix marks tokens of this package.
const Prefix = "st1."

// MinSecretLen is the minimum secret length in bytes.
const MinSecretLen = 32

var encoding = base64.RawURLEncoding

// Provider issues and validates tokens of one issuer.
type Provider struct {
	issuer string
	secret []byte
	now    func() time.Time
}

// New returns a provider for issuer keyed with secret.
func New(issuer string, secret []byte) (*Provider, error) {
	if issuer == "" {
		return nil, errors.New("hmactoken: empty issuer")
	}
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("hmactoken: secret must be at least %d bytes", MinSecretLen)
	}
	return &Provider{
		issuer: issuer,
		secret: bytes.Clone(secret),
		now:    time.Now,
	}, nil
}

// SetClock sets the time source used by Issue and Validate.
func (p *Provider) SetClock(now func() time.Time) { p.now = now }

// Name implements identity.Provider. It is the issuer.
func (p *Provider) Name() string { return p.issuer }

// Issue signs claims. The issuer is filled in when empty and must otherwise
// match the provider; IssuedAt defaults to now.
func (p *Provider) Issue(claims identity.Claims) (string, error) {
	switch {
	case claims.Issuer == "":
		claims.Issuer = p.issuer
	case claims.Issuer != p.issuer:
		return "", fmt.Errorf("hmactoken: issuer %q does not match %q", claims.Issuer, p.issuer)
	}
	if claims.Subject == "" {
		return "", errors.New("hmactoken: missing subject")
	}
	if claims.ExpiresAt.IsZero() {
		return "", errors.New("hmactoken: missing expiry")
	}
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = p.now()
	}
	claims.Provider = ""
	payload, err := msgpack.Marshal(&claims)
	if err != nil {
		return "", fmt.Errorf("hmactoken: encode claims: %w", err)
	}
	return Prefix + encoding.EncodeToString(payload) + "." + encoding.EncodeToString(p.mac(payload)), nil
}

// Validate implements identity.Provider.
func (p *Provider) Validate(_ context.Context, token string) (*identity.Claims, error) {
	rest, ok := strings.CutPrefix(token, Prefix)
	if !ok {
		return nil, identity.NotApplicablef("hmactoken: not an %s token", Prefix)
	}
	enc, encMAC, ok := strings.Cut(rest, ".")
	if !ok {
		return nil, identity.Malformedf("hmactoken: missing signature")
	}
	payload, err := encoding.DecodeString(enc)
	if err != nil {
		return nil, identity.Malformedf("hmactoken: payload encoding")
	}
	mac, err := encoding.DecodeString(encMAC)
	if err != nil {
		return nil, identity.Malformedf("hmactoken: signature encoding")
	}
	var claims identity.Claims
	if err := msgpack.Unmarshal(payload, &claims); err != nil {
		return nil, identity.Malformedf("hmactoken: payload")
	}
	if claims.Issuer != p.issuer {
		return nil, identity.NotApplicablef("hmactoken: issuer %q", claims.Issuer)
	}
	if !hmac.Equal(mac, p.mac(payload)) {
		return nil, identity.BadSignaturef("hmactoken: %s", p.issuer)
	}
	if !p.now().Before(claims.ExpiresAt) {
		return nil, identity.Expiredf("hmactoken: %s", p.issuer)
	}
	claims.Provider = p.issuer
	return &claims, nil
}

func (p *Provider) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, p.secret)
	h.Write(payload)
	return h.Sum(nil)
}

var _ identity.Provider = (*Provider)(nil)
