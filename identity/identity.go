package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is a state of the per-request authentication state machine.
type State int

// Authentication states. Every request starts Unauthenticated and ends in
// Unauthenticated (anonymous), Authenticated or Rejected.
const (
	Unauthenticated State = iota
	TokenPresented
	Validating
	Authenticated
	Rejected
)

var stateNames = [...]string{
	Unauthenticated: "Unauthenticated",
	TokenPresented:  "TokenPresented",
	Validating:      "Validating",
	Authenticated:   "Authenticated",
	Rejected:        "Rejected",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(?)"
	}
	return stateNames[s]
}

// Reason explains a rejection.
type Reason int

// Rejection reasons. Internal marks an infrastructure failure; the failing
// error is carried in Result.Err.
const (
	NoReason Reason = iota
	MissingToken
	Malformed
	BadSignature
	Expired
	Revoked
	Internal
)

var reasonNames = [...]string{
	NoReason:     "",
	MissingToken: "MissingToken",
	Malformed:    "Malformed",
	BadSignature: "BadSignature",
	Expired:      "Expired",
	Revoked:      "Revoked",
	Internal:     "Internal",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "Reason(?)"
	}
	return reasonNames[r]
}

// Claims are the validated contents of a session token.
type Claims struct {
	Issuer    string    `msgpack:"iss"`
	Subject   string    `msgpack:"sub"`
	Email     string    `msgpack:"email,omitempty"`
	Name      string    `msgpack:"name,omitempty"`
	IssuedAt  time.Time `msgpack:"iat"`
	ExpiresAt time.Time `msgpack:"exp"`
	// Provider names the provider that validated the token.
	Provider string `msgpack:"prv"`
}

// Principal is the application-side identity of a token subject. It is
// keyed by the (Issuer, Subject) pair; Email is informational.
type Principal struct {
	ID        uuid.UUID
	Issuer    string
	Subject   string
	Email     string
	CreatedAt time.Time
}

// Result is the outcome of authenticating one request. Rejections are
// values; Err is set only for Internal.
type Result struct {
	State     State
	Reason    Reason
	Trail     []State
	Principal *Principal
	Claims    *Claims
	Err       error
}

// OK reports whether the request may proceed: it is authenticated, or
// anonymous where anonymous access is permitted.
func (r Result) OK() bool {
	return r.State == Authenticated || r.State == Unauthenticated
}

// Store maps token subjects to principals and records revocations.
type Store interface {
	// GetOrCreate returns the principal of (issuer, subject), creating it
	// from claims if absent. Concurrent calls for one pair return the same
	// principal. created reports whether this call created it.
	GetOrCreate(ctx context.Context, issuer, subject string, claims *Claims) (p *Principal, created bool, err error)
	// Revoke records that tokens of the principal issued at or before at
	// are no longer valid. A later instant replaces an earlier one.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	// RevokedAt returns the revocation instant of the principal, if any.
	RevokedAt(ctx context.Context, id uuid.UUID) (time.Time, bool, error)
}
