// Package identity reconciles session tokens issued by one authentication
// subsystem with the principals of the serving application.
//
// A Bridge runs a small state machine per request:
//
//	Unauthenticated → TokenPresented → Validating → {Authenticated, Rejected}
//
// Tokens are validated by a prioritized list of Providers. The subject of a
// valid token is mapped to a Principal through a Store, keyed by the
// (issuer, subject) pair and created on first sight. Rejections are
// values carried in Result, never errors:
//
//	bridge, err := identity.NewBridge(identity.NewMemoryStore(), []identity.Provider{provider})
//	if err != nil {
//		return err
//	}
//	res := bridge.Authenticate(ctx, r, false)
//	if res.State == identity.Rejected {
//		log.Println(res.Reason)
//	}
//
// Logout records a revocation instant; tokens issued at or before it are
// rejected with Revoked even while they are otherwise valid.
package identity
