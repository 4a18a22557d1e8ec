package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/syssam/stackgen/contrib/lrucache"
	"github.com/syssam/stackgen/dialect/sql"
	"github.com/syssam/stackgen/identity"
	"github.com/syssam/stackgen/identity/hmactoken"
	"github.com/syssam/stackgen/identity/jwtauth"
	"github.com/syssam/stackgen/identity/sqlstore"
)

// Providers builds the token providers of the configured issuers, in order.
// Secrets are read from the environment.
func (b BridgeConfig) Providers() ([]identity.Provider, error) {
	providers := make([]identity.Provider, 0, len(b.Issuers))
	for _, iss := range b.Issuers {
		p, err := iss.provider()
		if err != nil {
			return nil, fmt.Errorf("issuer %q: %w", iss.Name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func (i IssuerConfig) provider() (identity.Provider, error) {
	if i.Kind == KindLocal {
		return i.LocalProvider()
	}
	opts := []jwtauth.Option{jwtauth.WithLeeway(i.Leeway)}
	if i.Issuer != "" {
		opts = append(opts, jwtauth.WithIssuer(i.Issuer))
	}
	if i.Audience != "" {
		opts = append(opts, jwtauth.WithAudience(i.Audience))
	}
	switch i.Algorithm {
	case AlgHS256:
		secret, err := i.secret()
		if err != nil {
			return nil, err
		}
		opts = append(opts, jwtauth.WithHMACSecret(secret))
	case AlgRS256, AlgEdDSA:
		pem, err := os.ReadFile(i.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		if i.Algorithm == AlgRS256 {
			opts = append(opts, jwtauth.WithRSAPublicKeyPEM(pem))
		} else {
			opts = append(opts, jwtauth.WithEdDSAPublicKeyPEM(pem))
		}
	default:
		return nil, fmt.Errorf("unknown algorithm %q", i.Algorithm)
	}
	return jwtauth.New(i.Name, opts...)
}

// LocalProvider returns the provider of a local issuer, which can also
// issue tokens.
func (i IssuerConfig) LocalProvider() (*hmactoken.Provider, error) {
	if i.Kind != KindLocal {
		return nil, fmt.Errorf("issuer %q is not local", i.Name)
	}
	secret, err := i.secret()
	if err != nil {
		return nil, err
	}
	return hmactoken.New(i.Name, secret)
}

func (i IssuerConfig) secret() ([]byte, error) {
	v := os.Getenv(i.SecretEnv)
	if v == "" {
		return nil, fmt.Errorf("environment variable %s is not set", i.SecretEnv)
	}
	return []byte(v), nil
}

// OpenStore opens the configured principal store, creating its table when
// it is backed by a database. Statements of a database store are counted
// and registered with reg when it is not nil. Close releases the store.
func (b BridgeConfig) OpenStore(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (store identity.Store, closeFn func() error, err error) {
	if b.Store.Driver == "" {
		return identity.NewMemoryStore(), func() error { return nil }, nil
	}
	drv, err := sql.Open(b.Store.Driver, b.Store.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open principal store: %w", err)
	}
	opts := []sql.StatsOption{}
	if b.Store.SlowQuery > 0 {
		opts = append(opts, sql.WithSlowThreshold(b.Store.SlowQuery))
	}
	if logger != nil {
		opts = append(opts, sql.WithSlowQueryLog(logger))
	}
	stats := sql.NewStatsDriver(drv, opts...)
	if reg != nil {
		if err := reg.Register(stats); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("register store metrics: %w", err), drv.Close())
		}
	}
	s := sqlstore.New(stats)
	if err := s.Migrate(ctx); err != nil {
		return nil, nil, errors.Join(err, s.Close())
	}
	return s, s.Close, nil
}

// OpenBridge builds the identity bridge. The returned function releases the
// store.
func (b BridgeConfig) OpenBridge(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*identity.Bridge, func() error, error) {
	providers, err := b.Providers()
	if err != nil {
		return nil, nil, err
	}
	store, closeFn, err := b.OpenStore(ctx, logger, reg)
	if err != nil {
		return nil, nil, err
	}
	var opts []identity.Option
	if logger != nil {
		opts = append(opts, identity.WithLogger(logger))
	}
	if b.Cache.Size > 0 {
		opts = append(opts, identity.WithCache(lrucache.New(
			lrucache.WithSize(b.Cache.Size),
			lrucache.WithMaxTTL(b.Cache.MaxTTL),
		)))
	}
	if reg != nil {
		opts = append(opts, identity.WithRegisterer(reg))
	}
	bridge, err := identity.NewBridge(store, providers, opts...)
	if err != nil {
		return nil, nil, errors.Join(err, closeFn())
	}
	return bridge, closeFn, nil
}
