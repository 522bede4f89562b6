package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blueoctober14/RightImpact/internal/match"
	"github.com/blueoctober14/RightImpact/internal/metrics"
	"github.com/blueoctober14/RightImpact/internal/resilience"
	"github.com/blueoctober14/RightImpact/internal/store"
)

func retryConfig() resilience.RetryConfig {
	return resilience.FromConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "rightimpact.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}, retryConfig())
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and brings its schema up to date.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newMatcher(st store.Store, m *metrics.Metrics) *match.Matcher {
	return match.New(st, match.Options{
		Concurrency: cfg.Match.Concurrency,
		UnitTimeout: time.Duration(cfg.Match.UnitTimeoutSecs) * time.Second,
		Metrics:     m,
	})
}
