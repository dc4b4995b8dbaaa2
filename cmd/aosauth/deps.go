// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package main

import (
	"context"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/aosauth/aosauth/internal/config"
	"github.com/aosauth/aosauth/internal/observability"
	"github.com/aosauth/aosauth/internal/store"
	"github.com/aosauth/aosauth/internal/xdg"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// EngineOpener opens the configured storage engine.
	// Default: openEngine
	EngineOpener func(ctx context.Context, cfg *config.Config) (store.Engine, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// OnReady is called with the web listen address once serving.
	// Default: no-op
	OnReady func(webAddr string)
}

// ObservabilityServer wraps the methods serve uses from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.EngineOpener == nil {
		out.EngineOpener = openEngine
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.OnReady == nil {
		out.OnReady = func(string) {}
	}
	return &out
}

// openEngine opens the engine named by cfg.Store.Driver.
func openEngine(ctx context.Context, cfg *config.Config) (store.Engine, error) {
	switch cfg.Store.Driver {
	case config.DriverBolt:
		path, err := cfg.Store.BoltPath()
		if err != nil {
			return nil, err
		}
		if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		return store.OpenBolt(path)
	case config.DriverPostgres:
		return store.ConnectPostgres(ctx, cfg.Store.Postgres.DSN)
	case config.DriverRedis:
		return store.ConnectRedis(ctx, store.RedisOptions{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		})
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "store.driver").
			Errorf("unknown storage driver %q", cfg.Store.Driver)
	}
}
