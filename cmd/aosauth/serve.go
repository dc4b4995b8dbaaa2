// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/internal/config"
	"github.com/aosauth/aosauth/internal/observability"
	"github.com/aosauth/aosauth/internal/store"
	"github.com/aosauth/aosauth/internal/web"
	"github.com/aosauth/aosauth/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of both listeners.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Serve the login, logout and session-protected routes, plus the
metrics and health endpoints when metrics.addr is set. Stops gracefully on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, nil)
		},
	}
}

// newHasher builds the password hasher from cfg.
func newHasher(cfg *config.Config) (*auth.Argon2idHasher, error) {
	if err := cfg.RequireHashKey(); err != nil {
		return nil, err
	}
	return auth.NewArgon2idHasher([]byte(cfg.Auth.HashKey),
		auth.WithParams(cfg.Auth.Argon2.Params()),
		auth.WithMaxConcurrent(cfg.Auth.MaxConcurrentHashes),
	)
}

// runServeWithDeps serves until ctx is cancelled or a listener fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}

	engine, err := deps.EngineOpener(ctx, cfg)
	if err != nil {
		return oops.Code("SERVE_STORE_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	identities := store.NewIdentityStore(engine, store.WithLogger(logger))
	defer func() {
		if closeErr := identities.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing identity store", closeErr)
		}
	}()
	logger.Info("identity store opened", "driver", cfg.Store.Driver)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, identities.Ping)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_OBSERVABILITY_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	service, err := auth.NewService(identities, hasher,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
		auth.WithCookiePolicy(auth.CookiePolicy{Secure: cfg.Server.CookieSecure}),
		auth.WithSessionLifetime(cfg.Auth.SessionLifetime),
	)
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}
	handler, err := web.NewHandler(service, web.WithLogger(logger), web.WithMetrics(metrics))
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	webServer := web.NewServer(cfg.Server.Addr(), handler.Routes(), cfg.Server.ReadHeaderTimeout, logger)
	webErrCh, err := webServer.Start()
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	cmd.Println("aosauth listening on", webServer.Addr())
	logger.Info("aosauth ready", "addr", webServer.Addr(), "base_url", cfg.Server.BaseURL)
	deps.OnReady(webServer.Addr())

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err, ok := <-webErrCh:
		if ok {
			serveErr = oops.Code("SERVE_WEB_FAILED").Wrap(err)
		}
	case err, ok := <-obsErrCh:
		if ok {
			serveErr = oops.Code("SERVE_OBSERVABILITY_FAILED").Wrap(err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := webServer.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping web server", err)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return serveErr
}

func stopObservability(server ObservabilityServer, logger *slog.Logger) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping observability server", err)
	}
}
