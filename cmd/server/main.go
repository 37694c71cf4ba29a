// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Command server runs the PocketTV storefront backend: it loads one
// tenant pocket from the content fabric, resolves entitlements against
// the user's wallet, and serves the catalog over HTTP and websocket.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pockettv/pockettv/internal/api"
	"github.com/pockettv/pockettv/internal/auth"
	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/fabric"
	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/pocket"
	"github.com/pockettv/pockettv/internal/store"
	"github.com/pockettv/pockettv/internal/supervisor"
	"github.com/pockettv/pockettv/internal/supervisor/services"
	"github.com/pockettv/pockettv/internal/wallet"
	"github.com/pockettv/pockettv/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("pocket", cfg.Pocket.Slug).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting PocketTV server")

	st, err := store.Open(&cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("store close failed")
		}
	}()

	secret := []byte(cfg.Security.JWTSecret)
	if len(secret) == 0 {
		secret, err = st.SigningKey()
		if err != nil {
			return err
		}
	}
	jwtManager := auth.NewJWTManager(secret, cfg.Security.SessionTimeout)

	fabricClient := fabric.NewCircuitBreakerClient(&cfg.Fabric)
	walletClient := wallet.NewCircuitBreakerClient(&cfg.Wallet)

	signedIn := auth.NewSignal()
	session := pocket.NewSession()
	hub := websocket.NewHub()
	loader := pocket.NewLoader(&cfg.Pocket, fabricClient, walletClient, session, signedIn, hub)

	handler := api.NewHandler(cfg, session, loader, signedIn, jwtManager, st, walletClient, hub)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddCatalogService(services.NewLoaderService(loader, cfg.Pocket.RefreshInterval))
	tree.AddCatalogService(services.NewTickerService(session, hub, cfg.Pocket.ScheduleTickInterval))
	tree.AddMessagingService(services.NewWebSocketService(hub))
	tree.AddAPIService(services.NewHTTPService(server))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within shutdown timeout")
		}
	}

	logging.Info().Msg("PocketTV server stopped")
	return nil
}
