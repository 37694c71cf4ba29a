// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package services adapts the application's components to suture's
// Serve lifecycle.
package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pockettv/pockettv/internal/logging"
)

// HTTPService runs the HTTP server under supervision.
type HTTPService struct {
	server *http.Server
	name   string
}

// NewHTTPService wraps an http.Server as a supervised service.
func NewHTTPService(server *http.Server) *HTTPService {
	return &HTTPService{server: server, name: "http-server"}
}

// Serve implements suture.Service: listen until the context cancels,
// then shut down gracefully.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *HTTPService) String() string {
	return s.name
}
