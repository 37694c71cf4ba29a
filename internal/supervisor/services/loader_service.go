// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package services

import (
	"context"
	"errors"
	"time"

	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/pocket"
)

// LoaderService runs the initial catalog load and the periodic
// ownership refresh under supervision.
type LoaderService struct {
	loader          *pocket.Loader
	refreshInterval time.Duration
	name            string
}

// NewLoaderService wraps the loader. refreshInterval of zero disables
// the periodic refresh; the initial load still runs.
func NewLoaderService(loader *pocket.Loader, refreshInterval time.Duration) *LoaderService {
	return &LoaderService{
		loader:          loader,
		refreshInterval: refreshInterval,
		name:            "catalog-loader",
	}
}

// Serve implements suture.Service. The initial load failure is
// returned so suture retries it with backoff; refresh failures are
// logged and retried on the next tick.
func (s *LoaderService) Serve(ctx context.Context) error {
	if err := s.loader.Load(ctx); err != nil && !errors.Is(err, pocket.ErrSuperseded) {
		return err
	}

	if s.refreshInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.loader.RefreshOwnership(ctx); err != nil && !errors.Is(err, pocket.ErrSuperseded) {
				logging.Warn().Err(err).Msg("periodic ownership refresh failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *LoaderService) String() string {
	return s.name
}
