// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package fabric

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/metrics"
	"github.com/pockettv/pockettv/internal/models"
)

// CircuitBreakerClient wraps Client with a circuit breaker so a
// degraded fabric node fails fast instead of stacking up slow loads.
//
// The breaker uses real time for its interval and timeout; tests should
// exercise the wrapped client directly rather than waiting out breaker
// state transitions.
type CircuitBreakerClient struct {
	client ClientInterface
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// Ensure CircuitBreakerClient implements ClientInterface.
var _ ClientInterface = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient creates a fabric client protected by a
// circuit breaker. The breaker opens after a 60% failure rate with at
// least 10 requests in a one-minute window, and probes again after two
// minutes with up to 3 half-open requests.
func NewCircuitBreakerClient(cfg *config.FabricConfig) *CircuitBreakerClient {
	return wrapWithBreaker(NewClient(cfg), "fabric-api")
}

// wrapWithBreaker is split out so tests can wrap a fake client.
func wrapWithBreaker(client ClientInterface, name string) *CircuitBreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: name}
}

// execute wraps a fabric call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", cbc.name).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts a circuit breaker result.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping verifies connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}

// ResolvePocket resolves a pocket with circuit breaker protection.
func (cbc *CircuitBreakerClient) ResolvePocket(ctx context.Context, slugOrID string) (*models.PocketInfo, error) {
	return castResult[models.PocketInfo](cbc.execute(func() (interface{}, error) {
		return cbc.client.ResolvePocket(ctx, slugOrID)
	}))
}

// PocketMetadata fetches pocket metadata with circuit breaker protection.
func (cbc *CircuitBreakerClient) PocketMetadata(ctx context.Context, versionHash string) (*models.PocketMetadata, error) {
	return castResult[models.PocketMetadata](cbc.execute(func() (interface{}, error) {
		return cbc.client.PocketMetadata(ctx, versionHash)
	}))
}

// MediaCatalog fetches a media catalog with circuit breaker protection.
func (cbc *CircuitBreakerClient) MediaCatalog(ctx context.Context, versionHash, catalogID string) (*models.MediaCatalog, error) {
	return castResult[models.MediaCatalog](cbc.execute(func() (interface{}, error) {
		return cbc.client.MediaCatalog(ctx, versionHash, catalogID)
	}))
}

// PermissionSet fetches a permission set with circuit breaker protection.
func (cbc *CircuitBreakerClient) PermissionSet(ctx context.Context, versionHash, setID string) (*models.PermissionSet, error) {
	return castResult[models.PermissionSet](cbc.execute(func() (interface{}, error) {
		return cbc.client.PermissionSet(ctx, versionHash, setID)
	}))
}
