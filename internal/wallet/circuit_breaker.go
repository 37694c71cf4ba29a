// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/metrics"
	"github.com/pockettv/pockettv/internal/models"
)

// CircuitBreakerClient wraps Client with a circuit breaker so a
// degraded wallet backend fails fast instead of blocking every load
// and profile write behind its timeout.
type CircuitBreakerClient struct {
	client ClientInterface
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// Ensure CircuitBreakerClient implements ClientInterface.
var _ ClientInterface = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient creates a wallet client protected by a
// circuit breaker with the same trip profile as the fabric client.
func NewCircuitBreakerClient(cfg *config.WalletConfig) *CircuitBreakerClient {
	return wrapWithBreaker(NewClient(cfg), "wallet-api")
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

// execute wraps a wallet call with circuit breaker protection.
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

// Marketplace fetches a marketplace with circuit breaker protection.
func (cbc *CircuitBreakerClient) Marketplace(ctx context.Context, marketplaceID string) (*models.Marketplace, error) {
	return castResult[models.Marketplace](cbc.execute(func() (interface{}, error) {
		return cbc.client.Marketplace(ctx, marketplaceID)
	}))
}

// OwnedItems lists owned items with circuit breaker protection.
func (cbc *CircuitBreakerClient) OwnedItems(ctx context.Context, address string) ([]*models.UserItem, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.OwnedItems(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	items, ok := result.([]*models.UserItem)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return items, nil
}

// ProfileMetadata reads profile metadata with circuit breaker protection.
func (cbc *CircuitBreakerClient) ProfileMetadata(ctx context.Context, address, key string) (json.RawMessage, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		raw, err := cbc.client.ProfileMetadata(ctx, address, key)
		return raw, err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	raw, ok := result.(json.RawMessage)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return raw, nil
}

// SetProfileMetadata writes profile metadata with circuit breaker protection.
func (cbc *CircuitBreakerClient) SetProfileMetadata(ctx context.Context, address, key string, value interface{}) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.SetProfileMetadata(ctx, address, key, value)
	})
	return err
}
