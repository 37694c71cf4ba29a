// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package metrics defines the Prometheus instrumentation for PocketTV:
// remote fetch latency, circuit breaker state, catalog load outcomes,
// permission resolution volume, cache efficiency, and API throughput.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote fetch metrics (content fabric and wallet clients).
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_fetch_duration_seconds",
			Help:    "Duration of remote metadata and wallet fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"}, // source: "fabric", "wallet"
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_fetch_errors_total",
			Help: "Total number of failed remote fetches",
		},
		[]string{"source", "operation"},
	)

	// Circuit breaker metrics.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through circuit breakers by outcome",
		},
		[]string{"name", "outcome"}, // outcome: "success", "failure", "rejected"
	)

	// Catalog load pipeline metrics.
	CatalogLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_loads_total",
			Help: "Total catalog load attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "superseded"
	)

	CatalogLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_load_duration_seconds",
			Help:    "End-to-end duration of a full catalog load",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	MediaItemsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_items_loaded",
			Help: "Number of media items in the current merged catalog",
		},
	)

	PermissionItemsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "permission_items_loaded",
			Help: "Number of permission items in the current merged map",
		},
	)

	// Permission resolution metrics.
	PermissionResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_resolutions_total",
			Help: "Total per-item permission resolutions by verdict",
		},
		[]string{"verdict"}, // "authorized", "unauthorized"
	)

	OwnedItemsFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "owned_items_fetched",
			Help: "Number of owned items returned by the last wallet refresh",
		},
	)

	// Cache metrics (pocket info and marketplace lookups).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache"},
	)

	// API endpoint metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket metrics.
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_broadcasts_total",
			Help: "Total WebSocket broadcasts by message type",
		},
		[]string{"type"},
	)

	// Local store metrics.
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total local store operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)
)
