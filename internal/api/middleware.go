// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/metrics"
)

// RequestID attaches an X-Request-ID header to every response,
// honoring an incoming ID from a trusted proxy.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r)
		})
	}
}

// PrometheusMetrics records request counts and latency per route
// pattern. Must run inside the chi router so the pattern is resolved;
// using the pattern instead of the raw path keeps metric cardinality
// bounded.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}

			metrics.APIRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(ww.Status())).Inc()
			metrics.APIRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())

			logging.Debug().
				Str("method", r.Method).
				Str("path", sanitizeLogValue(r.URL.Path)).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}
