// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pockettv/pockettv/internal/auth"
	"github.com/pockettv/pockettv/internal/models"
)

// Router builds the HTTP handler tree.
type Router struct {
	handler *Handler
}

// NewRouter creates a router around the given handler set.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	h := router.handler
	cfg := h.cfg

	rateReqs := cfg.Security.RateLimitReqs
	if rateReqs <= 0 {
		rateReqs = 300
	}
	rateWindow := cfg.Security.RateLimitWindow
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	rejectAuth := func(w http.ResponseWriter, r *http.Request, err error) {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "missing or invalid session token", err)
	}
	requireAuth := auth.Middleware(h.jwt, cfg.Security.AuthDisabled, rejectAuth)

	// optionalAuth resolves the address when a token is present but
	// never rejects; watch progress degrades to the local store.
	optionalAuth := auth.OptionalMiddleware(h.jwt)

	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.Security.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(20, 5*time.Minute))
		r.Post("/login", h.Login)
		r.With(requireAuth).Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateReqs, rateWindow))
		r.Use(PrometheusMetrics())

		r.Get("/pocket", h.PocketInfo)
		r.Post("/pocket/reload", h.PocketReload)
		r.Post("/pocket/preview", h.PreviewGate)

		r.Get("/media", h.MediaList)
		r.Get("/media/slug/{slug}", h.MediaBySlug)
		r.Get("/media/{id}", h.MediaByID)
		r.Get("/media/{id}/permissions", h.MediaPermissions)

		r.With(optionalAuth).Get("/profile/progress/{id}", h.WatchProgressGet)
		r.With(requireAuth).Put("/profile/progress/{id}", h.WatchProgressPut)

		r.Get("/settings/video", h.VideoSettingsGet)
		r.Put("/settings/video", h.VideoSettingsPut)

		r.With(optionalAuth).Get("/ws", h.WebSocket)
	})

	return r
}

// allowedOrigins defaults to wildcard when no origins are configured.
func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
