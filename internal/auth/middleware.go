// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const addressContextKey contextKey = "wallet_address"

// AddressFromContext returns the authenticated wallet address set by
// Middleware, or "" when the request is unauthenticated.
func AddressFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(addressContextKey).(string)
	return addr
}

// ContextWithAddress is used by tests and the websocket upgrader to
// inject an authenticated address.
func ContextWithAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, addressContextKey, address)
}

// Middleware verifies the session token on protected routes and stores
// the wallet address in the request context. With disabled set, every
// request passes through unauthenticated.
//
// The token is read from the Authorization header (Bearer scheme) with
// a cookie fallback for browser websocket upgrades, which cannot set
// headers.
func Middleware(manager *JWTManager, disabled bool, reject func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if disabled {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				reject(w, r, ErrInvalidToken)
				return
			}

			address, err := manager.Verify(token)
			if err != nil {
				reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAddress(r.Context(), address)))
		})
	}
}

// OptionalMiddleware resolves the wallet address when a valid token is
// present but never rejects the request. Endpoints behind it degrade
// gracefully for anonymous users.
func OptionalMiddleware(manager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if address, err := manager.Verify(token); err == nil {
					r = r.WithContext(ContextWithAddress(r.Context(), address))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the session token from the request.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("pockettv_session"); err == nil {
		return cookie.Value
	}
	return ""
}
