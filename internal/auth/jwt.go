// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package auth provides session tokens and the signed-in signal that
// gates ownership resolution.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session token errors.
var (
	ErrInvalidToken = errors.New("auth: invalid session token")
	ErrExpiredToken = errors.New("auth: session token expired")
)

// SessionClaims are the JWT claims carried by a session token. Subject
// holds the user's wallet address.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 session tokens.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager creates a manager signing with the given secret.
func NewJWTManager(secret []byte, timeout time.Duration) *JWTManager {
	if timeout == 0 {
		timeout = 24 * time.Hour
	}
	return &JWTManager{secret: secret, timeout: timeout}
}

// Issue creates a signed session token for the given wallet address.
func (m *JWTManager) Issue(address string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.timeout)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "pockettv",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a session token and returns the wallet address it was
// issued for.
func (m *JWTManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
