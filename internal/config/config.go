// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package config loads and validates the PocketTV service configuration
// using Koanf v2 layered sources: struct defaults, optional YAML file,
// then environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the PocketTV service.
type Config struct {
	Fabric   FabricConfig   `koanf:"fabric"`
	Wallet   WalletConfig   `koanf:"wallet"`
	Pocket   PocketConfig   `koanf:"pocket"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Store    StoreConfig    `koanf:"store"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// FabricConfig configures the content-fabric metadata client.
type FabricConfig struct {
	BaseURL string        `koanf:"base_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit caps outbound fabric requests per second (0 = unlimited).
	RateLimit float64 `koanf:"rate_limit"`
}

// WalletConfig configures the wallet/marketplace client.
type WalletConfig struct {
	BaseURL string        `koanf:"base_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`

	// OwnedItemsPageSize is the limit used for paginated owned-item
	// listings.
	OwnedItemsPageSize int `koanf:"owned_items_page_size"`

	// ProfileNamespace prefixes all profile-metadata keys (watch
	// progress) written for this deployment.
	ProfileNamespace string `koanf:"profile_namespace"`
}

// PocketConfig selects the pocket to serve and tunes the load pipeline.
type PocketConfig struct {
	// Slug or object ID of the pocket to load.
	Slug string `koanf:"slug"`

	// RefreshInterval re-runs the ownership refresh; 0 disables it.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// SignInTimeout bounds how long a load waits for the signed-in
	// signal before skipping the ownership fetch.
	SignInTimeout time.Duration `koanf:"sign_in_timeout"`

	// ScheduleTickInterval drives live-transition broadcasts.
	ScheduleTickInterval time.Duration `koanf:"schedule_tick_interval"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig configures sessions, rate limits, and CORS.
type SecurityConfig struct {
	// JWTSecret signs session tokens. Required unless AuthDisabled.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AuthDisabled removes the session requirement on profile
	// endpoints. Development only.
	AuthDisabled bool `koanf:"auth_disabled"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// StoreConfig configures the local BadgerDB key-value store.
type StoreConfig struct {
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence (tests, CI).
	InMemory bool `koanf:"in_memory"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks cross-field constraints that koanf cannot express.
func (c *Config) Validate() error {
	if c.Fabric.BaseURL == "" {
		return fmt.Errorf("fabric.base_url is required")
	}
	if c.Wallet.BaseURL == "" {
		return fmt.Errorf("wallet.base_url is required")
	}
	if c.Pocket.Slug == "" {
		return fmt.Errorf("pocket.slug is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if !c.Security.AuthDisabled {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters (got %d)", len(c.Security.JWTSecret))
		}
	}
	if c.Wallet.OwnedItemsPageSize < 1 {
		return fmt.Errorf("wallet.owned_items_page_size must be positive")
	}
	if c.Pocket.SignInTimeout <= 0 {
		return fmt.Errorf("pocket.sign_in_timeout must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
