// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pockettv/config.yaml",
	"/etc/pockettv/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Fabric: FabricConfig{
			BaseURL:   "",
			Token:     "",
			Timeout:   30 * time.Second,
			RateLimit: 20,
		},
		Wallet: WalletConfig{
			BaseURL:            "",
			Token:              "",
			Timeout:            30 * time.Second,
			OwnedItemsPageSize: 100,
			ProfileNamespace:   "pockettv",
		},
		Pocket: PocketConfig{
			Slug:                 "",
			RefreshInterval:      5 * time.Minute,
			SignInTimeout:        2 * time.Minute,
			ScheduleTickInterval: 15 * time.Second,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8380,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			AuthDisabled:    false,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{
			Path:     "/data/pockettv",
			InMemory: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources (highest wins):
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (FABRIC_BASE_URL -> fabric.base_url, ...)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envSections maps environment variable prefixes to config sections.
// LOG_ is special-cased because the section is named "logging".
var envSections = map[string]string{
	"FABRIC_":   "fabric.",
	"WALLET_":   "wallet.",
	"POCKET_":   "pocket.",
	"SERVER_":   "server.",
	"SECURITY_": "security.",
	"STORE_":    "store.",
	"LOG_":      "logging.",
}

// envTransform converts environment variable names to koanf paths:
// FABRIC_BASE_URL -> fabric.base_url, LOG_LEVEL -> logging.level.
// Variables outside the known sections are ignored.
func envTransform(key string) string {
	for prefix, section := range envSections {
		if strings.HasPrefix(key, prefix) {
			return section + strings.ToLower(strings.TrimPrefix(key, prefix))
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars arrive as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw := k.Get(path)
		s, ok := raw.(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// findConfigFile returns the first config file that exists, honoring
// the CONFIG_PATH override.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
