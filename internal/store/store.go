// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package store provides the local BadgerDB key-value store: the JWT
// signing key, preview-gate password digests, video settings, and a
// local fallback copy of watch progress.
package store

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/metrics"
	"github.com/pockettv/pockettv/internal/models"
)

// Key layout.
const (
	signingKeyKey       = "signing_key"
	videoSettingsKey    = "video_settings"
	previewDigestPrefix = "preview_digest:"
	progressPrefix      = "progress:"
)

// ErrNotFound is returned when a requested key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store wraps a BadgerDB instance with the typed operations the
// service needs. All methods are safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the configured path. With
// InMemory set, nothing touches disk; tests and CI use this mode.
func Open(cfg *config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying BadgerDB handle for components that manage
// their own key ranges.
func (s *Store) DB() *badger.DB {
	return s.db
}

// SigningKey returns the persisted JWT signing key, generating and
// storing a random 32-byte key on first use. A configured secret takes
// precedence; pass it through and this is never called.
func (s *Store) SigningKey() ([]byte, error) {
	var key []byte
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(signingKeyKey))
		if err == nil {
			return item.Value(func(val []byte) error {
				key = append([]byte(nil), val...)
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get signing key: %w", err)
		}

		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
		return txn.Set([]byte(signingKeyKey), key)
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues("signing_key", "error").Inc()
		return nil, err
	}
	metrics.StoreOperations.WithLabelValues("signing_key", "ok").Inc()
	return key, nil
}

// SetPreviewPassword hashes and stores the preview-gate password for a
// pocket. An empty password clears the gate.
func (s *Store) SetPreviewPassword(pocketSlug, password string) error {
	key := []byte(previewDigestPrefix + pocketSlug)

	if password == "" {
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return nil
		})
		if err != nil {
			metrics.StoreOperations.WithLabelValues("preview_digest", "error").Inc()
			return fmt.Errorf("clear preview password: %w", err)
		}
		metrics.StoreOperations.WithLabelValues("preview_digest", "ok").Inc()
		return nil
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash preview password: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, digest)
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues("preview_digest", "error").Inc()
		return fmt.Errorf("store preview digest: %w", err)
	}
	metrics.StoreOperations.WithLabelValues("preview_digest", "ok").Inc()
	return nil
}

// CheckPreviewPassword verifies a candidate password against the
// stored digest. Returns (true, nil) when no gate is configured.
func (s *Store) CheckPreviewPassword(pocketSlug, password string) (bool, error) {
	var digest []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(previewDigestPrefix + pocketSlug))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get preview digest: %w", err)
		}
		return item.Value(func(val []byte) error {
			digest = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues("preview_digest", "error").Inc()
		return false, err
	}
	metrics.StoreOperations.WithLabelValues("preview_digest", "ok").Inc()

	if len(digest) == 0 {
		return true, nil
	}
	if err := bcrypt.CompareHashAndPassword(digest, []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// VideoSettings returns the persisted player settings, or ErrNotFound.
func (s *Store) VideoSettings() (*models.VideoSettings, error) {
	var settings models.VideoSettings
	err := s.getJSON(videoSettingsKey, &settings, "video_settings")
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetVideoSettings persists player settings.
func (s *Store) SetVideoSettings(settings *models.VideoSettings) error {
	return s.setJSON(videoSettingsKey, settings, "video_settings")
}

// WatchProgress returns the locally cached watch progress for one media
// item, or ErrNotFound.
func (s *Store) WatchProgress(pocketSlug, mediaItemID string) (*models.WatchProgress, error) {
	var progress models.WatchProgress
	key := progressPrefix + pocketSlug + ":" + mediaItemID
	if err := s.getJSON(key, &progress, "progress"); err != nil {
		return nil, err
	}
	return &progress, nil
}

// SetWatchProgress caches watch progress locally. The wallet profile is
// the source of truth; this copy survives wallet outages.
func (s *Store) SetWatchProgress(pocketSlug string, progress *models.WatchProgress) error {
	key := progressPrefix + pocketSlug + ":" + progress.MediaItemID
	return s.setJSON(key, progress, "progress")
}

func (s *Store) getJSON(key string, out interface{}, op string) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.StoreOperations.WithLabelValues(op, "error").Inc()
		}
		return err
	}
	metrics.StoreOperations.WithLabelValues(op, "ok").Inc()
	return nil
}

func (s *Store) setJSON(key string, value interface{}, op string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("set %s: %w", key, err)
	}
	metrics.StoreOperations.WithLabelValues(op, "ok").Inc()
	return nil
}
