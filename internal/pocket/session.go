// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package pocket holds the loaded storefront state and the pipeline
// that builds it from remote documents.
package pocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pockettv/pockettv/internal/catalog"
	"github.com/pockettv/pockettv/internal/models"
)

// Snapshot is the immutable result of one completed load. Maps inside
// a committed snapshot are never mutated; a reload builds fresh maps
// and swaps the whole snapshot.
type Snapshot struct {
	Info            *models.PocketInfo
	Metadata        *models.PocketMetadata
	Media           map[string]*models.MediaItem
	Slugs           map[string]string
	PermissionItems map[string]*models.PermissionItem
	Marketplaces    map[string]*models.Marketplace
	OwnedItems      []*models.UserItem
	LoadedAt        time.Time
}

// Session is the concurrency-safe container for the current snapshot.
//
// Loads are versioned by a monotonic generation counter instead of a
// busy flag: every load claims a generation up front, and only the
// load holding the latest generation may commit. A newer load
// starting mid-flight silently supersedes the older one.
type Session struct {
	generation atomic.Uint64

	mu   sync.RWMutex
	snap *Snapshot
}

// NewSession returns an empty session; Loaded reports false until the
// first successful commit.
func NewSession() *Session {
	return &Session{}
}

// BeginLoad claims a new load generation.
func (s *Session) BeginLoad() uint64 {
	return s.generation.Add(1)
}

// Generation returns the latest claimed load generation.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// CommitIfCurrent installs the snapshot if gen is still the latest
// claimed generation. Returns false when a newer load superseded this
// one, in which case the snapshot is discarded.
func (s *Session) CommitIfCurrent(gen uint64, snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation.Load() {
		return false
	}
	s.snap = snap
	return true
}

// Loaded reports whether any load has committed.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// MediaItem looks up a media item by ID in the current snapshot.
func (s *Session) MediaItem(id string) *models.MediaItem {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.Media[id]
}

// MediaBySlug looks up a media item by its URL slug.
func (s *Session) MediaBySlug(slug string) *models.MediaItem {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	id, ok := snap.Slugs[slug]
	if !ok {
		return nil
	}
	return snap.Media[id]
}

// ResolveMedia computes the permission verdict for a media item against
// the current snapshot's permission-item map.
func (s *Session) ResolveMedia(item *models.MediaItem) *models.MediaPermissions {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	return catalog.ResolveMedia(item, snap.PermissionItems)
}

// SelectMedia runs the filter/sort pipeline over the current snapshot.
func (s *Session) SelectMedia(opts catalog.SelectOptions, now time.Time) []*models.MediaItem {
	snap := s.Snapshot()
	if snap == nil {
		return nil
	}
	return catalog.SelectMedia(snap.Media, opts, s.ResolveMedia, now)
}
