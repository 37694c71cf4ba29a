// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package models

import "time"

// PocketInfo identifies a tenant-configured storefront instance on the
// content fabric. It is resolved once per pocket and cached for the
// session; VersionHash pins all subsequent metadata reads.
type PocketInfo struct {
	Slug        string `json:"slug"`
	ObjectID    string `json:"object_id"`
	VersionHash string `json:"version_hash"`
	TenantID    string `json:"tenant_id"`
}

// PocketMetadata is the pocket's top-level metadata document. It names
// the catalog and permission-set documents to aggregate and the
// marketplaces that back the permission items.
type PocketMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Document IDs, in merge-precedence order (later wins).
	MediaCatalogIDs  []string `json:"media_catalogs"`
	PermissionSetIDs []string `json:"permission_sets"`
	MarketplaceIDs   []string `json:"marketplaces"`

	// PreviewPassword gates pre-launch access when non-empty.
	// Only a digest is ever stored locally.
	PreviewPasswordDigest string `json:"preview_password_digest,omitempty"`
}

// WatchProgress is the per-item playback position persisted under the
// user's namespaced profile-metadata key.
type WatchProgress struct {
	MediaItemID string    `json:"media_item_id"`
	PositionSec float64   `json:"position_sec"`
	DurationSec float64   `json:"duration_sec,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VideoSettings holds locally persisted player preferences.
type VideoSettings struct {
	Muted   bool    `json:"muted"`
	Volume  float64 `json:"volume"`
	Quality string  `json:"quality,omitempty"`
}
