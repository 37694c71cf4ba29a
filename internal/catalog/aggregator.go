// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package catalog

import (
	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/models"
)

// MergeCatalogs merges fetched media-catalog documents into one media
// map and one slug-to-id map.
//
// Precedence is the order of the requested ID list, NOT fetch
// completion order: a later catalog overwrites earlier entries on key
// collision (last write wins, no conflict error). IDs absent from the
// fetched map are skipped; the pipeline treats fetch failures as fatal
// before this point, so a missing entry here only occurs when a
// catalog document legitimately decoded to nil.
//
// The returned maps are fresh on every call. Callers replace their
// previous maps wholesale; nothing is patched incrementally.
func MergeCatalogs(ids []string, catalogs map[string]*models.MediaCatalog) (map[string]*models.MediaItem, map[string]string) {
	media := make(map[string]*models.MediaItem)
	slugs := make(map[string]string)

	for _, id := range ids {
		cat := catalogs[id]
		if cat == nil {
			logging.Debug().Str("catalog_id", id).Msg("Skipping absent catalog in merge")
			continue
		}
		for itemID, item := range cat.Media {
			if item == nil {
				continue
			}
			media[itemID] = item
			if item.Slug != "" {
				slugs[item.Slug] = itemID
			}
		}
		for slug, itemID := range cat.SlugMap {
			slugs[slug] = itemID
		}
	}

	return media, slugs
}

// MergePermissionSets merges fetched permission-set documents into one
// permission-item map with the same last-write-wins precedence as
// MergeCatalogs.
//
// Each permission item is shallow-copied into the merged map so the
// resolver's derived fields (Owned, Subsumed, MarketplaceItem) never
// leak back into a cached source document across reloads.
func MergePermissionSets(ids []string, sets map[string]*models.PermissionSet) map[string]*models.PermissionItem {
	merged := make(map[string]*models.PermissionItem)

	for _, id := range ids {
		set := sets[id]
		if set == nil {
			logging.Debug().Str("permission_set_id", id).Msg("Skipping absent permission set in merge")
			continue
		}
		for itemID, item := range set.PermissionItems {
			if item == nil {
				continue
			}
			copied := *item
			copied.MarketplaceItem = nil
			copied.Owned = false
			copied.Subsumed = false
			merged[itemID] = &copied
		}
	}

	return merged
}
