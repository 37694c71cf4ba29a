// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package catalog

import (
	"sort"
	"strings"

	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/metrics"
	"github.com/pockettv/pockettv/internal/models"
)

// canonicalAddress normalizes a contract address for comparison.
// On-chain addresses are case-insensitive hex; wallets disagree on
// checksum casing.
func canonicalAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ResolveOwnership annotates the merged permission-item map with the
// user's wallet state. It must run to completion before any call to
// ResolveMedia, and it runs in two strictly separated phases:
//
//  1. Ownership: each permission item is joined to its marketplace
//     item by SKU, and an "owned_item" permission item is marked owned
//     when its resolved contract address matches any owned user item
//     (case-insensitive). Owned user items lacking an explicit
//     permission-item back-reference are back-filled by address match.
//
//  2. Subsumption: for every OWNED permission item, every ID in its
//     subsumes list marks the corresponding permission item (if
//     present) as subsumed. Phase 2 only starts after phase 1 has
//     finalized every owned flag, so results never depend on map
//     iteration order.
//
// The subsumption pass deliberately does not check the target's own
// ownership before flagging it: a malformed subsumption list can
// therefore mark an owned item subsumed. That mirrors the storefront's
// historical behavior and is left intact pending a ruling on intended
// semantics (see DESIGN.md).
//
// A missing marketplace, missing SKU, or unknown subsumption target is
// never an error; the affected item simply resolves as never-owned.
func ResolveOwnership(permissionItems map[string]*models.PermissionItem, marketplaces map[string]*models.Marketplace, ownedItems []*models.UserItem) {
	ownedByAddress := make(map[string]*models.UserItem, len(ownedItems))
	for _, owned := range ownedItems {
		if owned == nil || owned.ContractAddress == "" {
			continue
		}
		ownedByAddress[canonicalAddress(owned.ContractAddress)] = owned
	}

	// Phase 1: finalize every owned flag.
	for _, item := range permissionItems {
		item.MarketplaceItem = marketplaces[item.MarketplaceID].ItemBySKU(item.SKU)
		item.Owned = false
		item.Subsumed = false

		if item.Type != models.PermissionItemTypeOwnedItem || item.MarketplaceItem == nil {
			continue
		}

		addr := canonicalAddress(item.MarketplaceItem.ContractAddress)
		userItem, ok := ownedByAddress[addr]
		if !ok {
			continue
		}
		item.Owned = true

		// Reverse link: back-fill the user item's permission reference.
		if userItem.PermissionItemID == "" {
			userItem.PermissionItemID = item.ID
		}
	}

	// Phase 2: subsumption, over fully finalized ownership only.
	for _, item := range permissionItems {
		if !item.Owned {
			continue
		}
		for _, targetID := range item.Subsumes {
			target, ok := permissionItems[targetID]
			if !ok {
				logging.Debug().
					Str("permission_item", item.ID).
					Str("subsumes", targetID).
					Msg("Subsumption target not in permission-item map")
				continue
			}
			target.Subsumed = true
		}
	}
}

// ResolveMedia computes the authorization verdict for a single media
// item against the resolved permission-item map.
//
// The verdict follows the storefront's access rule exactly:
// authorized = public OR no permission references OR any referenced
// permission item owned. References naming IDs absent from the map are
// silently dropped, and the remaining items are ordered by ascending
// priority; items without a priority sort after items with one, and
// equal (or equally absent) priorities keep their original reference
// order.
func ResolveMedia(item *models.MediaItem, permissionItems map[string]*models.PermissionItem) *models.MediaPermissions {
	result := &models.MediaPermissions{
		MediaItemID: item.ID,
		Public:      item.Public,
	}

	// Resolvable subset, in reference order.
	refs := make([]*models.PermissionItem, 0, len(item.Permissions))
	for _, ref := range item.Permissions {
		if pi, ok := permissionItems[ref.PermissionItemID]; ok && pi != nil {
			refs = append(refs, pi)
		}
	}

	for _, pi := range refs {
		if pi.Owned {
			result.Authorized = true
			if pi.DVR {
				result.DVR = true
			}
		}
		if !pi.Owned && !pi.Subsumed {
			result.AnyItemsAvailable = true
		}
	}

	if item.Public || len(item.Permissions) == 0 {
		result.Authorized = true
	}

	// Stable priority sort: missing priority sorts last, ties keep
	// reference order.
	sort.SliceStable(refs, func(i, j int) bool {
		pi, pj := refs[i].Priority, refs[j].Priority
		switch {
		case pi == nil && pj == nil:
			return false
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi < *pj
		}
	})
	result.PermissionItems = refs

	displayed := make([]*models.PermissionItem, 0, len(refs))
	for _, pi := range refs {
		if !pi.Subsumed {
			displayed = append(displayed, pi)
		}
	}
	result.DisplayedPermissionItems = displayed

	verdict := "unauthorized"
	if result.Authorized {
		verdict = "authorized"
	}
	metrics.PermissionResolutions.WithLabelValues(verdict).Inc()

	return result
}
