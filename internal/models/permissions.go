// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package models

// PermissionItemTypeOwnedItem marks a permission item whose ownership
// is proven by holding the referenced marketplace item.
const PermissionItemTypeOwnedItem = "owned_item"

// PermissionItem is a named entitlement gate tied to a purchasable
// marketplace SKU.
//
// The persisted fields come from the pocket's permission-set documents.
// MarketplaceItem, Owned, and Subsumed are derived at resolution time
// and are only meaningful after the resolver's ownership pass has run.
type PermissionItem struct {
	ID            string   `json:"id"`
	Priority      *int     `json:"priority,omitempty"`
	MarketplaceID string   `json:"marketplace_id,omitempty"`
	SKU           string   `json:"sku,omitempty"`
	Type          string   `json:"type"`
	Subsumes      []string `json:"subsumes,omitempty"`
	DVR           bool     `json:"dvr,omitempty"`

	// Presentation only.
	AccessTitle     string `json:"access_title,omitempty"`
	AccessSubtitle  string `json:"access_subtitle,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`

	// Derived at resolution time.
	MarketplaceItem *MarketplaceItem `json:"marketplace_item,omitempty"`
	Owned           bool             `json:"owned"`
	Subsumed        bool             `json:"subsumed,omitempty"`
}

// MarketplaceItem is a purchasable listing inside a marketplace,
// joined onto permission items by SKU.
type MarketplaceItem struct {
	SKU             string `json:"sku"`
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	ContractAddress string `json:"contract_address"`
	Price           string `json:"price,omitempty"`
	Currency        string `json:"currency,omitempty"`
	Available       bool   `json:"available,omitempty"`
}

// Marketplace is a remote marketplace document listing purchasable items.
type Marketplace struct {
	ID    string             `json:"id"`
	Name  string             `json:"name,omitempty"`
	Items []*MarketplaceItem `json:"items"`
}

// ItemBySKU returns the marketplace item with the given SKU, or nil.
func (m *Marketplace) ItemBySKU(sku string) *MarketplaceItem {
	if m == nil {
		return nil
	}
	for _, item := range m.Items {
		if item != nil && item.SKU == sku {
			return item
		}
	}
	return nil
}

// UserItem is an entitlement instance held by the current user,
// returned by the wallet's owned-items listing.
type UserItem struct {
	TokenID         string `json:"token_id"`
	ContractAddress string `json:"contract_address"`
	EditionName     string `json:"edition_name,omitempty"`

	// PermissionItemID back-references the permission item this holding
	// satisfies. When the wallet omits it, the resolver back-fills it
	// by contract-address match.
	PermissionItemID string `json:"permission_item_id,omitempty"`
}

// PermissionSet is a remote document enumerating permission items.
type PermissionSet struct {
	PermissionItems map[string]*PermissionItem `json:"permission_items"`
}

// MediaPermissions is the resolver's verdict for one media item.
type MediaPermissions struct {
	MediaItemID string `json:"media_item_id"`

	// Public is copied from the item and bypasses all checks.
	Public bool `json:"public"`

	// Authorized is true when the item is public, references no
	// permission items, or any referenced permission item is owned.
	Authorized bool `json:"authorized"`

	// DVR is true when any owned referenced permission item grants DVR.
	DVR bool `json:"dvr"`

	// PermissionItems is the resolvable subset of the item's
	// references, sorted by display priority.
	PermissionItems []*PermissionItem `json:"permission_items"`

	// DisplayedPermissionItems is PermissionItems minus subsumed
	// entries; this is what a storefront should render.
	DisplayedPermissionItems []*PermissionItem `json:"displayed_permission_items"`

	// AnyItemsAvailable signals that a purchasable upsell exists:
	// at least one referenced item is neither owned nor subsumed.
	AnyItemsAvailable bool `json:"any_items_available"`
}
