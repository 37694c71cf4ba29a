// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package catalog

import (
	"testing"

	"github.com/pockettv/pockettv/internal/models"
)

func TestMergeCatalogsLastWriteWins(t *testing.T) {
	catalogs := map[string]*models.MediaCatalog{
		"cat-a": {
			Media: map[string]*models.MediaItem{
				"item-1": {ID: "item-1", Title: "From A", Slug: "one"},
				"item-2": {ID: "item-2", Title: "Only A"},
			},
		},
		"cat-b": {
			Media: map[string]*models.MediaItem{
				"item-1": {ID: "item-1", Title: "From B", Slug: "one-b"},
				"item-3": {ID: "item-3", Title: "Only B"},
			},
		},
	}

	media, slugs := MergeCatalogs([]string{"cat-a", "cat-b"}, catalogs)

	if len(media) != 3 {
		t.Fatalf("merged media size = %d, want 3", len(media))
	}
	if got := media["item-1"].Title; got != "From B" {
		t.Errorf("item-1 title = %q, want later catalog to win", got)
	}
	if slugs["one-b"] != "item-1" {
		t.Errorf("slug map missing later catalog's slug: %v", slugs)
	}

	// Reversed precedence flips the winner.
	media, _ = MergeCatalogs([]string{"cat-b", "cat-a"}, catalogs)
	if got := media["item-1"].Title; got != "From A" {
		t.Errorf("reversed order: item-1 title = %q, want %q", got, "From A")
	}
}

func TestMergeCatalogsSkipsAbsentAndNil(t *testing.T) {
	catalogs := map[string]*models.MediaCatalog{
		"cat-a": {
			Media: map[string]*models.MediaItem{
				"item-1": {ID: "item-1"},
				"bad":    nil,
			},
			SlugMap: map[string]string{"alias": "item-1"},
		},
	}

	media, slugs := MergeCatalogs([]string{"missing", "cat-a"}, catalogs)
	if len(media) != 1 {
		t.Fatalf("merged media size = %d, want 1", len(media))
	}
	if slugs["alias"] != "item-1" {
		t.Errorf("explicit slug map entry lost: %v", slugs)
	}
}

func TestMergePermissionSetsClearsDerivedFields(t *testing.T) {
	prio := 3
	sets := map[string]*models.PermissionSet{
		"set-a": {
			PermissionItems: map[string]*models.PermissionItem{
				"perm-1": {
					ID:       "perm-1",
					Priority: &prio,
					Type:     models.PermissionItemTypeOwnedItem,
					Owned:    true,
					Subsumed: true,
					MarketplaceItem: &models.MarketplaceItem{
						SKU: "stale",
					},
				},
			},
		},
	}

	merged := MergePermissionSets([]string{"set-a"}, sets)

	got := merged["perm-1"]
	if got == nil {
		t.Fatal("perm-1 missing from merge")
	}
	if got.Owned || got.Subsumed || got.MarketplaceItem != nil {
		t.Errorf("derived fields not cleared: owned=%v subsumed=%v mkt=%v",
			got.Owned, got.Subsumed, got.MarketplaceItem)
	}
	if got == sets["set-a"].PermissionItems["perm-1"] {
		t.Error("merged item aliases the source document")
	}
	if got.Priority == nil || *got.Priority != 3 {
		t.Error("persisted fields must survive the copy")
	}
}

func TestMergePermissionSetsPrecedence(t *testing.T) {
	sets := map[string]*models.PermissionSet{
		"set-a": {PermissionItems: map[string]*models.PermissionItem{
			"perm-1": {ID: "perm-1", SKU: "a"},
		}},
		"set-b": {PermissionItems: map[string]*models.PermissionItem{
			"perm-1": {ID: "perm-1", SKU: "b"},
		}},
	}

	merged := MergePermissionSets([]string{"set-a", "set-b"}, sets)
	if merged["perm-1"].SKU != "b" {
		t.Errorf("perm-1 SKU = %q, want later set to win", merged["perm-1"].SKU)
	}
}
