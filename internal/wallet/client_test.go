// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package wallet

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/models"
)

func newTestClient(handler http.Handler, pageSize int) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(&config.WalletConfig{
		BaseURL:            srv.URL,
		Timeout:            5 * time.Second,
		OwnedItemsPageSize: pageSize,
		ProfileNamespace:   "pockettv",
	})
	return client, srv
}

func TestOwnedItemsPagination(t *testing.T) {
	// Three items served with a page size of two: one full page, then a
	// short page that terminates the walk.
	all := []*models.UserItem{
		{TokenID: "1", ContractAddress: "0xAAA"},
		{TokenID: "2", ContractAddress: "0xBBB"},
		{TokenID: "3", ContractAddress: "0xCCC"},
	}
	var requests int
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit != 2 {
			t.Errorf("limit = %d, want 2", limit)
		}
		end := start + limit
		if end > len(all) {
			end = len(all)
		}
		page := ownedItemsPage{Total: len(all)}
		if start < len(all) {
			page.Items = all[start:end]
		}
		_ = json.NewEncoder(w).Encode(page)
	}), 2)
	defer srv.Close()

	items, err := client.OwnedItems(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if items[2].TokenID != "3" {
		t.Errorf("items out of order: %+v", items)
	}
}

func TestOwnedItemsEmpty(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ownedItemsPage{})
	}), 100)
	defer srv.Close()

	items, err := client.OwnedItems(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("OwnedItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestProfileMetadataMissingKey(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}), 100)
	defer srv.Close()

	data, err := client.ProfileMetadata(context.Background(), "0xabc", "progress:item-1")
	if err != nil {
		t.Fatalf("ProfileMetadata: %v", err)
	}
	if data != nil {
		t.Errorf("missing key should yield nil, got %s", data)
	}
}

func TestProfileMetadataRoundTrip(t *testing.T) {
	stored := map[string][]byte{}
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/users/0xabc/profile/pockettv/progress:item-1"
		if r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			stored[r.URL.Path] = body
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			data, ok := stored[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(data)
		}
	}), 100)
	defer srv.Close()

	value := map[string]float64{"position_sec": 42.5}
	if err := client.SetProfileMetadata(context.Background(), "0xabc", "progress:item-1", value); err != nil {
		t.Fatalf("SetProfileMetadata: %v", err)
	}

	raw, err := client.ProfileMetadata(context.Background(), "0xabc", "progress:item-1")
	if err != nil {
		t.Fatalf("ProfileMetadata: %v", err)
	}
	var got map[string]float64
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["position_sec"] != 42.5 {
		t.Errorf("round trip = %v", got)
	}
}

func TestMarketplaceFillsID(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/marketplaces/mkt-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(&models.Marketplace{
			Items: []*models.MarketplaceItem{{SKU: "sku-a", ContractAddress: "0xAAA"}},
		})
	}), 100)
	defer srv.Close()

	mkt, err := client.Marketplace(context.Background(), "mkt-1")
	if err != nil {
		t.Fatalf("Marketplace: %v", err)
	}
	if mkt.ID != "mkt-1" {
		t.Errorf("ID = %q, want the requested ID back-filled", mkt.ID)
	}
	if len(mkt.Items) != 1 {
		t.Errorf("items = %+v", mkt.Items)
	}
}
