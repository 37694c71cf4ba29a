// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package fabric

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/models"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(&config.FabricConfig{
		BaseURL: srv.URL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
	})
	return client, srv
}

func TestResolvePocket(t *testing.T) {
	var gotAuth string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/pockets/demo" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(&models.PocketInfo{
			Slug:        "demo",
			ObjectID:    "iq_1",
			VersionHash: "hq_abc",
			TenantID:    "ten_1",
		})
	}))
	defer srv.Close()

	info, err := client.ResolvePocket(context.Background(), "demo")
	if err != nil {
		t.Fatalf("ResolvePocket: %v", err)
	}
	if info.VersionHash != "hq_abc" || info.ObjectID != "iq_1" {
		t.Errorf("info = %+v", info)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestResolvePocketMissingVersionHash(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(&models.PocketInfo{Slug: "demo", ObjectID: "iq_1"})
	}))
	defer srv.Close()

	if _, err := client.ResolvePocket(context.Background(), "demo"); err == nil {
		t.Fatal("resolve without a version hash should fail")
	}
}

func TestFetchErrorIncludesBody(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such object"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := client.PocketMetadata(context.Background(), "hq_missing")
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "no such object") {
		t.Errorf("error %q should carry status and body", err)
	}
}

func TestMediaCatalogPath(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/q/hq_abc/meta/public/asset_metadata/media_catalogs/cat-a"
		if r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		_ = json.NewEncoder(w).Encode(&models.MediaCatalog{
			Media: map[string]*models.MediaItem{
				"item-1": {ID: "item-1", Title: "One"},
			},
		})
	}))
	defer srv.Close()

	cat, err := client.MediaCatalog(context.Background(), "hq_abc", "cat-a")
	if err != nil {
		t.Fatalf("MediaCatalog: %v", err)
	}
	if len(cat.Media) != 1 || cat.Media["item-1"].Title != "One" {
		t.Errorf("catalog = %+v", cat)
	}
}

func TestPermissionSetPath(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/q/hq_abc/meta/public/asset_metadata/permission_sets/set-a"
		if r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		_ = json.NewEncoder(w).Encode(&models.PermissionSet{
			PermissionItems: map[string]*models.PermissionItem{
				"perm-a": {ID: "perm-a"},
			},
		})
	}))
	defer srv.Close()

	set, err := client.PermissionSet(context.Background(), "hq_abc", "set-a")
	if err != nil {
		t.Fatalf("PermissionSet: %v", err)
	}
	if len(set.PermissionItems) != 1 {
		t.Errorf("set = %+v", set)
	}
}

func TestPing(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
