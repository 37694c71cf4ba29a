// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package catalog

import (
	"testing"
	"time"

	"github.com/pockettv/pockettv/internal/models"
)

var filterNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// filterFixture builds a small mixed catalog:
//   - vod-a, vod-b: plain VOD items with titles and dates
//   - live-now: currently live
//   - live-soon: upcoming
//   - live-done: ended
//   - public-item: public, one permission ref
//   - gated-owned / gated-unowned: permission-gated items
func filterFixture() (map[string]*models.MediaItem, Resolver) {
	mk := func(id, title, date string) *models.MediaItem {
		return &models.MediaItem{
			ID: id, Title: title, Date: date,
			Type: models.ItemTypeMedia, MediaType: models.MediaTypeVideo,
		}
	}
	mkLive := func(id, title, start, end string) *models.MediaItem {
		it := mk(id, title, "")
		it.LiveVideo = true
		it.StartTime = start
		it.EndTime = end
		return it
	}

	media := map[string]*models.MediaItem{
		"vod-a":     mk("vod-a", "Alpha", "2023-06-01"),
		"vod-b":     mk("vod-b", "Beta", "2023-07-01"),
		"live-now":  mkLive("live-now", "Now Show", "2023-12-31T23:00:00Z", "2024-01-01T02:00:00Z"),
		"live-soon": mkLive("live-soon", "Soon Show", "2024-01-01T10:00:00Z", ""),
		"live-done": mkLive("live-done", "Done Show", "2023-12-30T00:00:00Z", "2023-12-30T02:00:00Z"),
		"public-item": {
			ID: "public-item", Title: "Public", Public: true,
			Type: models.ItemTypeMedia, MediaType: models.MediaTypeVideo,
			Permissions: []models.PermissionRef{{PermissionItemID: "p"}},
		},
		"gated-owned": {
			ID: "gated-owned", Title: "Gated Owned",
			Type: models.ItemTypeMedia, MediaType: models.MediaTypeVideo,
			Permissions: []models.PermissionRef{{PermissionItemID: "owned"}},
		},
		"gated-unowned": {
			ID: "gated-unowned", Title: "Gated Unowned",
			Type: models.ItemTypeMedia, MediaType: models.MediaTypeVideo,
			Permissions: []models.PermissionRef{{PermissionItemID: "unowned"}},
		},
	}

	media["vod-a"].Tags = []string{"sports", "live"}
	media["vod-b"].Tags = []string{"sports"}
	media["live-now"].Tags = []string{"sports", "live"}
	media["vod-a"].Attributes = map[string][]string{"league": {"nba", "wnba"}}
	media["vod-b"].Attributes = map[string][]string{"league": {"nfl"}}

	perms := map[string]*models.PermissionItem{
		"owned":   {ID: "owned", Owned: true},
		"unowned": {ID: "unowned"},
	}
	resolver := func(item *models.MediaItem) *models.MediaPermissions {
		return ResolveMedia(item, perms)
	}
	return media, resolver
}

func ids(items []*models.MediaItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestSelectMediaPermissionBuckets(t *testing.T) {
	media, resolve := filterFixture()

	got := ids(SelectMedia(media, SelectOptions{Permissions: PermissionsAuthorized}, resolve, filterNow))
	if len(got) != 1 || got[0] != "gated-owned" {
		t.Errorf("authorized bucket = %v, want only gated-owned", got)
	}

	got = ids(SelectMedia(media, SelectOptions{Permissions: PermissionsUnauthorized}, resolve, filterNow))
	if len(got) != 1 || got[0] != "gated-unowned" {
		t.Errorf("unauthorized bucket = %v, want only gated-unowned", got)
	}

	// Public and permission-free items appear in neither bucket.
	for _, bucket := range []PermissionBucket{PermissionsAuthorized, PermissionsUnauthorized} {
		got = ids(SelectMedia(media, SelectOptions{Permissions: bucket}, resolve, filterNow))
		if contains(got, "public-item") || contains(got, "vod-a") {
			t.Errorf("bucket %s leaked public/permission-free items: %v", bucket, got)
		}
	}
}

func TestSelectMediaPermissionBucketWithoutResolver(t *testing.T) {
	media, _ := filterFixture()
	got := SelectMedia(media, SelectOptions{Permissions: PermissionsAuthorized}, nil, filterNow)
	if len(got) != 0 {
		t.Errorf("bucket filter without resolver must select nothing, got %v", ids(got))
	}
}

func TestSelectMediaScheduleWindows(t *testing.T) {
	media, resolve := filterFixture()

	tests := []struct {
		window ScheduleWindow
		want   []string
	}{
		{ScheduleLive, []string{"live-now"}},
		{ScheduleUpcoming, []string{"live-soon"}},
		{ScheduleLiveAndUpcoming, []string{"live-now", "live-soon"}},
		{SchedulePast, []string{"live-done"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			got := ids(SelectMedia(media, SelectOptions{Schedule: tt.window}, resolve, filterNow))
			if len(got) != len(tt.want) {
				t.Fatalf("window %s = %v, want %v", tt.window, got, tt.want)
			}
			for _, w := range tt.want {
				if !contains(got, w) {
					t.Errorf("window %s missing %s: %v", tt.window, w, got)
				}
			}
		})
	}
}

func TestSelectMediaPeriodWindow(t *testing.T) {
	media, resolve := filterFixture()

	opts := SelectOptions{
		Schedule:    SchedulePeriod,
		PeriodStart: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	got := ids(SelectMedia(media, opts, resolve, filterNow))
	if len(got) != 1 || got[0] != "live-now" {
		t.Errorf("period window = %v, want only live-now", got)
	}
}

func TestSelectMediaMalformedScheduleExcluded(t *testing.T) {
	media, resolve := filterFixture()
	media["broken"] = &models.MediaItem{
		ID: "broken", Type: models.ItemTypeMedia, MediaType: models.MediaTypeVideo,
		LiveVideo: true, StartTime: "garbage",
	}

	got := ids(SelectMedia(media, SelectOptions{Schedule: ScheduleLiveAndUpcoming}, resolve, filterNow))
	if contains(got, "broken") {
		t.Errorf("malformed schedule item leaked into window: %v", got)
	}

	// Without a schedule window the item is still visible as VOD.
	got = ids(SelectMedia(media, SelectOptions{}, resolve, filterNow))
	if !contains(got, "broken") {
		t.Errorf("malformed schedule item should remain visible without a window: %v", got)
	}
}

func TestSelectMediaTagsAllRequired(t *testing.T) {
	media, resolve := filterFixture()

	got := ids(SelectMedia(media, SelectOptions{Tags: []string{"sports", "live"}}, resolve, filterNow))
	if len(got) != 2 || !contains(got, "vod-a") || !contains(got, "live-now") {
		t.Errorf("tags sports+live = %v, want vod-a and live-now", got)
	}
}

func TestSelectMediaAttributes(t *testing.T) {
	media, resolve := filterFixture()

	got := ids(SelectMedia(media, SelectOptions{Attributes: map[string]string{"league": "wnba"}}, resolve, filterNow))
	if len(got) != 1 || got[0] != "vod-a" {
		t.Errorf("attribute league=wnba = %v, want only vod-a", got)
	}

	got = ids(SelectMedia(media, SelectOptions{Attributes: map[string]string{"league": "mlb"}}, resolve, filterNow))
	if len(got) != 0 {
		t.Errorf("attribute league=mlb = %v, want empty", got)
	}
}

func TestSelectMediaDateFilter(t *testing.T) {
	media, resolve := filterFixture()

	day := time.Date(2023, 6, 1, 15, 30, 0, 0, time.UTC) // time of day ignored
	got := ids(SelectMedia(media, SelectOptions{Date: &day}, resolve, filterNow))
	if len(got) != 1 || got[0] != "vod-a" {
		t.Errorf("date filter = %v, want only vod-a", got)
	}
}

func TestSortMediaLiveFirst(t *testing.T) {
	media, resolve := filterFixture()

	for _, order := range []SortOrder{SortDefault, SortTitleAsc, SortTitleDesc, SortTimeDesc} {
		got := ids(SelectMedia(media, SelectOptions{Sort: order}, resolve, filterNow))
		if len(got) == 0 || got[0] != "live-now" {
			t.Errorf("order %s: currently live item not first: %v", order, got)
		}
	}
}

func TestSortMediaTitleOrders(t *testing.T) {
	media, resolve := filterFixture()

	asc := ids(SelectMedia(media, SelectOptions{Sort: SortTitleAsc}, resolve, filterNow))
	desc := ids(SelectMedia(media, SelectOptions{Sort: SortTitleDesc}, resolve, filterNow))

	// Skip the leading live item; among VOD, titles must be ordered.
	ascVOD := asc[1:]
	descVOD := desc[1:]
	for i := 1; i < len(ascVOD); i++ {
		if media[ascVOD[i-1]].DisplayTitle() > media[ascVOD[i]].DisplayTitle() {
			t.Fatalf("title_asc not ascending: %v", ascVOD)
		}
	}
	for i := 1; i < len(descVOD); i++ {
		if media[descVOD[i-1]].DisplayTitle() < media[descVOD[i]].DisplayTitle() {
			t.Fatalf("title_desc not descending: %v", descVOD)
		}
	}
}

func TestSortMediaTimeDesc(t *testing.T) {
	media, resolve := filterFixture()

	got := ids(SelectMedia(media, SelectOptions{Sort: SortTimeDesc}, resolve, filterNow))
	// vod-b (2023-07-01) must precede vod-a (2023-06-01) under time_desc.
	var posA, posB int
	for i, id := range got {
		if id == "vod-a" {
			posA = i
		}
		if id == "vod-b" {
			posB = i
		}
	}
	if posB > posA {
		t.Errorf("time_desc: vod-b should precede vod-a: %v", got)
	}
}

func TestSelectMediaIdempotentUnderResort(t *testing.T) {
	media, resolve := filterFixture()

	for _, order := range []SortOrder{SortDefault, SortTitleAsc, SortTimeDesc} {
		first := SelectMedia(media, SelectOptions{Sort: order}, resolve, filterNow)
		second := make([]*models.MediaItem, len(first))
		copy(second, first)
		sortMedia(second, order, filterNow)

		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("order %s not idempotent: %v vs %v", order, ids(first), ids(second))
			}
		}
	}
}

func TestSelectMediaDeterministic(t *testing.T) {
	media, resolve := filterFixture()

	a := ids(SelectMedia(media, SelectOptions{}, resolve, filterNow))
	for i := 0; i < 10; i++ {
		b := ids(SelectMedia(media, SelectOptions{}, resolve, filterNow))
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("selection not deterministic: %v vs %v", a, b)
			}
		}
	}
}
