// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package models

import "time"

// Media item type constants. A catalog entry qualifies for live
// scheduling only when Type is "media" and MediaType is "Video".
const (
	ItemTypeMedia  = "media"
	MediaTypeVideo = "Video"
)

// MediaItem is a single piece of content from a media catalog document.
//
// Timestamp fields (Date, StartTime, EndTime, StreamStartTime) are kept
// as the raw strings the catalog document carried. They are parsed
// lazily by the schedule calculator and date filter so malformed values
// degrade per item instead of failing the whole catalog decode.
type MediaItem struct {
	ID           string              `json:"id"`
	Slug         string              `json:"slug,omitempty"`
	Type         string              `json:"type"`
	MediaType    string              `json:"media_type"`
	Title        string              `json:"title"`
	CatalogTitle string              `json:"catalog_title,omitempty"`
	Description  string              `json:"description,omitempty"`
	ImageURL     string              `json:"image_url,omitempty"`
	Tags         []string            `json:"tags,omitempty"`
	Attributes   map[string][]string `json:"attributes,omitempty"`
	Date         string              `json:"date,omitempty"`

	// Live scheduling inputs.
	LiveVideo       bool   `json:"live_video,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
	StreamStartTime string `json:"stream_start_time,omitempty"`

	// Access control. Public bypasses all permission checks.
	Public      bool            `json:"public,omitempty"`
	Permissions []PermissionRef `json:"permissions,omitempty"`
}

// PermissionRef is an ordered reference from a media item to a
// permission item in the pocket's merged permission-item map.
type PermissionRef struct {
	PermissionItemID string `json:"permission_item_id"`
}

// DisplayTitle returns the catalog title when present, falling back to
// the item title. Sorting and display both use this value.
func (m *MediaItem) DisplayTitle() string {
	if m.CatalogTitle != "" {
		return m.CatalogTitle
	}
	return m.Title
}

// ScheduleInfo is the derived live/VOD scheduling state of a media
// item. It is recomputed on every catalog load and never persisted.
type ScheduleInfo struct {
	IsLiveContent bool `json:"is_live_content"`

	Started       bool `json:"started,omitempty"`
	Ended         bool `json:"ended,omitempty"`
	CurrentlyLive bool `json:"currently_live,omitempty"`

	StreamStartTime *time.Time `json:"stream_start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`

	// Locale-formatted display strings. Presentation only; the content
	// filter never consults these.
	DisplayDateShort string `json:"display_date_short,omitempty"`
	DisplayDateLong  string `json:"display_date_long,omitempty"`
	DisplayTime      string `json:"display_time,omitempty"`
}

// MediaCatalog is a remote catalog document: a media-item map plus a
// slug-to-id alias map.
type MediaCatalog struct {
	Media   map[string]*MediaItem `json:"media"`
	SlugMap map[string]string     `json:"slug_map,omitempty"`
}
