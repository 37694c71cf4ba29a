// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package catalog

import (
	"fmt"
	"time"

	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/models"
)

// timestampLayouts are tried in order when parsing catalog timestamps.
// Catalog documents usually carry RFC3339, but date-only values appear
// in older tenants.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a catalog timestamp string.
func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

// ScheduleFor derives the live/VOD scheduling state of a media item at
// the given instant.
//
// An item qualifies for live scheduling only when its type is "media",
// its media type is "Video", and the live_video flag is set; anything
// else returns {IsLiveContent: false} immediately.
//
// For qualifying items:
//   - the stream start time defaults to start_time when no explicit
//     stream_start_time override is present
//   - started is true at/after the stream start time, or when no
//     stream start time exists at all (defaults to started)
//   - ended is true when end_time is set and has passed
//   - currentlyLive = started && !ended
//
// Any timestamp parse failure is logged and degrades the item to
// non-live rather than failing: malformed schedule data renders as
// always-visible VOD instead of crashing the catalog.
func ScheduleFor(item *models.MediaItem, now time.Time) *models.ScheduleInfo {
	notLive := &models.ScheduleInfo{IsLiveContent: false}

	if item == nil || item.Type != models.ItemTypeMedia || item.MediaType != models.MediaTypeVideo || !item.LiveVideo {
		return notLive
	}

	raw := item.StreamStartTime
	if raw == "" {
		raw = item.StartTime
	}

	var streamStart *time.Time
	if raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			logging.Warn().Err(err).Str("media_item", item.ID).Msg("Malformed stream start time, treating item as VOD")
			return notLive
		}
		streamStart = &t
	}

	var endTime *time.Time
	if item.EndTime != "" {
		t, err := parseTimestamp(item.EndTime)
		if err != nil {
			logging.Warn().Err(err).Str("media_item", item.ID).Msg("Malformed end time, treating item as VOD")
			return notLive
		}
		endTime = &t
	}

	// No stream start time at all defaults to started.
	started := streamStart == nil || !now.Before(*streamStart)
	ended := endTime != nil && now.After(*endTime)

	info := &models.ScheduleInfo{
		IsLiveContent:   true,
		Started:         started,
		Ended:           ended,
		CurrentlyLive:   started && !ended,
		StreamStartTime: streamStart,
		EndTime:         endTime,
	}

	if streamStart != nil {
		local := streamStart.Local()
		info.DisplayDateShort = local.Format("Jan 2")
		info.DisplayDateLong = local.Format("Monday, January 2, 2006")
		info.DisplayTime = local.Format("3:04 PM MST")
	}

	return info
}
