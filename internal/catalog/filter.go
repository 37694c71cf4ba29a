// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package catalog

import (
	"sort"
	"time"

	"github.com/pockettv/pockettv/internal/models"
)

// PermissionBucket selects items by authorization verdict. Items that
// are public or reference no permission items belong to neither bucket
// and are excluded when either bucket is requested.
type PermissionBucket string

// Permission buckets.
const (
	PermissionsAuthorized   PermissionBucket = "authorized"
	PermissionsUnauthorized PermissionBucket = "unauthorized"
)

// ScheduleWindow selects live items by their scheduling state. Only
// items with the live_video flag and a start_time qualify; everything
// else is excluded outright when a schedule window is requested.
type ScheduleWindow string

// Schedule windows.
const (
	ScheduleLive            ScheduleWindow = "live"
	ScheduleLiveAndUpcoming ScheduleWindow = "live_and_upcoming"
	ScheduleUpcoming        ScheduleWindow = "upcoming"
	SchedulePast            ScheduleWindow = "past"
	SchedulePeriod          ScheduleWindow = "period"
)

// SortOrder selects the display ordering of a filtered list.
type SortOrder string

// Sort orders. SortDefault is ascending by time.
const (
	SortDefault   SortOrder = "default"
	SortTitleAsc  SortOrder = "title_asc"
	SortTitleDesc SortOrder = "title_desc"
	SortTimeDesc  SortOrder = "time_desc"
)

// SelectOptions is the predicate/sort specification for SelectMedia.
// All predicates combine with AND; zero values disable a predicate.
type SelectOptions struct {
	// Permissions filters by authorization bucket. Requires a Resolve
	// function.
	Permissions PermissionBucket

	// Schedule filters live items by scheduling window.
	Schedule ScheduleWindow

	// PeriodStart/PeriodEnd bound the SchedulePeriod window.
	PeriodStart time.Time
	PeriodEnd   time.Time

	// Date keeps items whose date falls on the same calendar day,
	// ignoring time of day.
	Date *time.Time

	// Tags requires the item to carry every listed tag.
	Tags []string

	// Attributes requires, per attribute ID, that the item's values
	// for that attribute include the configured value.
	Attributes map[string]string

	// Sort selects the output ordering.
	Sort SortOrder
}

// Resolver resolves a media item's permissions; SelectMedia needs one
// only when a permission bucket is requested.
type Resolver func(*models.MediaItem) *models.MediaPermissions

// SelectMedia applies the selection spec to the merged media map and
// returns a filtered, sorted list.
//
// Iteration over the map is made deterministic by pre-sorting item IDs,
// and the final ordering uses a stable sort, so selecting an
// already-selected list under the same options reproduces it exactly.
func SelectMedia(media map[string]*models.MediaItem, opts SelectOptions, resolve Resolver, now time.Time) []*models.MediaItem {
	ids := make([]string, 0, len(media))
	for id := range media {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	selected := make([]*models.MediaItem, 0, len(ids))
	for _, id := range ids {
		item := media[id]
		if item == nil {
			continue
		}
		if !matchesPermissions(item, opts, resolve) {
			continue
		}
		if !matchesSchedule(item, opts, now) {
			continue
		}
		if !matchesDate(item, opts.Date) {
			continue
		}
		if !matchesTags(item, opts.Tags) {
			continue
		}
		if !matchesAttributes(item, opts.Attributes) {
			continue
		}
		selected = append(selected, item)
	}

	sortMedia(selected, opts.Sort, now)
	return selected
}

// matchesPermissions applies the authorization bucket predicate.
// Public and permission-free items are excluded from both buckets:
// they carry no purchase decision either way.
func matchesPermissions(item *models.MediaItem, opts SelectOptions, resolve Resolver) bool {
	if opts.Permissions == "" {
		return true
	}
	if resolve == nil {
		return false
	}
	if item.Public || len(item.Permissions) == 0 {
		return false
	}
	r := resolve(item)
	if r == nil {
		return false
	}
	if opts.Permissions == PermissionsAuthorized {
		return r.Authorized
	}
	return !r.Authorized
}

// matchesSchedule applies the schedule window predicate. Items without
// live_video or a start_time never qualify while a window is active.
func matchesSchedule(item *models.MediaItem, opts SelectOptions, now time.Time) bool {
	if opts.Schedule == "" {
		return true
	}
	if !item.LiveVideo || item.StartTime == "" {
		return false
	}
	info := ScheduleFor(item, now)
	if !info.IsLiveContent {
		// Malformed schedule data degraded to VOD; a schedule window
		// cannot match it.
		return false
	}

	switch opts.Schedule {
	case ScheduleLive:
		return info.CurrentlyLive
	case ScheduleUpcoming:
		return !info.Started
	case ScheduleLiveAndUpcoming:
		return info.CurrentlyLive || !info.Started
	case SchedulePast:
		return info.Ended
	case SchedulePeriod:
		if info.StreamStartTime == nil {
			return false
		}
		start := *info.StreamStartTime
		if !opts.PeriodStart.IsZero() && start.Before(opts.PeriodStart) {
			return false
		}
		if !opts.PeriodEnd.IsZero() && start.After(opts.PeriodEnd) {
			return false
		}
		return true
	default:
		return false
	}
}

// matchesDate applies the exact calendar-day predicate, ignoring time
// of day. Items with no date or an unparseable date never match.
func matchesDate(item *models.MediaItem, date *time.Time) bool {
	if date == nil {
		return true
	}
	if item.Date == "" {
		return false
	}
	itemDate, err := parseTimestamp(item.Date)
	if err != nil {
		return false
	}
	y1, m1, d1 := itemDate.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// matchesTags requires every listed tag to be present on the item.
func matchesTags(item *models.MediaItem, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	have := make(map[string]bool, len(item.Tags))
	for _, t := range item.Tags {
		have[t] = true
	}
	for _, required := range tags {
		if !have[required] {
			return false
		}
	}
	return true
}

// matchesAttributes requires the item's value list for each attribute
// ID to include the configured value.
func matchesAttributes(item *models.MediaItem, attrs map[string]string) bool {
	for attrID, required := range attrs {
		values, ok := item.Attributes[attrID]
		if !ok {
			return false
		}
		found := false
		for _, v := range values {
			if v == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sortTime returns the item's time key for ordering: the parsed start
// time when present, falling back to the item date, else zero.
func sortTime(item *models.MediaItem) time.Time {
	if item.StartTime != "" {
		if t, err := parseTimestamp(item.StartTime); err == nil {
			return t
		}
	}
	if item.Date != "" {
		if t, err := parseTimestamp(item.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// sortMedia orders a selected list in place.
//
// This is a bespoke comparator, not a plain multi-key sort: currently
// live items ALWAYS precede non-live items, regardless of the
// requested order. Among two live items the comparison is start time
// ascending with a title tie-break. Descending orders invert only the
// time comparisons, never the live-before-VOD precedence. The sort is
// stable, so repeated sorting under the same order is idempotent.
func sortMedia(items []*models.MediaItem, order SortOrder, now time.Time) {
	if order == "" {
		order = SortDefault
	}
	timeInverted := order == SortTimeDesc || order == SortTitleDesc

	live := make(map[*models.MediaItem]bool, len(items))
	for _, item := range items {
		live[item] = ScheduleFor(item, now).CurrentlyLive
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]

		// Live before VOD, under every sort order.
		if live[a] != live[b] {
			return live[a]
		}

		if live[a] && live[b] {
			ta, tb := sortTime(a), sortTime(b)
			if !ta.Equal(tb) {
				if timeInverted {
					return tb.Before(ta)
				}
				return ta.Before(tb)
			}
			return a.DisplayTitle() < b.DisplayTitle()
		}

		switch order {
		case SortTitleAsc:
			return a.DisplayTitle() < b.DisplayTitle()
		case SortTitleDesc:
			return b.DisplayTitle() < a.DisplayTitle()
		default:
			ta, tb := sortTime(a), sortTime(b)
			if !ta.Equal(tb) {
				if timeInverted {
					return tb.Before(ta)
				}
				return ta.Before(tb)
			}
			return a.DisplayTitle() < b.DisplayTitle()
		}
	})
}
