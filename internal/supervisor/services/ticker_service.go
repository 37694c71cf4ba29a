// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package services

import (
	"context"
	"time"

	"github.com/pockettv/pockettv/internal/catalog"
	"github.com/pockettv/pockettv/internal/pocket"
	"github.com/pockettv/pockettv/internal/websocket"
)

// TickerService watches the loaded catalog for live-state transitions
// and broadcasts them to connected clients. Schedule state is derived,
// so the ticker recomputes it on a fixed interval rather than
// scheduling per-item timers.
type TickerService struct {
	session  *pocket.Session
	hub      *websocket.Hub
	interval time.Duration
	name     string

	// liveState remembers each item's CurrentlyLive flag from the
	// previous tick so only transitions broadcast.
	liveState map[string]bool
}

// NewTickerService creates the schedule ticker.
func NewTickerService(session *pocket.Session, hub *websocket.Hub, interval time.Duration) *TickerService {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &TickerService{
		session:   session,
		hub:       hub,
		interval:  interval,
		name:      "schedule-ticker",
		liveState: make(map[string]bool),
	}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick diffs current live state against the previous tick and
// broadcasts any transitions.
func (s *TickerService) tick(now time.Time) {
	snap := s.session.Snapshot()
	if snap == nil {
		return
	}

	var wentLive, ended []string
	next := make(map[string]bool, len(snap.Media))

	for id, item := range snap.Media {
		info := catalog.ScheduleFor(item, now)
		if !info.IsLiveContent {
			continue
		}
		next[id] = info.CurrentlyLive

		prev, seen := s.liveState[id]
		switch {
		case info.CurrentlyLive && (!seen || !prev):
			wentLive = append(wentLive, id)
		case !info.CurrentlyLive && seen && prev:
			ended = append(ended, id)
		}
	}

	s.liveState = next

	if len(wentLive) > 0 || len(ended) > 0 {
		s.hub.BroadcastScheduleUpdate(wentLive, ended)
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *TickerService) String() string {
	return s.name
}
