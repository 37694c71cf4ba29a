// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package services

import (
	"context"

	"github.com/pockettv/pockettv/internal/websocket"
)

// WebSocketService runs the hub under supervision.
type WebSocketService struct {
	hub  *websocket.Hub
	name string
}

// NewWebSocketService wraps the hub as a supervised service.
func NewWebSocketService(hub *websocket.Hub) *WebSocketService {
	return &WebSocketService{hub: hub, name: "websocket-hub"}
}

// Serve implements suture.Service.
func (s *WebSocketService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture's logs.
func (s *WebSocketService) String() string {
	return s.name
}
