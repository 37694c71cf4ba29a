// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package websocket pushes catalog and schedule updates to connected
// storefront clients.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/metrics"
)

// Message types for WebSocket communication
const (
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeLoadCompleted  = "load_completed"
	MessageTypeScheduleUpdate = "schedule_update"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them. Client lifecycle events take priority over broadcasts so the
// client set is consistent before any message goes out.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until the context is canceled, closing
// all clients on the way out. Designed for suture supervision.
//
// Go's select picks randomly among ready channels, so lifecycle events
// are drained with a non-blocking check before broadcasts.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	logging.Info().Int("total_clients", count).Msg("websocket client disconnected")
}

// shutdown closes all clients and logs the reason. Context
// cancellation is expected during graceful shutdown and is not logged
// as an error.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebSocketClients.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// broadcastToClients sends a message to all connected clients in
// client-ID order; slow clients with a full send buffer are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}

	metrics.WebSocketClients.Set(float64(len(h.clients)))
	metrics.WebSocketBroadcasts.WithLabelValues(message.Type).Inc()
}

// LoadCompletedData is the payload of a load_completed message.
type LoadCompletedData struct {
	Timestamp  string `json:"timestamp"`
	Generation uint64 `json:"generation"`
}

// LoadCompleted notifies all clients that a catalog load committed.
// Implements the loader's Notifier interface.
func (h *Hub) LoadCompleted(generation uint64) {
	message := Message{
		Type: MessageTypeLoadCompleted,
		Data: LoadCompletedData{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Generation: generation,
		},
	}

	select {
	case h.broadcast <- message:
		logging.Info().Int("clients", h.GetClientCount()).Uint64("generation", generation).Msg("broadcast load_completed")
	default:
		logging.Warn().Msg("broadcast channel full, dropping load_completed message")
	}
}

// ScheduleUpdateData is the payload of a schedule_update message: the
// media items that crossed a live boundary since the previous tick.
type ScheduleUpdateData struct {
	Timestamp string   `json:"timestamp"`
	WentLive  []string `json:"went_live,omitempty"`
	Ended     []string `json:"ended,omitempty"`
}

// BroadcastScheduleUpdate notifies all clients of live transitions.
func (h *Hub) BroadcastScheduleUpdate(wentLive, ended []string) {
	message := Message{
		Type: MessageTypeScheduleUpdate,
		Data: ScheduleUpdateData{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			WentLive:  wentLive,
			Ended:     ended,
		},
	}

	select {
	case h.broadcast <- message:
		logging.Debug().
			Int("clients", h.GetClientCount()).
			Int("went_live", len(wentLive)).
			Int("ended", len(ended)).
			Msg("broadcast schedule_update")
	default:
		logging.Warn().Msg("broadcast channel full, dropping schedule_update message")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
