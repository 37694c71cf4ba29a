// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints.
//
// Status is "success" or "error"; Error is populated only on error.
//
// Example:
//
//	{
//	  "status": "success",
//	  "data": {"items": [...]},
//	  "metadata": {"timestamp": "2026-01-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`

	// Generation is the catalog load generation the response was
	// computed from, so clients can detect stale views across reloads.
	Generation uint64 `json:"generation,omitempty"`

	Cached bool `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - NOT_FOUND: unknown pocket, media item, or permission item
//   - NOT_LOADED: catalog not loaded yet
//   - UNAUTHORIZED: missing or invalid session token
//   - GATED: preview password required
//   - UPSTREAM_ERROR: content-fabric or wallet call failed
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// API error codes.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeNotLoaded    = "NOT_LOADED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeGated        = "GATED"
	ErrCodeUpstream     = "UPSTREAM_ERROR"
)
