// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

/*
client.go - Content-Fabric Metadata Client

REST client for the content fabric: resolves pocket object IDs to
version hashes and tenants, and fetches JSON metadata subtrees
(pocket metadata, media catalogs, permission sets) pinned to a
version hash.
*/

package fabric

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/metrics"
	"github.com/pockettv/pockettv/internal/models"
)

// ClientInterface defines the content-fabric operations used by the
// load pipeline. Both Client and CircuitBreakerClient implement it.
type ClientInterface interface {
	Ping(ctx context.Context) error
	ResolvePocket(ctx context.Context, slugOrID string) (*models.PocketInfo, error)
	PocketMetadata(ctx context.Context, versionHash string) (*models.PocketMetadata, error)
	MediaCatalog(ctx context.Context, versionHash, catalogID string) (*models.MediaCatalog, error)
	PermissionSet(ctx context.Context, versionHash, setID string) (*models.PermissionSet, error)
}

// Ensure Client implements ClientInterface.
var _ ClientInterface = (*Client)(nil)

// Client provides access to the content-fabric metadata API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new content-fabric client.
func NewClient(cfg *config.FabricConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Ping verifies connectivity to the fabric node.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("fabric ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fabric ping returned status %d", resp.StatusCode)
	}
	return nil
}

// ResolvePocket resolves a pocket slug or object ID to a PocketInfo:
// object ID, latest version hash, and owning tenant.
func (c *Client) ResolvePocket(ctx context.Context, slugOrID string) (*models.PocketInfo, error) {
	endpoint := "/pockets/" + url.PathEscape(slugOrID)

	var info models.PocketInfo
	if err := c.getJSON(ctx, "resolve_pocket", endpoint, &info); err != nil {
		return nil, err
	}
	if info.VersionHash == "" {
		return nil, fmt.Errorf("fabric resolved pocket %q without a version hash", slugOrID)
	}
	return &info, nil
}

// PocketMetadata fetches the pocket's top-level metadata document
// pinned to the given version hash.
func (c *Client) PocketMetadata(ctx context.Context, versionHash string) (*models.PocketMetadata, error) {
	endpoint := "/q/" + url.PathEscape(versionHash) + "/meta/public/asset_metadata/info"

	var meta models.PocketMetadata
	if err := c.getJSON(ctx, "pocket_metadata", endpoint, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// MediaCatalog fetches one media-catalog document.
func (c *Client) MediaCatalog(ctx context.Context, versionHash, catalogID string) (*models.MediaCatalog, error) {
	endpoint := "/q/" + url.PathEscape(versionHash) + "/meta/public/asset_metadata/media_catalogs/" + url.PathEscape(catalogID)

	var cat models.MediaCatalog
	if err := c.getJSON(ctx, "media_catalog", endpoint, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// PermissionSet fetches one permission-set document.
func (c *Client) PermissionSet(ctx context.Context, versionHash, setID string) (*models.PermissionSet, error) {
	endpoint := "/q/" + url.PathEscape(versionHash) + "/meta/public/asset_metadata/permission_sets/" + url.PathEscape(setID)

	var set models.PermissionSet
	if err := c.getJSON(ctx, "permission_set", endpoint, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// getJSON performs an instrumented GET and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out interface{}) error {
	start := time.Now()
	err := c.getJSONRaw(ctx, endpoint, out)
	metrics.FetchDuration.WithLabelValues("fabric", operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("fabric", operation).Inc()
	}
	return err
}

func (c *Client) getJSONRaw(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("fabric request %s failed: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("fabric %s returned status %d (failed to read body)", endpoint, resp.StatusCode)
		}
		return fmt.Errorf("fabric %s returned status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode fabric response for %s: %w", endpoint, err)
	}
	return nil
}

// doRequest builds and executes an authenticated GET, honoring the
// outbound rate limit.
func (c *Client) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}
