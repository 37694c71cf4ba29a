// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

/*
client.go - Wallet/Marketplace Client

REST client for the wallet backend: marketplace documents, a user's
owned entitlement items (paginated), and small namespaced JSON blobs
under the user's profile metadata (watch progress).
*/

package wallet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/metrics"
	"github.com/pockettv/pockettv/internal/models"
)

// ClientInterface defines the wallet operations used by the load
// pipeline and the profile API.
type ClientInterface interface {
	Marketplace(ctx context.Context, marketplaceID string) (*models.Marketplace, error)
	OwnedItems(ctx context.Context, address string) ([]*models.UserItem, error)
	ProfileMetadata(ctx context.Context, address, key string) (json.RawMessage, error)
	SetProfileMetadata(ctx context.Context, address, key string, value interface{}) error
}

// Ensure Client implements ClientInterface.
var _ ClientInterface = (*Client)(nil)

// Client provides access to the wallet REST API.
type Client struct {
	baseURL    string
	token      string
	namespace  string
	pageSize   int
	httpClient *http.Client
}

// ownedItemsPage is the wire shape of one owned-items listing page.
type ownedItemsPage struct {
	Items []*models.UserItem `json:"items"`
	Total int                `json:"total"`
}

// NewClient creates a new wallet client.
func NewClient(cfg *config.WalletConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.OwnedItemsPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		namespace:  cfg.ProfileNamespace,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Marketplace fetches a marketplace document by ID.
func (c *Client) Marketplace(ctx context.Context, marketplaceID string) (*models.Marketplace, error) {
	endpoint := "/marketplaces/" + url.PathEscape(marketplaceID)

	var mkt models.Marketplace
	if err := c.getJSON(ctx, "marketplace", endpoint, &mkt); err != nil {
		return nil, err
	}
	if mkt.ID == "" {
		mkt.ID = marketplaceID
	}
	return &mkt, nil
}

// OwnedItems lists every entitlement item held by the given address,
// walking the limit-paginated listing until a short page is returned.
func (c *Client) OwnedItems(ctx context.Context, address string) ([]*models.UserItem, error) {
	var all []*models.UserItem

	for start := 0; ; start += c.pageSize {
		endpoint := "/users/" + url.PathEscape(address) + "/items?start=" +
			strconv.Itoa(start) + "&limit=" + strconv.Itoa(c.pageSize)

		var page ownedItemsPage
		if err := c.getJSON(ctx, "owned_items", endpoint, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if len(page.Items) < c.pageSize {
			break
		}
	}

	metrics.OwnedItemsFetched.Set(float64(len(all)))
	return all, nil
}

// ProfileMetadata reads a namespaced profile-metadata blob. A missing
// key returns (nil, nil); absence is not an error.
func (c *Client) ProfileMetadata(ctx context.Context, address, key string) (json.RawMessage, error) {
	endpoint := c.profileEndpoint(address, key)

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("wallet", "profile_get").Inc()
		return nil, fmt.Errorf("wallet profile read failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		metrics.FetchErrors.WithLabelValues("wallet", "profile_get").Inc()
		return nil, fmt.Errorf("wallet profile read returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read wallet profile body: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetProfileMetadata writes a namespaced profile-metadata blob.
func (c *Client) SetProfileMetadata(ctx context.Context, address, key string, value interface{}) error {
	endpoint := c.profileEndpoint(address, key)

	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal profile value: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("wallet", "profile_set").Inc()
		return fmt.Errorf("wallet profile write failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		metrics.FetchErrors.WithLabelValues("wallet", "profile_set").Inc()
		return fmt.Errorf("wallet profile write returned status %d", resp.StatusCode)
	}
	return nil
}

// profileEndpoint builds the namespaced profile-metadata path.
func (c *Client) profileEndpoint(address, key string) string {
	return "/users/" + url.PathEscape(address) + "/profile/" +
		url.PathEscape(c.namespace) + "/" + url.PathEscape(key)
}

// getJSON performs an instrumented GET and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out interface{}) error {
	start := time.Now()
	err := c.getJSONRaw(ctx, endpoint, out)
	metrics.FetchDuration.WithLabelValues("wallet", operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("wallet", operation).Inc()
	}
	return err
}

func (c *Client) getJSONRaw(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("wallet request %s failed: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("wallet %s returned status %d (failed to read body)", endpoint, resp.StatusCode)
		}
		return fmt.Errorf("wallet %s returned status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode wallet response for %s: %w", endpoint, err)
	}
	return nil
}

// doRequest builds and executes an authenticated request.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}
