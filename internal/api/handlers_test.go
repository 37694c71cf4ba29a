// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/pockettv/pockettv/internal/auth"
	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/models"
	"github.com/pockettv/pockettv/internal/pocket"
	"github.com/pockettv/pockettv/internal/store"
	ws "github.com/pockettv/pockettv/internal/websocket"
)

type fakeFabric struct {
	info     *models.PocketInfo
	meta     *models.PocketMetadata
	catalogs map[string]*models.MediaCatalog
	sets     map[string]*models.PermissionSet
}

func (f *fakeFabric) Ping(ctx context.Context) error { return nil }

func (f *fakeFabric) ResolvePocket(ctx context.Context, slugOrID string) (*models.PocketInfo, error) {
	return f.info, nil
}

func (f *fakeFabric) PocketMetadata(ctx context.Context, versionHash string) (*models.PocketMetadata, error) {
	return f.meta, nil
}

func (f *fakeFabric) MediaCatalog(ctx context.Context, versionHash, catalogID string) (*models.MediaCatalog, error) {
	return f.catalogs[catalogID], nil
}

func (f *fakeFabric) PermissionSet(ctx context.Context, versionHash, setID string) (*models.PermissionSet, error) {
	return f.sets[setID], nil
}

type fakeWallet struct {
	profiles map[string]json.RawMessage
}

func (f *fakeWallet) Marketplace(ctx context.Context, id string) (*models.Marketplace, error) {
	return &models.Marketplace{ID: id}, nil
}

func (f *fakeWallet) OwnedItems(ctx context.Context, address string) ([]*models.UserItem, error) {
	return nil, nil
}

func (f *fakeWallet) ProfileMetadata(ctx context.Context, address, key string) (json.RawMessage, error) {
	raw, ok := f.profiles[address+"/"+key]
	if !ok {
		return nil, nil
	}
	return raw, nil
}

func (f *fakeWallet) SetProfileMetadata(ctx context.Context, address, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.profiles[address+"/"+key] = raw
	return nil
}

type testEnv struct {
	srv    *httptest.Server
	cfg    *config.Config
	store  *store.Store
	signal *auth.Signal
	loader *pocket.Loader
	jwt    *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Pocket: config.PocketConfig{
			Slug:          "demo",
			SignInTimeout: 50 * time.Millisecond,
		},
		Security: config.SecurityConfig{
			JWTSecret:      "0123456789abcdef0123456789abcdef",
			SessionTimeout: time.Hour,
		},
	}

	st, err := store.Open(&config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	fab := &fakeFabric{
		info: &models.PocketInfo{Slug: "demo", ObjectID: "iq_1", VersionHash: "hq_abc"},
		meta: &models.PocketMetadata{
			Title:           "Demo Pocket",
			MediaCatalogIDs: []string{"cat-a"},
		},
		catalogs: map[string]*models.MediaCatalog{
			"cat-a": {Media: map[string]*models.MediaItem{
				"vod-1": {
					ID: "vod-1", Slug: "opener", Title: "Season Opener",
					Type: models.ItemTypeMedia, MediaType: models.MediaTypeVideo,
					Public: true, Tags: []string{"sports"},
				},
				"live-1": {
					ID: "live-1", Title: "Live Now",
					Type: models.ItemTypeMedia, MediaType: models.MediaTypeVideo,
					LiveVideo: true, Public: true,
				},
			}},
		},
	}
	wal := &fakeWallet{profiles: make(map[string]json.RawMessage)}

	signal := auth.NewSignal()
	session := pocket.NewSession()
	loader := pocket.NewLoader(&cfg.Pocket, fab, wal, session, signal, nil)
	jwtManager := auth.NewJWTManager([]byte(cfg.Security.JWTSecret), cfg.Security.SessionTimeout)

	handler := NewHandler(cfg, session, loader, signal, jwtManager, st, wal, ws.NewHub())
	srv := httptest.NewServer(NewRouter(handler).Setup())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, cfg: cfg, store: st, signal: signal, loader: loader, jwt: jwtManager}
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	if err := e.loader.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func doRequest(t *testing.T, method, url, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func TestHealthReady(t *testing.T) {
	env := newTestEnv(t)

	status, body := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/health/ready", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("pre-load status = %d, want 503", status)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeNotLoaded {
		t.Errorf("pre-load error = %+v", body.Error)
	}

	env.load(t)

	status, body = doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/health/ready", "", nil)
	if status != http.StatusOK || body.Status != "success" {
		t.Errorf("post-load = %d %q", status, body.Status)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	env := newTestEnv(t)

	status, body := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/auth/login", "",
		map[string]string{"address": "0xabcdef"})
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, body.Error)
	}

	var resp struct {
		Token   string `json:"token"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(body.Data, &resp); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if resp.Address != "0xabcdef" {
		t.Errorf("address = %q", resp.Address)
	}

	address, err := env.jwt.Verify(resp.Token)
	if err != nil || address != "0xabcdef" {
		t.Errorf("Verify = (%q, %v)", address, err)
	}
	if !env.signal.SignedIn() {
		t.Error("login did not record the sign-in")
	}
}

func TestLoginRejectsShortAddress(t *testing.T) {
	env := newTestEnv(t)

	status, body := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/auth/login", "",
		map[string]string{"address": "0x"})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeValidation {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestRefreshReissuesToken(t *testing.T) {
	env := newTestEnv(t)

	token, _, err := env.jwt.Issue("0xabcdef")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	status, body := doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/auth/refresh", token, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, body.Error)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if address, err := env.jwt.Verify(resp.Token); err != nil || address != "0xabcdef" {
		t.Errorf("Verify = (%q, %v)", address, err)
	}

	status, body = doRequest(t, http.MethodPost, env.srv.URL+"/api/v1/auth/refresh", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("anonymous refresh status = %d, want 401", status)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeUnauthorized {
		t.Errorf("anonymous refresh error = %+v", body.Error)
	}
}

func TestPocketInfo(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	status, body := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/pocket", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	var resp struct {
		Title      string `json:"title"`
		MediaCount int    `json:"media_count"`
		SignedIn   bool   `json:"signed_in"`
	}
	if err := json.Unmarshal(body.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Title != "Demo Pocket" || resp.MediaCount != 2 || resp.SignedIn {
		t.Errorf("info = %+v", resp)
	}
}

func TestMediaList(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	status, body := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/media", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	var resp struct {
		Count int `json:"count"`
		Items []struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
			Schedule struct {
				CurrentlyLive bool `json:"currently_live"`
			} `json:"schedule"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	// Live content always sorts ahead of VOD.
	if resp.Items[0].Item.ID != "live-1" || !resp.Items[0].Schedule.CurrentlyLive {
		t.Errorf("first item = %+v", resp.Items[0])
	}
}

func TestMediaListFilterByTag(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	status, body := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/media?tag=sports", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestMediaListRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	for _, query := range []string{
		"?permissions=bogus",
		"?schedule=bogus",
		"?sort=bogus",
		"?date=01-02-2024",
		"?period_start=not-a-time",
	} {
		status, body := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/media"+query, "", nil)
		if status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, status)
		}
		if body.Error == nil || body.Error.Code != models.ErrCodeValidation {
			t.Errorf("%s: error = %+v", query, body.Error)
		}
	}
}

func TestMediaLookups(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	status, _ := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/media/vod-1", "", nil)
	if status != http.StatusOK {
		t.Errorf("by ID status = %d", status)
	}

	status, _ = doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/media/slug/opener", "", nil)
	if status != http.StatusOK {
		t.Errorf("by slug status = %d", status)
	}

	status, body := doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/media/ghost", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown ID status = %d, want 404", status)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeNotFound {
		t.Errorf("unknown ID error = %+v", body.Error)
	}
}

func TestPreviewGate(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)
	url := env.srv.URL + "/api/v1/pocket/preview"

	// No gate configured: any password passes.
	status, _ := doRequest(t, http.MethodPost, url, "", map[string]string{"password": "anything"})
	if status != http.StatusOK {
		t.Errorf("ungated status = %d", status)
	}

	if err := env.store.SetPreviewPassword("demo", "hunter2"); err != nil {
		t.Fatalf("SetPreviewPassword: %v", err)
	}

	status, body := doRequest(t, http.MethodPost, url, "", map[string]string{"password": "wrong"})
	if status != http.StatusForbidden {
		t.Errorf("wrong password status = %d, want 403", status)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeGated {
		t.Errorf("wrong password error = %+v", body.Error)
	}

	status, _ = doRequest(t, http.MethodPost, url, "", map[string]string{"password": "hunter2"})
	if status != http.StatusOK {
		t.Errorf("correct password status = %d", status)
	}
}

func TestWatchProgressRequiresAuthForWrite(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	status, body := doRequest(t, http.MethodPut, env.srv.URL+"/api/v1/profile/progress/vod-1", "",
		map[string]float64{"position_sec": 10})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeUnauthorized {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestWatchProgressRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	token, _, err := env.jwt.Issue("0xabcdef")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	url := env.srv.URL + "/api/v1/profile/progress/vod-1"

	status, _ := doRequest(t, http.MethodPut, url, token,
		map[string]float64{"position_sec": 42.5, "duration_sec": 100})
	if status != http.StatusOK {
		t.Fatalf("put status = %d", status)
	}

	// Signed-in read comes back from the wallet profile mirror.
	status, body := doRequest(t, http.MethodGet, url, token, nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	var progress models.WatchProgress
	if err := json.Unmarshal(body.Data, &progress); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if progress.PositionSec != 42.5 {
		t.Errorf("position = %v, want 42.5", progress.PositionSec)
	}

	// Anonymous read falls back to the local store copy.
	status, body = doRequest(t, http.MethodGet, url, "", nil)
	if status != http.StatusOK {
		t.Fatalf("anonymous get status = %d", status)
	}
	if err := json.Unmarshal(body.Data, &progress); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if progress.PositionSec != 42.5 {
		t.Errorf("local position = %v, want 42.5", progress.PositionSec)
	}

	status, _ = doRequest(t, http.MethodGet, env.srv.URL+"/api/v1/profile/progress/ghost", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown item status = %d, want 404", status)
	}
}

func TestWatchProgressRejectsNegativePosition(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)

	token, _, err := env.jwt.Issue("0xabcdef")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	status, body := doRequest(t, http.MethodPut, env.srv.URL+"/api/v1/profile/progress/vod-1", token,
		map[string]float64{"position_sec": -1})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeValidation {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestVideoSettings(t *testing.T) {
	env := newTestEnv(t)
	env.load(t)
	url := env.srv.URL + "/api/v1/settings/video"

	// Defaults before anything was stored.
	status, body := doRequest(t, http.MethodGet, url, "", nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	var settings models.VideoSettings
	if err := json.Unmarshal(body.Data, &settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings.Volume != 1 || settings.Muted {
		t.Errorf("defaults = %+v", settings)
	}

	status, _ = doRequest(t, http.MethodPut, url, "",
		map[string]interface{}{"muted": true, "volume": 1.5})
	if status != http.StatusBadRequest {
		t.Errorf("out-of-range volume status = %d, want 400", status)
	}

	status, _ = doRequest(t, http.MethodPut, url, "",
		map[string]interface{}{"muted": true, "volume": 0.3, "quality": "720p"})
	if status != http.StatusOK {
		t.Fatalf("put status = %d", status)
	}

	status, body = doRequest(t, http.MethodGet, url, "", nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if err := json.Unmarshal(body.Data, &settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !settings.Muted || settings.Volume != 0.3 || settings.Quality != "720p" {
		t.Errorf("settings = %+v", settings)
	}
}
