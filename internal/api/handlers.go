// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

// Package api provides the HTTP surface of the PocketTV service using
// the chi router.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gorillaws "github.com/gorilla/websocket"

	"github.com/pockettv/pockettv/internal/auth"
	"github.com/pockettv/pockettv/internal/catalog"
	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/models"
	"github.com/pockettv/pockettv/internal/pocket"
	"github.com/pockettv/pockettv/internal/store"
	"github.com/pockettv/pockettv/internal/validation"
	"github.com/pockettv/pockettv/internal/wallet"
	ws "github.com/pockettv/pockettv/internal/websocket"
)

// Handler carries the dependencies of all HTTP endpoints.
type Handler struct {
	cfg      *config.Config
	session  *pocket.Session
	loader   *pocket.Loader
	signal   *auth.Signal
	jwt      *auth.JWTManager
	store    *store.Store
	wallet   wallet.ClientInterface
	hub      *ws.Hub
	validate *validation.Validator
	upgrader gorillaws.Upgrader
}

// NewHandler wires the endpoint dependencies.
func NewHandler(cfg *config.Config, session *pocket.Session, loader *pocket.Loader, signal *auth.Signal, jwtManager *auth.JWTManager, st *store.Store, walletClient wallet.ClientInterface, hub *ws.Hub) *Handler {
	h := &Handler{
		cfg:      cfg,
		session:  session,
		loader:   loader,
		signal:   signal,
		jwt:      jwtManager,
		store:    st,
		wallet:   walletClient,
		hub:      hub,
		validate: validation.New(),
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Security.CORSOrigins),
	}
	return h
}

// originChecker allows the configured CORS origins, or any origin when
// the list is empty.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(o)] = true
	}
	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		return origin == "" || allowed[origin] || allowed["*"]
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, 0, map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the catalog must have loaded once.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.session.Loaded() {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeNotLoaded, "catalog not loaded yet", nil)
		return
	}
	respondSuccess(w, http.StatusOK, h.session.Generation(), map[string]string{"status": "ready"})
}

type loginRequest struct {
	Address string `json:"address" validate:"required,min=4"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Address   string    `json:"address"`
}

// Login records the user's wallet address, issues a session token, and
// kicks off an ownership refresh in the background. The sign-in signal
// releases any load currently waiting on it.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", err)
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		respondAPIError(w, http.StatusBadRequest, validation.ToAPIError(err))
		return
	}

	token, expiresAt, err := h.jwt.Issue(req.Address)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeUpstream, "failed to issue session token", err)
		return
	}

	alreadySignedIn := h.signal.SignedIn()
	h.signal.SignIn(req.Address)

	// A load waiting on the signal picks the address up itself; only an
	// already-committed session needs an explicit refresh.
	if alreadySignedIn || h.session.Loaded() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := h.loader.RefreshOwnership(ctx); err != nil && !errors.Is(err, pocket.ErrSuperseded) {
				logging.Warn().Err(err).Msg("post-login ownership refresh failed")
			}
		}()
	}

	respondSuccess(w, http.StatusOK, h.session.Generation(), loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Address:   req.Address,
	})
}

// Refresh re-issues a session token for the authenticated user so
// active storefronts can extend a session without a second sign-in.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	address := auth.AddressFromContext(r.Context())
	if address == "" {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "missing or invalid session token", nil)
		return
	}

	token, expiresAt, err := h.jwt.Issue(address)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeUpstream, "failed to issue session token", err)
		return
	}

	respondSuccess(w, http.StatusOK, h.session.Generation(), loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Address:   address,
	})
}

// Logout clears the sign-in state and reloads the catalog without
// ownership data in the background.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.signal.SignOut()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Pocket.SignInTimeout+time.Minute)
		defer cancel()
		if err := h.loader.Load(ctx); err != nil && !errors.Is(err, pocket.ErrSuperseded) {
			logging.Warn().Err(err).Msg("post-logout reload failed")
		}
	}()

	respondSuccess(w, http.StatusOK, h.session.Generation(), map[string]string{"status": "signed_out"})
}

type pocketInfoResponse struct {
	Info       *models.PocketInfo `json:"info"`
	Title      string             `json:"title"`
	MediaCount int                `json:"media_count"`
	LoadedAt   time.Time          `json:"loaded_at"`
	SignedIn   bool               `json:"signed_in"`
}

// PocketInfo returns the loaded pocket's identity and load state.
func (h *Handler) PocketInfo(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeNotLoaded, "catalog not loaded yet", nil)
		return
	}

	respondSuccess(w, http.StatusOK, h.session.Generation(), pocketInfoResponse{
		Info:       snap.Info,
		Title:      snap.Metadata.Title,
		MediaCount: len(snap.Media),
		LoadedAt:   snap.LoadedAt,
		SignedIn:   h.signal.SignedIn(),
	})
}

// PocketReload triggers a full catalog reload. The reload runs in the
// background; a newer reload supersedes any in-flight one through the
// generation counter.
func (h *Handler) PocketReload(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Pocket.SignInTimeout+time.Minute)
		defer cancel()
		if err := h.loader.Load(ctx); err != nil && !errors.Is(err, pocket.ErrSuperseded) {
			logging.Warn().Err(err).Msg("requested reload failed")
		}
	}()

	respondSuccess(w, http.StatusAccepted, h.session.Generation(), map[string]string{"status": "reload_started"})
}

type previewRequest struct {
	Password string `json:"password" validate:"required"`
}

// PreviewGate checks a preview password against the stored digest.
func (h *Handler) PreviewGate(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", err)
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		respondAPIError(w, http.StatusBadRequest, validation.ToAPIError(err))
		return
	}

	ok, err := h.store.CheckPreviewPassword(h.cfg.Pocket.Slug, req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeUpstream, "preview check failed", err)
		return
	}
	if !ok {
		respondError(w, http.StatusForbidden, models.ErrCodeGated, "preview password incorrect", nil)
		return
	}
	respondSuccess(w, http.StatusOK, h.session.Generation(), map[string]bool{"granted": true})
}

// mediaEntry is a media item with its derived schedule state.
type mediaEntry struct {
	Item     *models.MediaItem    `json:"item"`
	Schedule *models.ScheduleInfo `json:"schedule"`
}

// MediaList applies the filter/sort pipeline selected by query
// parameters and returns the matching items with schedule state.
//
// Parameters: permissions, schedule, period_start, period_end, date,
// tag (repeatable), attr_<id>=<value>, sort.
func (h *Handler) MediaList(w http.ResponseWriter, r *http.Request) {
	if !h.session.Loaded() {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeNotLoaded, "catalog not loaded yet", nil)
		return
	}

	opts, err := parseSelectOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	now := time.Now()
	items := h.session.SelectMedia(opts, now)

	entries := make([]mediaEntry, 0, len(items))
	for _, item := range items {
		info := catalog.ScheduleFor(item, now)
		entries = append(entries, mediaEntry{Item: item, Schedule: info})
	}

	respondSuccess(w, http.StatusOK, h.session.Generation(), map[string]interface{}{
		"items": entries,
		"count": len(entries),
	})
}

// parseSelectOptions maps query parameters onto the selection spec.
func parseSelectOptions(r *http.Request) (catalog.SelectOptions, error) {
	q := r.URL.Query()
	var opts catalog.SelectOptions

	switch v := q.Get("permissions"); v {
	case "":
	case string(catalog.PermissionsAuthorized), string(catalog.PermissionsUnauthorized):
		opts.Permissions = catalog.PermissionBucket(v)
	default:
		return opts, errors.New("permissions must be authorized or unauthorized")
	}

	switch v := q.Get("schedule"); v {
	case "":
	case string(catalog.ScheduleLive), string(catalog.ScheduleLiveAndUpcoming),
		string(catalog.ScheduleUpcoming), string(catalog.SchedulePast), string(catalog.SchedulePeriod):
		opts.Schedule = catalog.ScheduleWindow(v)
	default:
		return opts, errors.New("schedule must be one of live, live_and_upcoming, upcoming, past, period")
	}

	var err error
	if opts.PeriodStart, err = getTimeParam(r, "period_start"); err != nil {
		return opts, err
	}
	if opts.PeriodEnd, err = getTimeParam(r, "period_end"); err != nil {
		return opts, err
	}

	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return opts, errors.New("date must be YYYY-MM-DD")
		}
		opts.Date = &d
	}

	opts.Tags = q["tag"]

	for key, values := range q {
		if !strings.HasPrefix(key, "attr_") || len(values) == 0 {
			continue
		}
		if opts.Attributes == nil {
			opts.Attributes = make(map[string]string)
		}
		opts.Attributes[strings.TrimPrefix(key, "attr_")] = values[0]
	}

	switch v := q.Get("sort"); v {
	case "":
	case string(catalog.SortDefault), string(catalog.SortTitleAsc),
		string(catalog.SortTitleDesc), string(catalog.SortTimeDesc):
		opts.Sort = catalog.SortOrder(v)
	default:
		return opts, errors.New("sort must be one of default, title_asc, title_desc, time_desc")
	}

	return opts, nil
}

// MediaByID returns one media item with schedule and permissions.
func (h *Handler) MediaByID(w http.ResponseWriter, r *http.Request) {
	h.respondMediaItem(w, h.session.MediaItem(chi.URLParam(r, "id")))
}

// MediaBySlug returns one media item looked up by its URL slug.
func (h *Handler) MediaBySlug(w http.ResponseWriter, r *http.Request) {
	h.respondMediaItem(w, h.session.MediaBySlug(chi.URLParam(r, "slug")))
}

type mediaDetailResponse struct {
	Item        *models.MediaItem        `json:"item"`
	Schedule    *models.ScheduleInfo     `json:"schedule"`
	Permissions *models.MediaPermissions `json:"permissions"`
}

func (h *Handler) respondMediaItem(w http.ResponseWriter, item *models.MediaItem) {
	if !h.session.Loaded() {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeNotLoaded, "catalog not loaded yet", nil)
		return
	}
	if item == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "media item not found", nil)
		return
	}

	respondSuccess(w, http.StatusOK, h.session.Generation(), mediaDetailResponse{
		Item:        item,
		Schedule:    catalog.ScheduleFor(item, time.Now()),
		Permissions: h.session.ResolveMedia(item),
	})
}

// MediaPermissions returns only the permission verdict for one item.
func (h *Handler) MediaPermissions(w http.ResponseWriter, r *http.Request) {
	if !h.session.Loaded() {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeNotLoaded, "catalog not loaded yet", nil)
		return
	}
	item := h.session.MediaItem(chi.URLParam(r, "id"))
	if item == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "media item not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, h.session.Generation(), h.session.ResolveMedia(item))
}

// WatchProgressGet returns the user's watch progress for one item,
// preferring the wallet profile and falling back to the local store.
func (h *Handler) WatchProgressGet(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "id")
	address := auth.AddressFromContext(r.Context())

	if address != "" {
		raw, err := h.wallet.ProfileMetadata(r.Context(), address, progressKey(mediaID))
		if err == nil && raw != nil {
			var progress models.WatchProgress
			if jerr := unmarshalRaw(raw, &progress); jerr == nil {
				respondSuccess(w, http.StatusOK, h.session.Generation(), &progress)
				return
			}
		}
		if err != nil {
			logging.Warn().Err(err).Msg("wallet progress read failed, using local copy")
		}
	}

	progress, err := h.store.WatchProgress(h.cfg.Pocket.Slug, mediaID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "no watch progress recorded", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, models.ErrCodeUpstream, "progress read failed", err)
		return
	}
	respondSuccess(w, http.StatusOK, h.session.Generation(), progress)
}

type progressRequest struct {
	PositionSec float64 `json:"position_sec" validate:"gte=0"`
	DurationSec float64 `json:"duration_sec,omitempty" validate:"gte=0"`
}

// WatchProgressPut stores the user's watch progress locally and, when
// signed in, mirrors it to the wallet profile.
func (h *Handler) WatchProgressPut(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "id")

	var req progressRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", err)
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		respondAPIError(w, http.StatusBadRequest, validation.ToAPIError(err))
		return
	}

	progress := &models.WatchProgress{
		MediaItemID: mediaID,
		PositionSec: req.PositionSec,
		DurationSec: req.DurationSec,
		UpdatedAt:   time.Now().UTC(),
	}

	if err := h.store.SetWatchProgress(h.cfg.Pocket.Slug, progress); err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeUpstream, "progress write failed", err)
		return
	}

	if address := auth.AddressFromContext(r.Context()); address != "" {
		if err := h.wallet.SetProfileMetadata(r.Context(), address, progressKey(mediaID), progress); err != nil {
			// Local copy already persisted; the wallet write is best
			// effort.
			logging.Warn().Err(err).Msg("wallet progress write failed")
		}
	}

	respondSuccess(w, http.StatusOK, h.session.Generation(), progress)
}

func progressKey(mediaID string) string {
	return "progress:" + mediaID
}

// VideoSettingsGet returns the persisted player settings.
func (h *Handler) VideoSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.VideoSettings()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondSuccess(w, http.StatusOK, h.session.Generation(), &models.VideoSettings{Volume: 1})
			return
		}
		respondError(w, http.StatusInternalServerError, models.ErrCodeUpstream, "settings read failed", err)
		return
	}
	respondSuccess(w, http.StatusOK, h.session.Generation(), settings)
}

type videoSettingsRequest struct {
	Muted   bool    `json:"muted"`
	Volume  float64 `json:"volume" validate:"gte=0,lte=1"`
	Quality string  `json:"quality,omitempty"`
}

// VideoSettingsPut persists player settings.
func (h *Handler) VideoSettingsPut(w http.ResponseWriter, r *http.Request) {
	var req videoSettingsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid request body", err)
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		respondAPIError(w, http.StatusBadRequest, validation.ToAPIError(err))
		return
	}

	settings := &models.VideoSettings{Muted: req.Muted, Volume: req.Volume, Quality: req.Quality}
	if err := h.store.SetVideoSettings(settings); err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeUpstream, "settings write failed", err)
		return
	}
	respondSuccess(w, http.StatusOK, h.session.Generation(), settings)
}

// WebSocket upgrades the connection and registers the client with the
// hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
