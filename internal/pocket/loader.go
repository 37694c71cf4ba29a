// PocketTV - Tenant Storefront Catalog and Entitlement Resolution
// Copyright 2026 PocketTV contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pockettv/pockettv

package pocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pockettv/pockettv/internal/auth"
	"github.com/pockettv/pockettv/internal/cache"
	"github.com/pockettv/pockettv/internal/catalog"
	"github.com/pockettv/pockettv/internal/config"
	"github.com/pockettv/pockettv/internal/fabric"
	"github.com/pockettv/pockettv/internal/logging"
	"github.com/pockettv/pockettv/internal/metrics"
	"github.com/pockettv/pockettv/internal/models"
	"github.com/pockettv/pockettv/internal/wallet"
)

// ErrSuperseded is returned when a newer load claimed the session
// before this one could commit. Not a failure; the newer load's result
// stands.
var ErrSuperseded = errors.New("pocket: load superseded by a newer load")

// Notifier receives load lifecycle events; the websocket hub implements
// it to push updates to connected storefronts.
type Notifier interface {
	LoadCompleted(generation uint64)
}

// Loader runs the full load pipeline: resolve pocket, fetch metadata,
// fan out catalog and permission-set fetches, merge, wait (bounded)
// for sign-in, resolve ownership, and commit.
type Loader struct {
	cfg      *config.PocketConfig
	fabric   fabric.ClientInterface
	wallet   wallet.ClientInterface
	session  *Session
	signal   *auth.Signal
	notifier Notifier

	// infoCache holds the slug-to-PocketInfo resolution, which is
	// stable across reloads of the same deployment.
	infoCache *cache.Cache
}

// NewLoader wires the load pipeline. notifier may be nil.
func NewLoader(cfg *config.PocketConfig, fabricClient fabric.ClientInterface, walletClient wallet.ClientInterface, session *Session, signal *auth.Signal, notifier Notifier) *Loader {
	return &Loader{
		cfg:       cfg,
		fabric:    fabricClient,
		wallet:    walletClient,
		session:   session,
		signal:    signal,
		notifier:  notifier,
		infoCache: cache.New("pocket_info", time.Hour),
	}
}

// Load runs one complete load. Any remote fetch failure aborts the
// whole load and leaves the previous snapshot in place; partial
// catalogs are never served.
func (l *Loader) Load(ctx context.Context) error {
	gen := l.session.BeginLoad()
	start := time.Now()

	log := logging.With().Uint64("generation", gen).Str("pocket", l.cfg.Slug).Logger()
	log.Info().Msg("Starting catalog load")

	snap, err := l.build(ctx, gen)
	if err != nil {
		metrics.CatalogLoads.WithLabelValues("failure").Inc()
		log.Error().Err(err).Msg("Catalog load failed")
		return err
	}

	if !l.session.CommitIfCurrent(gen, snap) {
		metrics.CatalogLoads.WithLabelValues("superseded").Inc()
		log.Info().Msg("Catalog load superseded, discarding snapshot")
		return ErrSuperseded
	}

	metrics.CatalogLoads.WithLabelValues("success").Inc()
	metrics.CatalogLoadDuration.Observe(time.Since(start).Seconds())
	metrics.MediaItemsLoaded.Set(float64(len(snap.Media)))
	metrics.PermissionItemsLoaded.Set(float64(len(snap.PermissionItems)))

	log.Info().
		Int("media_items", len(snap.Media)).
		Int("permission_items", len(snap.PermissionItems)).
		Dur("duration", time.Since(start)).
		Msg("Catalog load committed")

	if l.notifier != nil {
		l.notifier.LoadCompleted(gen)
	}
	return nil
}

// build assembles a snapshot without touching the session.
func (l *Loader) build(ctx context.Context, gen uint64) (*Snapshot, error) {
	info, err := l.resolvePocket(ctx)
	if err != nil {
		return nil, err
	}

	meta, err := l.fabric.PocketMetadata(ctx, info.VersionHash)
	if err != nil {
		return nil, fmt.Errorf("fetch pocket metadata: %w", err)
	}

	catalogs, sets, err := l.fetchDocuments(ctx, info.VersionHash, meta)
	if err != nil {
		return nil, err
	}

	media, slugs := catalog.MergeCatalogs(meta.MediaCatalogIDs, catalogs)
	permissionItems := catalog.MergePermissionSets(meta.PermissionSetIDs, sets)

	snap := &Snapshot{
		Info:            info,
		Metadata:        meta,
		Media:           media,
		Slugs:           slugs,
		PermissionItems: permissionItems,
		Marketplaces:    make(map[string]*models.Marketplace),
		LoadedAt:        time.Now(),
	}

	address, err := l.signal.Wait(ctx, l.cfg.SignInTimeout)
	if err != nil {
		if errors.Is(err, auth.ErrSignInTimeout) {
			logging.Info().Uint64("generation", gen).Msg("No sign-in before timeout, loading without ownership")
			return snap, nil
		}
		return nil, err
	}

	if err := l.resolveOwnership(ctx, snap, address); err != nil {
		return nil, err
	}
	return snap, nil
}

// resolvePocket resolves the configured slug, with a session-lifetime
// cache since the slug-to-object binding is immutable in practice.
func (l *Loader) resolvePocket(ctx context.Context) (*models.PocketInfo, error) {
	if cached, ok := l.infoCache.Get(l.cfg.Slug); ok {
		if info, ok := cached.(*models.PocketInfo); ok {
			return info, nil
		}
	}

	info, err := l.fabric.ResolvePocket(ctx, l.cfg.Slug)
	if err != nil {
		return nil, fmt.Errorf("resolve pocket %q: %w", l.cfg.Slug, err)
	}
	l.infoCache.Set(l.cfg.Slug, info)
	return info, nil
}

// fetchDocuments fans out all catalog and permission-set fetches
// concurrently and fails the load on the first error.
func (l *Loader) fetchDocuments(ctx context.Context, versionHash string, meta *models.PocketMetadata) (map[string]*models.MediaCatalog, map[string]*models.PermissionSet, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		catalogs = make(map[string]*models.MediaCatalog, len(meta.MediaCatalogIDs))
		sets     = make(map[string]*models.PermissionSet, len(meta.PermissionSetIDs))
		firstErr error
	)

	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, id := range meta.MediaCatalogIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			cat, err := l.fabric.MediaCatalog(ctx, versionHash, id)
			if err != nil {
				recordErr(fmt.Errorf("fetch media catalog %q: %w", id, err))
				return
			}
			mu.Lock()
			catalogs[id] = cat
			mu.Unlock()
		}(id)
	}

	for _, id := range meta.PermissionSetIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			set, err := l.fabric.PermissionSet(ctx, versionHash, id)
			if err != nil {
				recordErr(fmt.Errorf("fetch permission set %q: %w", id, err))
				return
			}
			mu.Lock()
			sets[id] = set
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return catalogs, sets, nil
}

// resolveOwnership fetches marketplaces and the user's owned items,
// then runs the two-phase ownership/subsumption pass over the
// snapshot's permission items.
func (l *Loader) resolveOwnership(ctx context.Context, snap *Snapshot, address string) error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, id := range snap.Metadata.MarketplaceIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			mkt, err := l.wallet.Marketplace(ctx, id)
			if err != nil {
				recordErr(fmt.Errorf("fetch marketplace %q: %w", id, err))
				return
			}
			mu.Lock()
			snap.Marketplaces[id] = mkt
			mu.Unlock()
		}(id)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		owned, err := l.wallet.OwnedItems(ctx, address)
		if err != nil {
			recordErr(fmt.Errorf("fetch owned items: %w", err))
			return
		}
		mu.Lock()
		snap.OwnedItems = owned
		mu.Unlock()
	}()

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	catalog.ResolveOwnership(snap.PermissionItems, snap.Marketplaces, snap.OwnedItems)
	return nil
}

// RefreshOwnership re-fetches owned items for the signed-in user and
// re-resolves against a copy of the current snapshot. Used by the
// periodic refresh and after a sign-in that arrives post-load.
func (l *Loader) RefreshOwnership(ctx context.Context) error {
	snap := l.session.Snapshot()
	if snap == nil {
		return errors.New("pocket: not loaded")
	}
	address := l.signal.Address()
	if address == "" {
		return nil
	}

	gen := l.session.BeginLoad()

	fresh := &Snapshot{
		Info:         snap.Info,
		Metadata:     snap.Metadata,
		Media:        snap.Media,
		Slugs:        snap.Slugs,
		Marketplaces: make(map[string]*models.Marketplace),
		LoadedAt:     time.Now(),
	}

	// Rebuild permission items from the committed snapshot rather than
	// refetching: ownership changed, the documents did not.
	fresh.PermissionItems = make(map[string]*models.PermissionItem, len(snap.PermissionItems))
	for id, item := range snap.PermissionItems {
		copied := *item
		copied.MarketplaceItem = nil
		copied.Owned = false
		copied.Subsumed = false
		fresh.PermissionItems[id] = &copied
	}

	if err := l.resolveOwnership(ctx, fresh, address); err != nil {
		metrics.CatalogLoads.WithLabelValues("failure").Inc()
		return err
	}

	if !l.session.CommitIfCurrent(gen, fresh) {
		metrics.CatalogLoads.WithLabelValues("superseded").Inc()
		return ErrSuperseded
	}
	metrics.CatalogLoads.WithLabelValues("success").Inc()

	if l.notifier != nil {
		l.notifier.LoadCompleted(gen)
	}
	return nil
}
