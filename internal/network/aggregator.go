package network

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/content"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/settings"
	"github.com/cfmlabs/freshness-monitor/internal/storage"
	"github.com/sirupsen/logrus"
)

// Engine is the per-site engine surface used for aggregation
type Engine interface {
	Stats(ctx context.Context, settings models.Settings, force bool) (*models.StatsSnapshot, error)
	ListStale(ctx context.Context, settings models.Settings, opts freshness.ListOptions) (*models.StalePage, error)
}

// SettingsSource returns a site's current settings
type SettingsSource interface {
	Get() models.Settings
}

// Site binds a tenant to its engine and settings
type Site struct {
	Tenant   Tenant
	Engine   Engine
	Settings SettingsSource
}

// Aggregator computes network statistics one site at a time
type Aggregator struct {
	sites []Site
	now   func() time.Time
}

// NewAggregator creates an aggregator over the given sites
func NewAggregator(sites []Site) *Aggregator {
	return &Aggregator{sites: sites, now: time.Now}
}

// Sites returns the aggregated sites
func (a *Aggregator) Sites() []Site {
	return a.sites
}

// Stats collects each site's snapshot sequentially. A failing site is
// reported in its entry and left out of the totals.
func (a *Aggregator) Stats(ctx context.Context) (*models.NetworkStats, error) {
	result := &models.NetworkStats{
		Sites:      make([]models.SiteStats, 0, len(a.sites)),
		TotalSites: len(a.sites),
		ComputedAt: a.now(),
	}

	for _, site := range a.sites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := models.SiteStats{ID: site.Tenant.ID, Name: site.Tenant.Name, URL: site.Tenant.URL}
		st, err := site.Engine.Stats(ctx, site.Settings.Get(), false)
		if err != nil {
			logrus.Errorf("Failed to compute stats for site %s: %v", site.Tenant.ID, err)
			entry.Error = err.Error()
			result.Sites = append(result.Sites, entry)
			continue
		}

		entry.Stats = *st
		entry.Health = freshness.Health(*st)
		result.Sites = append(result.Sites, entry)

		result.Total += st.Total
		result.Fresh += st.Fresh
		result.Aging += st.Aging
		result.Stale += st.Stale
	}

	result.StalePercent = freshness.StalePercent(result.Stale, result.Total)
	slices.SortStableFunc(result.Sites, func(a, b models.SiteStats) int {
		if c := cmp.Compare(b.Stats.Stale, a.Stats.Stale); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// StaleItems returns the limit oldest stale items across the network.
// A limit of 0 or less returns every stale item.
func (a *Aggregator) StaleItems(ctx context.Context, limit int) ([]models.NetworkStaleItem, error) {
	var out []models.NetworkStaleItem
	for _, site := range a.sites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := site.Engine.ListStale(ctx, site.Settings.Get(), freshness.ListOptions{
			PerPage: limit,
			Page:    1,
			OrderBy: freshness.OrderModified,
			Order:   "asc",
		})
		if err != nil {
			logrus.Errorf("Failed to list stale content for site %s: %v", site.Tenant.ID, err)
			continue
		}
		for _, item := range page.Items {
			out = append(out, models.NetworkStaleItem{SiteID: site.Tenant.ID, SiteName: site.Tenant.Name, StaleItem: item})
		}
	}

	slices.SortStableFunc(out, func(a, b models.NetworkStaleItem) int {
		return cmp.Compare(b.DaysOld, a.DaysOld)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Options configures Open
type Options struct {
	Cache    freshness.Cache
	CacheTTL time.Duration
}

// Open builds a site per tenant: its content store, its settings record and
// an engine namespaced under the tenant id in the shared cache. The returned
// closer releases every opened store.
func Open(ctx context.Context, tenants []Tenant, opts Options) (*Aggregator, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	sites := make([]Site, 0, len(tenants))
	for _, t := range tenants {
		backend, err := content.ParseBackend(t.DBBackend)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("tenant %s: %w", t.ID, err)
		}
		store, err := content.Open(ctx, backend, t.DBDSN)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("tenant %s: failed to open content store: %w", t.ID, err)
		}
		closers = append(closers, store.Close)

		fs, err := storage.NewFileStorage(t.StorageDir)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("tenant %s: %w", t.ID, err)
		}
		st := settings.NewStore(fs)
		if err := st.Load(ctx, nil); err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("tenant %s: failed to load settings: %w", t.ID, err)
		}

		engine := freshness.NewEngine(store, store, opts.Cache,
			freshness.WithCacheTTL(opts.CacheTTL),
			freshness.WithLinks(freshness.SiteLinks{BaseURL: t.URL}),
		).WithTenant(t.ID)
		sites = append(sites, Site{Tenant: t, Engine: engine, Settings: st})
	}

	logrus.Infof("Opened %d network sites", len(sites))
	return NewAggregator(sites), closeAll, nil
}
