// Package app wires configuration into the running freshness services.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/api"
	"github.com/cfmlabs/freshness-monitor/internal/cache"
	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/content"
	"github.com/cfmlabs/freshness-monitor/internal/events"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/monitoring"
	"github.com/cfmlabs/freshness-monitor/internal/network"
	"github.com/cfmlabs/freshness-monitor/internal/notifications"
	"github.com/cfmlabs/freshness-monitor/internal/scheduler"
	"github.com/cfmlabs/freshness-monitor/internal/settings"
	"github.com/cfmlabs/freshness-monitor/internal/storage"
	"github.com/cfmlabs/freshness-monitor/internal/trends"
	"github.com/sirupsen/logrus"
)

// App holds the initialized services of one site
type App struct {
	Config        *config.Config
	Storage       storage.StorageInterface
	Content       content.Store
	Cache         *cache.Memory
	Engine        *freshness.Engine
	Settings      *settings.Store
	Trends        *trends.Recorder
	Publisher     events.Publisher
	Notifier      *events.Notifier
	Notifications *notifications.Service
	Monitoring    *monitoring.Service
	Network       *network.Aggregator

	closers []func() error
}

// New opens storage, the content store and the event publisher and builds
// every service on top of them
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Cache: cache.NewMemory()}

	st, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Storage = st

	backend, err := content.ParseBackend(cfg.DBBackend)
	if err != nil {
		return nil, err
	}
	store, err := content.Open(ctx, backend, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}
	a.Content = store
	a.closers = append(a.closers, store.Close)

	publisher, err := OpenPublisher(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Publisher = publisher
	a.closers = append(a.closers, publisher.Close)

	a.Notifier = events.NewNotifier(publisher, freshness.DefaultTenant)
	a.Engine = freshness.NewEngine(store, store, a.Cache,
		freshness.WithCacheTTL(cfg.CacheTTL),
		freshness.WithLinks(freshness.SiteLinks{BaseURL: cfg.SiteURL}),
		freshness.WithReviewSink(a.Notifier),
	)

	var seed *models.Settings
	if cfg.SettingsSeedFile != "" {
		if seed, err = settings.LoadSeed(cfg.SettingsSeedFile); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	a.Settings = settings.NewStore(st)
	if err := a.Settings.Load(ctx, seed); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Settings.OnChange(func(_ context.Context, _, _ models.Settings) {
		a.Engine.Invalidate()
	})

	a.Trends = trends.NewRecorder(st, a.Engine)
	a.Notifications = notifications.NewService(cfg)
	a.Monitoring = monitoring.NewService(cfg, monitoring.Dependencies{
		Engine:        a.Engine,
		Settings:      a.Settings,
		Authors:       store,
		Trends:        a.Trends,
		Storage:       st,
		Notifications: a.Notifications,
		Publisher:     a.Notifier,
	})

	if cfg.TenantsFile != "" {
		tenants, err := network.LoadTenants(cfg.TenantsFile)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		agg, closeNetwork, err := network.Open(ctx, tenants, network.Options{Cache: a.Cache, CacheTTL: cfg.CacheTTL})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Network = agg
		a.closers = append(a.closers, closeNetwork)
	}

	return a, nil
}

// OpenStorage opens the configured key-value storage backend
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.StorageInterface, error) {
	switch cfg.StorageBackend {
	case "azure":
		st, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer, "")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return st, nil
	default:
		st, err := storage.NewFileStorage(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return st, nil
	}
}

// OpenPublisher connects to RabbitMQ when configured and otherwise
// discards events
func OpenPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		return events.Noop{}, nil
	}
	p, err := events.NewRabbitMQ(events.RabbitMQConfig{
		URL:        cfg.RabbitMQURL,
		Exchange:   cfg.RabbitMQExchange,
		RoutingKey: cfg.RabbitMQRoutingKey,
		QueueName:  cfg.RabbitMQQueue,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	return p, nil
}

// StartScheduler starts the periodic jobs and keeps the digest schedule in
// step with settings changes
func (a *App) StartScheduler() (*scheduler.Service, error) {
	sched := scheduler.NewService(a.Config, a.Monitoring, a.Settings)
	a.Settings.OnChange(func(_ context.Context, _, current models.Settings) {
		if err := sched.Reschedule(current); err != nil {
			logrus.Errorf("Failed to reschedule digests: %v", err)
		}
	})
	if err := sched.Start(a.Settings.Get()); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	return sched, nil
}

// APIServer builds the REST server. jobs may be nil.
func (a *App) APIServer(jobs api.JobTrigger) *api.Server {
	deps := api.Dependencies{
		Engine:   a.Engine,
		Settings: a.Settings,
		Trends:   a.Trends,
		Content:  a.Content,
		Metrics:  a.Monitoring,
	}
	if a.Network != nil {
		deps.Network = a.Network
	}
	if jobs != nil {
		deps.Jobs = jobs
	}
	return api.NewServer(a.Config, deps)
}

// RunCacheCleanup drops expired cache entries until ctx is done
func (a *App) RunCacheCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Cache.Cleanup()
		}
	}
}

// Close releases the content store, the publisher and network sites
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
