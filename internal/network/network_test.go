package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/cache"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Stats(ctx context.Context, settings models.Settings, force bool) (*models.StatsSnapshot, error) {
	args := m.Called(settings, force)
	if s, ok := args.Get(0).(*models.StatsSnapshot); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) ListStale(ctx context.Context, settings models.Settings, opts freshness.ListOptions) (*models.StalePage, error) {
	args := m.Called(settings, opts)
	if p, ok := args.Get(0).(*models.StalePage); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixedSettings struct{ s models.Settings }

func (f fixedSettings) Get() models.Settings { return f.s }

func site(id string, engine Engine) Site {
	return Site{Tenant: Tenant{ID: id, Name: "Site " + id}, Engine: engine, Settings: fixedSettings{}}
}

func TestParseTenants(t *testing.T) {
	tenants, err := ParseTenants([]byte(`
tenants:
  - id: blog
    url: https://blog.example.com
    db_dsn: blog.db
    storage_dir: data/blog
  - id: docs
    name: Documentation
    db_backend: postgres
    db_dsn: postgres://localhost/docs
    storage_dir: data/docs
`))
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "blog", tenants[0].Name)
	assert.Equal(t, "sqlite", tenants[0].DBBackend)
	assert.Equal(t, "Documentation", tenants[1].Name)

	cases := map[string]string{
		"empty":        `tenants: []`,
		"missing id":   "tenants:\n  - db_dsn: a.db\n    storage_dir: d",
		"duplicate id": "tenants:\n  - {id: a, db_dsn: a.db, storage_dir: d}\n  - {id: a, db_dsn: b.db, storage_dir: e}",
		"missing dsn":  "tenants:\n  - {id: a, storage_dir: d}",
		"missing dir":  "tenants:\n  - {id: a, db_dsn: a.db}",
		"bad yaml":     "tenants: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTenants([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestAggregatorStats(t *testing.T) {
	blog := new(MockEngine)
	blog.On("Stats", mock.Anything, false).Return(&models.StatsSnapshot{Total: 10, Fresh: 6, Aging: 2, Stale: 2, StalePercent: 20}, nil)
	docs := new(MockEngine)
	docs.On("Stats", mock.Anything, false).Return(&models.StatsSnapshot{Total: 30, Fresh: 10, Aging: 5, Stale: 15, StalePercent: 50}, nil)
	shop := new(MockEngine)
	shop.On("Stats", mock.Anything, false).Return(nil, errors.New("database is locked"))

	agg := NewAggregator([]Site{site("blog", blog), site("docs", docs), site("shop", shop)})
	agg.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

	stats, err := agg.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalSites)
	assert.Equal(t, 40, stats.Total)
	assert.Equal(t, 16, stats.Fresh)
	assert.Equal(t, 7, stats.Aging)
	assert.Equal(t, 17, stats.Stale)
	assert.Equal(t, 43, stats.StalePercent)

	require.Len(t, stats.Sites, 3)
	assert.Equal(t, "docs", stats.Sites[0].ID, "most stale site first")
	assert.Equal(t, "F", stats.Sites[0].Health.Grade)
	assert.Equal(t, "blog", stats.Sites[1].ID)
	assert.Equal(t, "shop", stats.Sites[2].ID)
	assert.Equal(t, "database is locked", stats.Sites[2].Error)

	blog.AssertExpectations(t)
	docs.AssertExpectations(t)
	shop.AssertExpectations(t)
}

func TestAggregatorStats_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAggregator([]Site{site("blog", new(MockEngine))}).Stats(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregatorStaleItems(t *testing.T) {
	opts := freshness.ListOptions{PerPage: 5, Page: 1, OrderBy: freshness.OrderModified, Order: "asc"}

	blog := new(MockEngine)
	blog.On("ListStale", mock.Anything, opts).Return(&models.StalePage{Items: []models.StaleItem{{ID: 1, DaysOld: 200}}}, nil)
	docs := new(MockEngine)
	docs.On("ListStale", mock.Anything, opts).Return(&models.StalePage{Items: []models.StaleItem{{ID: 7, DaysOld: 500}, {ID: 8, DaysOld: 190}}}, nil)

	items, err := NewAggregator([]Site{site("blog", blog), site("docs", docs)}).StaleItems(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, "docs", items[0].SiteID)
	assert.Equal(t, int64(1), items[1].ID)
	assert.Equal(t, "Site blog", items[1].SiteName)
	assert.Equal(t, int64(8), items[2].ID)
}

func TestAggregatorStaleItems_Limit(t *testing.T) {
	opts := freshness.ListOptions{PerPage: 2, Page: 1, OrderBy: freshness.OrderModified, Order: "asc"}

	blog := new(MockEngine)
	blog.On("ListStale", mock.Anything, opts).Return(&models.StalePage{Items: []models.StaleItem{{ID: 1, DaysOld: 200}, {ID: 2, DaysOld: 185}}}, nil)
	docs := new(MockEngine)
	docs.On("ListStale", mock.Anything, opts).Return(&models.StalePage{Items: []models.StaleItem{{ID: 7, DaysOld: 500}}}, nil)

	items, err := NewAggregator([]Site{site("blog", blog), site("docs", docs)}).StaleItems(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, int64(1), items[1].ID)
}

func TestOpen(t *testing.T) {
	tenants := []Tenant{
		{ID: "a", Name: "A", DBBackend: "memory", StorageDir: t.TempDir()},
		{ID: "b", Name: "B", DBBackend: "memory", StorageDir: t.TempDir()},
	}

	agg, closer, err := Open(context.Background(), tenants, Options{Cache: cache.NewMemory()})
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	require.Len(t, agg.Sites(), 2)
	assert.Equal(t, "b", agg.Sites()[1].Engine.(*freshness.Engine).Tenant())
	assert.Equal(t, 180, agg.Sites()[0].Settings.Get().ThresholdDays)

	stats, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.StalePercent)
}

func TestOpen_BadBackend(t *testing.T) {
	_, _, err := Open(context.Background(), []Tenant{{ID: "a", DBBackend: "oracle", StorageDir: t.TempDir()}}, Options{Cache: cache.NewMemory()})
	assert.ErrorContains(t, err, "tenant a")
}
