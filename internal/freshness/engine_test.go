package freshness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/cache"
	"github.com/cfmlabs/freshness-monitor/internal/content"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func daysAgo(d int) time.Time {
	return epoch.Add(-time.Duration(d) * 24 * time.Hour)
}

func post(id int64, typ string, modifiedDaysAgo int) models.ContentItem {
	return models.ContentItem{
		ID:          id,
		Type:        typ,
		Status:      models.StatusPublished,
		Title:       "Item",
		AuthorID:    1,
		PublishedAt: daysAgo(modifiedDaysAgo + 30),
		ModifiedAt:  daysAgo(modifiedDaysAgo),
	}
}

type fixture struct {
	engine *freshness.Engine
	store  *content.MemoryStore
	cache  *cache.Memory
	clock  *clock
}

func newFixture(t *testing.T, items ...models.ContentItem) *fixture {
	t.Helper()
	clk := &clock{t: epoch}
	store := content.NewMemoryStore()
	mem := cache.NewMemoryWithClock(clk.Now)
	ctx := context.Background()

	require.NoError(t, store.UpsertAuthor(ctx, models.Author{ID: 1, DisplayName: "Ada", Email: "ada@example.com", CanEdit: true}))
	for _, item := range items {
		require.NoError(t, store.Upsert(ctx, item))
	}

	engine := freshness.NewEngine(store, store, mem,
		freshness.WithClock(clk.Now),
		freshness.WithLinks(freshness.SiteLinks{BaseURL: "https://example.com/"}),
	)
	return &fixture{engine: engine, store: store, cache: mem, clock: clk}
}

func globalSettings() models.Settings {
	return models.Settings{
		ThresholdDays: 180,
		DateMode:      models.DateModified,
		ContentTypes:  []string{"post", "page"},
	}
}

func TestListStale_GlobalThreshold(t *testing.T) {
	draft := post(5, "post", 400)
	draft.Status = "draft"

	f := newFixture(t,
		post(1, "post", 200),
		post(2, "post", 100),
		post(3, "post", 300),
		post(4, "product", 500),
		draft,
		post(6, "page", 180),
		post(7, "page", 179),
	)
	settings := globalSettings()
	settings.ExcludedIDs = []int64{3}

	page, err := f.engine.ListStale(context.Background(), settings, freshness.ListOptions{
		PerPage: 20, Page: 1, OrderBy: freshness.OrderModified, Order: "asc",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 2)

	oldest := page.Items[0]
	assert.Equal(t, int64(1), oldest.ID)
	assert.Equal(t, 200, oldest.DaysOld)
	assert.Equal(t, "200 days ago", oldest.DaysOldText)
	assert.Equal(t, models.BandStale, oldest.Band)
	assert.Equal(t, "Ada", oldest.AuthorName)
	assert.Equal(t, "https://example.com/content/1/edit", oldest.EditURL)
	assert.Equal(t, "https://example.com/content/1", oldest.ViewURL)
	assert.Nil(t, oldest.ReviewedAt)

	assert.Equal(t, int64(6), page.Items[1].ID)
}

func TestListStale_DateModes(t *testing.T) {
	item := models.ContentItem{
		ID: 1, Type: "post", Status: models.StatusPublished,
		PublishedAt: daysAgo(400), ModifiedAt: daysAgo(10),
	}
	f := newFixture(t, item)
	ctx := context.Background()

	tests := []struct {
		mode  models.DateMode
		total int
	}{
		{models.DateModified, 0},
		{models.DatePublished, 1},
		{models.DateOldest, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			settings := globalSettings()
			settings.DateMode = tt.mode
			page, err := f.engine.ListStale(ctx, settings, freshness.ListOptions{PerPage: 10, Page: 1})
			require.NoError(t, err)
			assert.Equal(t, tt.total, page.Total)
		})
	}
}

func TestListStale_EmptyIsAllClear(t *testing.T) {
	f := newFixture(t, post(1, "post", 5))

	page, err := f.engine.ListStale(context.Background(), globalSettings(), freshness.ListOptions{PerPage: 20, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestListStale_PerTypeOverride(t *testing.T) {
	f := newFixture(t,
		post(1, "page", 200),
		post(2, "post", 200),
		post(3, "page", 400),
	)
	settings := globalSettings()
	settings.PerTypeEnabled = true
	settings.TypeThresholds = map[string]int{"page": 365}
	ctx := context.Background()

	page, err := f.engine.ListStale(ctx, settings, freshness.ListOptions{PerPage: 20, Page: 1, OrderBy: freshness.OrderID})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Items[0].ID)
	assert.Equal(t, 180, page.Items[0].ThresholdDays)
	assert.Equal(t, int64(3), page.Items[1].ID)
	assert.Equal(t, 365, page.Items[1].ThresholdDays)

	check, err := f.engine.Check(ctx, settings, 1)
	require.NoError(t, err)
	assert.False(t, check.IsStale)
	assert.Equal(t, models.BandAging, check.Band)
	assert.Equal(t, 365, check.ThresholdDays)
	assert.Equal(t, 200, check.DaysOld)
}

func TestListStale_PerTypePaginationTotals(t *testing.T) {
	var items []models.ContentItem
	for i := int64(1); i <= 7; i++ {
		items = append(items, post(i, "post", 180+int(i)))
	}
	for i := int64(10); i <= 14; i++ {
		items = append(items, post(i, "page", 400+int(i)))
	}
	items = append(items, post(20, "page", 300), post(21, "post", 20), post(22, "page", 364))
	f := newFixture(t, items...)

	settings := globalSettings()
	settings.PerTypeEnabled = true
	settings.TypeThresholds = map[string]int{"page": 365}
	settings.ExcludedIDs = []int64{7}
	ctx := context.Background()

	first, err := f.engine.ListStale(ctx, settings, freshness.ListOptions{PerPage: 3, Page: 1, OrderBy: freshness.OrderModified, Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 11, first.Total)
	assert.Equal(t, 4, first.TotalPages)

	seen := map[int64]bool{}
	for p := 1; p <= first.TotalPages; p++ {
		page, err := f.engine.ListStale(ctx, settings, freshness.ListOptions{PerPage: 3, Page: p, OrderBy: freshness.OrderModified, Order: "asc"})
		require.NoError(t, err)
		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "item %d returned twice", item.ID)
			seen[item.ID] = true
		}
	}
	assert.Len(t, seen, first.Total)
	assert.False(t, seen[7])
	assert.False(t, seen[20])
	assert.False(t, seen[22])

	stats, err := f.engine.Stats(ctx, settings, true)
	require.NoError(t, err)
	assert.Equal(t, first.Total, stats.Stale)
}

func TestListStale_TypeAndAuthorScope(t *testing.T) {
	other := post(3, "post", 250)
	other.AuthorID = 2
	f := newFixture(t, post(1, "post", 200), post(2, "page", 200), other)
	ctx := context.Background()

	page, err := f.engine.ListStale(ctx, globalSettings(), freshness.ListOptions{Types: []string{"page"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].ID)

	page, err = f.engine.ListStale(ctx, globalSettings(), freshness.ListOptions{AuthorID: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(3), page.Items[0].ID)

	page, err = f.engine.ListStale(ctx, globalSettings(), freshness.ListOptions{Types: []string{"product"}})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestStats_Invariant(t *testing.T) {
	f := newFixture(t,
		post(1, "post", 0),
		post(2, "post", 89),
		post(3, "post", 90),
		post(4, "post", 179),
		post(5, "post", 180),
		post(6, "post", 500),
		post(7, "page", 200),
		post(8, "page", 10),
	)
	ctx := context.Background()

	t.Run("global", func(t *testing.T) {
		stats, err := f.engine.Stats(ctx, globalSettings(), true)
		require.NoError(t, err)
		assert.Equal(t, 8, stats.Total)
		assert.Equal(t, 3, stats.Fresh)
		assert.Equal(t, 2, stats.Aging)
		assert.Equal(t, 3, stats.Stale)
		assert.Equal(t, stats.Total, stats.Fresh+stats.Aging+stats.Stale)
		assert.Equal(t, 38, stats.StalePercent)
		assert.Equal(t, 180, stats.ThresholdDays)
		assert.False(t, stats.PerTypeEnabled)
	})

	t.Run("per type", func(t *testing.T) {
		settings := globalSettings()
		settings.PerTypeEnabled = true
		settings.TypeThresholds = map[string]int{"page": 365}
		stats, err := f.engine.Stats(ctx, settings, true)
		require.NoError(t, err)
		assert.Equal(t, 8, stats.Total)
		assert.Equal(t, 2, stats.Stale)
		assert.Equal(t, 3, stats.Aging)
		assert.Equal(t, 3, stats.Fresh)
		assert.Equal(t, stats.Total, stats.Fresh+stats.Aging+stats.Stale)
		assert.True(t, stats.PerTypeEnabled)
	})

	t.Run("exclusions never count as stale", func(t *testing.T) {
		settings := globalSettings()
		settings.ExcludedIDs = []int64{5, 6}
		stats, err := f.engine.Stats(ctx, settings, true)
		require.NoError(t, err)
		assert.Equal(t, 6, stats.Total)
		assert.Equal(t, 1, stats.Stale)
		assert.Equal(t, stats.Total, stats.Fresh+stats.Aging+stats.Stale)
	})

	t.Run("empty site", func(t *testing.T) {
		settings := globalSettings()
		settings.ContentTypes = []string{"product"}
		stats, err := f.engine.Stats(ctx, settings, true)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Total)
		assert.Equal(t, 0, stats.StalePercent)
		assert.Equal(t, "A", freshness.Health(*stats).Grade)
	})
}

func TestStats_Cache(t *testing.T) {
	f := newFixture(t, post(1, "post", 200), post(2, "post", 10))
	ctx := context.Background()
	settings := globalSettings()

	first, err := f.engine.Stats(ctx, settings, false)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.engine.Stats(ctx, settings, false)
	require.NoError(t, err)
	assert.True(t, first.ComputedAt.Equal(second.ComputedAt), "expected cache hit")

	t.Run("revisions do not invalidate", func(t *testing.T) {
		f.engine.HandleContentEvent(models.ContentEvent{Kind: models.ContentUpdated, ID: 1, IsRevision: true})
		again, err := f.engine.Stats(ctx, settings, false)
		require.NoError(t, err)
		assert.True(t, first.ComputedAt.Equal(again.ComputedAt))
	})

	t.Run("content events invalidate", func(t *testing.T) {
		require.NoError(t, f.store.Upsert(ctx, post(3, "post", 300)))
		f.engine.HandleContentEvent(models.ContentEvent{Kind: models.ContentCreated, ID: 3})
		f.clock.Advance(time.Second)

		fresh, err := f.engine.Stats(ctx, settings, false)
		require.NoError(t, err)
		assert.False(t, first.ComputedAt.Equal(fresh.ComputedAt))
		assert.Equal(t, 2, fresh.Stale)
	})

	t.Run("entries expire after the ttl", func(t *testing.T) {
		cached, err := f.engine.Stats(ctx, settings, false)
		require.NoError(t, err)
		f.clock.Advance(freshness.DefaultCacheTTL)
		expired, err := f.engine.Stats(ctx, settings, false)
		require.NoError(t, err)
		assert.True(t, expired.ComputedAt.After(cached.ComputedAt))
	})

	t.Run("force refresh bypasses the cache", func(t *testing.T) {
		cached, err := f.engine.Stats(ctx, settings, false)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
		forced, err := f.engine.Stats(ctx, settings, true)
		require.NoError(t, err)
		assert.True(t, forced.ComputedAt.After(cached.ComputedAt))
	})
}

func TestWithTenant_NamespacesCache(t *testing.T) {
	f := newFixture(t, post(1, "post", 200))
	ctx := context.Background()
	a := f.engine.WithTenant("a")
	b := f.engine.WithTenant("b")

	sa, err := a.Stats(ctx, globalSettings(), false)
	require.NoError(t, err)
	_, err = b.Stats(ctx, globalSettings(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.Size())

	b.Invalidate()
	f.clock.Advance(time.Second)
	again, err := a.Stats(ctx, globalSettings(), false)
	require.NoError(t, err)
	assert.True(t, sa.ComputedAt.Equal(again.ComputedAt))
	assert.Equal(t, "a", a.Tenant())
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) PublishReviewed(ctx context.Context, ids []int64, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

func TestMarkReviewed(t *testing.T) {
	sink := &mockSink{}
	sink.On("PublishReviewed", mock.Anything, []int64{1}, mock.AnythingOfType("time.Time")).Return(errors.New("broker down")).Twice()

	f := newFixture(t, post(1, "post", 200), post(2, "post", 250))
	engine := freshness.NewEngine(f.store, f.store, f.cache, freshness.WithClock(f.clock.Now), freshness.WithReviewSink(sink))
	ctx := context.Background()
	settings := globalSettings()

	before, err := engine.Stats(ctx, settings, false)
	require.NoError(t, err)
	assert.Equal(t, 2, before.Stale)

	f.clock.Advance(time.Second)
	at, err := engine.MarkReviewed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Truncate(time.Second), at)

	after, err := engine.Stats(ctx, settings, false)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Stale)
	assert.Equal(t, after.Total, after.Fresh+after.Aging+after.Stale)

	page, err := engine.ListStale(ctx, settings, freshness.ListOptions{PerPage: 10, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].ID)

	check, err := engine.Check(ctx, settings, 1)
	require.NoError(t, err)
	assert.False(t, check.IsStale)
	assert.Equal(t, models.BandFresh, check.Band)
	assert.Equal(t, 200, check.DaysOld)
	require.NotNil(t, check.ReviewedAt)

	t.Run("reviewing twice keeps the item clear", func(t *testing.T) {
		f.clock.Advance(time.Hour)
		second, err := engine.MarkReviewed(ctx, 1)
		require.NoError(t, err)
		assert.True(t, second.After(at))

		check, err := engine.Check(ctx, settings, 1)
		require.NoError(t, err)
		assert.False(t, check.IsStale)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := engine.MarkReviewed(ctx, 999)
		assert.ErrorIs(t, err, freshness.ErrNotFound)
	})

	sink.AssertExpectations(t)
}

func TestMarkReviewedBulk(t *testing.T) {
	f := newFixture(t, post(1, "post", 200), post(2, "post", 250), post(3, "post", 300))
	ctx := context.Background()

	result := f.engine.MarkReviewedBulk(ctx, []int64{1, 999, 2, -4})
	assert.Equal(t, []int64{1, 2}, result.Updated)
	assert.Equal(t, []int64{999, -4}, result.Failed)
	assert.Equal(t, epoch, result.ReviewedAt)

	stats, err := f.engine.Stats(ctx, globalSettings(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stale)

	empty := f.engine.MarkReviewedBulk(ctx, nil)
	assert.Empty(t, empty.Updated)
	assert.Empty(t, empty.Failed)
}

func TestReviewExpiresWithThreshold(t *testing.T) {
	f := newFixture(t, post(1, "post", 200))
	ctx := context.Background()

	_, err := f.engine.MarkReviewed(ctx, 1)
	require.NoError(t, err)

	f.clock.Advance(180 * 24 * time.Hour)
	check, err := f.engine.Check(ctx, globalSettings(), 1)
	require.NoError(t, err)
	assert.True(t, check.IsStale)
}

func TestCheck(t *testing.T) {
	f := newFixture(t, post(1, "post", 200), post(2, "product", 200))
	ctx := context.Background()
	settings := globalSettings()
	settings.ExcludedIDs = []int64{1}

	excluded, err := f.engine.Check(ctx, settings, 1)
	require.NoError(t, err)
	assert.True(t, excluded.Excluded)
	assert.False(t, excluded.IsStale)

	unmonitored, err := f.engine.Check(ctx, settings, 2)
	require.NoError(t, err)
	assert.False(t, unmonitored.Monitored)
	assert.False(t, unmonitored.IsStale)

	_, err = f.engine.Check(ctx, settings, 404)
	assert.ErrorIs(t, err, freshness.ErrNotFound)
}

type failingStore struct {
	*content.MemoryStore
}

func (failingStore) Count(ctx context.Context, f freshness.Filter) (int, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) IDs(ctx context.Context, f freshness.Filter) ([]int64, error) {
	return nil, errors.New("connection refused")
}

func TestStorageErrorsPropagate(t *testing.T) {
	store := failingStore{content.NewMemoryStore()}
	engine := freshness.NewEngine(store, store, cache.NewMemory())
	ctx := context.Background()

	_, err := engine.Stats(ctx, globalSettings(), false)
	assert.ErrorContains(t, err, "connection refused")

	_, err = engine.ListStale(ctx, globalSettings(), freshness.ListOptions{PerPage: 10})
	assert.ErrorContains(t, err, "connection refused")

	perType := globalSettings()
	perType.PerTypeEnabled = true
	_, err = engine.ListStale(ctx, perType, freshness.ListOptions{PerPage: 10})
	assert.ErrorContains(t, err, "connection refused")
}

type recordingLister struct {
	filters []freshness.Filter
	ids     map[string][]int64
}

func (r *recordingLister) IDs(ctx context.Context, f freshness.Filter) ([]int64, error) {
	r.filters = append(r.filters, f)
	return r.ids[f.Types[0]], nil
}

func TestStaleIDsByType(t *testing.T) {
	lister := &recordingLister{ids: map[string][]int64{
		"post": {1, 2, 3},
		"page": {3, 4},
	}}
	base := freshness.Filter{Status: models.StatusPublished, ExcludeIDs: []int64{9}}
	rules := []freshness.TypeRule{{Type: "post", ThresholdDays: 180}, {Type: "page", ThresholdDays: 365}}

	ids, err := freshness.StaleIDsByType(context.Background(), lister, base, rules, epoch)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids)

	require.Len(t, lister.filters, 2)
	assert.Equal(t, []string{"post"}, lister.filters[0].Types)
	assert.Equal(t, daysAgo(180), *lister.filters[0].StaleBefore)
	assert.Equal(t, daysAgo(365), *lister.filters[1].StaleBefore)
	assert.Equal(t, []int64{9}, lister.filters[1].ExcludeIDs)
}
