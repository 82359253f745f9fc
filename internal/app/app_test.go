package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		TimeZone:       "UTC",
		SiteURL:        "https://example.com",
		DBBackend:      "memory",
		StorageBackend: "file",
		StorageDir:     t.TempDir(),
		CacheTTL:       time.Minute,
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.Nil(t, a.Network)
	assert.Equal(t, 180, a.Settings.Get().ThresholdDays)

	old := time.Now().AddDate(0, 0, -200)
	require.NoError(t, a.Content.Upsert(ctx, models.ContentItem{
		ID: 1, Type: "post", Status: "publish", Title: "Old", AuthorID: 1, PublishedAt: old, ModifiedAt: old,
	}))

	stats, err := a.Engine.Stats(ctx, a.Settings.Get(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stale)

	// a settings change drops the cached snapshot
	next := a.Settings.Get()
	next.ThresholdDays = 365
	_, err = a.Settings.Update(ctx, next)
	require.NoError(t, err)

	stats, err = a.Engine.Stats(ctx, a.Settings.Get(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Stale)
	assert.Equal(t, 365, stats.ThresholdDays)
}

func TestNew_SeedAndTenants(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("threshold_days: 90\n"), 0o644))

	tenants := filepath.Join(dir, "tenants.yaml")
	require.NoError(t, os.WriteFile(tenants, []byte(`tenants:
  - id: blog
    db_backend: memory
    storage_dir: `+filepath.Join(dir, "blog")+`
`), 0o644))

	cfg := testConfig(t)
	cfg.SettingsSeedFile = seed
	cfg.TenantsFile = tenants

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 90, a.Settings.Get().ThresholdDays)
	require.NotNil(t, a.Network)
	require.Len(t, a.Network.Sites(), 1)
	assert.Equal(t, "blog", a.Network.Sites()[0].Tenant.ID)
}

func TestNew_BadBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBBackend = "oracle"
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported content backend")
}

func TestStartScheduler(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	sched, err := a.StartScheduler()
	require.NoError(t, err)
	defer sched.Stop()

	assert.Equal(t, "0 0 9 * * MON", sched.Schedules()[scheduler.JobAdminDigest])

	next := a.Settings.Get()
	next.EmailFrequency = models.FrequencyDaily
	_, err = a.Settings.Update(ctx, next)
	require.NoError(t, err)

	assert.Equal(t, "0 0 9 * * *", sched.Schedules()[scheduler.JobAdminDigest])
}

func TestRunCacheCleanup(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunCacheCleanup(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
