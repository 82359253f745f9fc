//go:build integration

package content

import (
	"context"
	"testing"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/cache"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	dsn       string
	store     Store
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("freshness"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.dsn = dsn

	store, err := Open(s.ctx, BackendPostgres, dsn)
	s.Require().NoError(err)
	s.store = store
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	db := s.store.(*SQLStore).db
	_, _ = db.ExecContext(s.ctx, "DELETE FROM content_reviews")
	_, _ = db.ExecContext(s.ctx, "DELETE FROM content_authors")
	_, _ = db.ExecContext(s.ctx, "DELETE FROM content_items")
}

func (s *PostgresIntegrationSuite) TestStoreSemantics() {
	runStoreSuite(s.T(), s.store)
}

func (s *PostgresIntegrationSuite) TestEngineOverPostgres() {
	seed(s.T(), s.store)
	engine := freshness.NewEngine(s.store, s.store, cache.NewMemory(), freshness.WithClock(func() time.Time { return now }))
	settings := models.Settings{ThresholdDays: 180, ContentTypes: []string{"post", "page"}}

	stats, err := engine.Stats(s.ctx, settings, true)
	s.Require().NoError(err)
	s.Equal(4, stats.Total)
	s.Equal(3, stats.Stale)
	s.Equal(stats.Total, stats.Fresh+stats.Aging+stats.Stale)

	settings.PerTypeEnabled = true
	settings.TypeThresholds = map[string]int{"page": 365}
	page, err := engine.ListStale(s.ctx, settings, freshness.ListOptions{PerPage: 1, Page: 2, OrderBy: freshness.OrderTitle})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
	s.Equal(2, page.TotalPages)
	s.Require().Len(page.Items, 1)
	s.Equal(int64(5), page.Items[0].ID)
}

func (s *PostgresIntegrationSuite) TestMigrateIsIdempotent() {
	result, err := Migrate(BackendPostgres, s.dsn, -1)
	s.Require().NoError(err)
	s.False(result.Changed)
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}
