package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/cache"
	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/content"
	"github.com/cfmlabs/freshness-monitor/internal/events"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/sources"
	"github.com/cfmlabs/freshness-monitor/internal/storage"
	"github.com/cfmlabs/freshness-monitor/internal/trends"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendDigest(ctx context.Context, digest *models.Digest) error {
	args := m.Called(digest)
	return args.Error(0)
}

func (m *MockNotificationService) SendAuthorDigest(ctx context.Context, digest *models.AuthorDigest) error {
	args := m.Called(digest)
	return args.Error(0)
}

type staticSettings struct {
	s models.Settings
}

func (s *staticSettings) Get() models.Settings { return s.s }

var monday = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	service  *Service
	settings *staticSettings
	notifier *MockNotificationService
	events   *events.Memory
	store    *content.MemoryStore
	storage  *storage.FileStorage
	now      time.Time
}

func item(id, author int64, modifiedDaysAgo int) models.ContentItem {
	return models.ContentItem{
		ID:          id,
		Type:        "post",
		Status:      models.StatusPublished,
		Title:       "Post",
		AuthorID:    author,
		PublishedAt: monday.AddDate(0, 0, -modifiedDaysAgo-10),
		ModifiedAt:  monday.AddDate(0, 0, -modifiedDaysAgo),
	}
}

func newHarness(t *testing.T, items ...models.ContentItem) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{now: monday}
	clock := func() time.Time { return h.now }

	h.store = content.NewMemoryStore()
	require.NoError(t, h.store.UpsertAuthor(ctx, models.Author{ID: 1, DisplayName: "Ada", Email: "ada@example.com", CanEdit: true}))
	require.NoError(t, h.store.UpsertAuthor(ctx, models.Author{ID: 2, DisplayName: "Linus", Email: "linus@example.com", CanEdit: true}))
	require.NoError(t, h.store.UpsertAuthor(ctx, models.Author{ID: 3, DisplayName: "Reader", Email: "reader@example.com"}))
	require.NoError(t, h.store.UpsertAuthor(ctx, models.Author{ID: 4, DisplayName: "Ghost"}))
	for _, it := range items {
		require.NoError(t, h.store.Upsert(ctx, it))
	}

	engine := freshness.NewEngine(h.store, h.store, cache.NewMemoryWithClock(clock), freshness.WithClock(clock))

	var err error
	h.storage, err = storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	h.settings = &staticSettings{s: models.Settings{
		ThresholdDays:        180,
		DateMode:             models.DateModified,
		ContentTypes:         []string{"post"},
		EmailEnabled:         true,
		EmailFrequency:       models.FrequencyWeekly,
		AuthorNotifications:  true,
		AuthorEmailFrequency: models.FrequencyWeekly,
		AuthorMinStale:       1,
	}}
	h.notifier = new(MockNotificationService)
	h.events = &events.Memory{}

	cfg := &config.Config{SiteName: "Example", SiteURL: "https://example.com", AdminEmail: "admin@example.com"}
	h.service = NewService(cfg, Dependencies{
		Engine:        engine,
		Settings:      h.settings,
		Authors:       h.store,
		Trends:        trends.NewRecorder(h.storage, engine).WithClock(clock),
		Storage:       h.storage,
		Notifications: h.notifier,
		Publisher:     events.NewNotifier(h.events, "default"),
	}).WithClock(clock)
	return h
}

func TestPeriodKey(t *testing.T) {
	ts := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-01", PeriodKey(models.FrequencyDaily, ts))
	assert.Equal(t, "2026-01", PeriodKey(models.FrequencyMonthly, ts))
	assert.Equal(t, "2026-W01", PeriodKey(models.FrequencyWeekly, ts))
	// 2027-01-01 is a Friday in ISO week 53 of 2026
	assert.Equal(t, "2026-W53", PeriodKey(models.FrequencyWeekly, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRunAdminDigest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, item(1, 1, 400), item(2, 1, 200), item(3, 2, 10))

	var sent *models.Digest
	h.notifier.On("SendDigest", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*models.Digest)
	}).Return(nil).Once()

	require.NoError(t, h.service.RunAdminDigest(ctx))
	require.NotNil(t, sent)
	assert.Equal(t, "admin@example.com", sent.Recipient)
	assert.Equal(t, 2, sent.Stats.Stale)
	assert.Equal(t, 3, sent.Stats.Total)
	assert.False(t, sent.Test)
	require.Len(t, sent.Items, 2)
	assert.Equal(t, int64(1), sent.Items[0].ID, "oldest first")
	assert.Equal(t, "https://example.com/stale", sent.ListURL)

	// the scheduler firing again in the same week does not resend
	require.NoError(t, h.service.RunAdminDigest(ctx))
	h.notifier.AssertNumberOfCalls(t, "SendDigest", 1)

	evs := h.events.Events()
	require.Len(t, evs, 1)
	var payload events.DigestSent
	require.NoError(t, json.Unmarshal(evs[0].Data, &payload))
	assert.Equal(t, events.DigestSent{Kind: "admin", Recipient: "admin@example.com", StaleCount: 2, Period: "2026-W23"}, payload)

	metrics := h.service.Snapshot()
	assert.Equal(t, 2, metrics.Jobs[JobAdminDigest].Runs)
	assert.Equal(t, 1, metrics.Jobs[JobAdminDigest].Sent)
	assert.Equal(t, "already sent", metrics.Jobs[JobAdminDigest].LastResult)
}

func TestRunAdminDigest_NextPeriodSendsAgain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, item(1, 1, 400))
	h.notifier.On("SendDigest", mock.Anything).Return(nil)

	require.NoError(t, h.service.RunAdminDigest(ctx))
	h.now = h.now.AddDate(0, 0, 7)
	require.NoError(t, h.service.RunAdminDigest(ctx))

	h.notifier.AssertNumberOfCalls(t, "SendDigest", 2)
}

func TestRunAdminDigest_Skips(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, item(1, 1, 400))
		h.settings.s.EmailEnabled = false
		require.NoError(t, h.service.RunAdminDigest(ctx))
		h.notifier.AssertNotCalled(t, "SendDigest", mock.Anything)
	})

	t.Run("nothing stale", func(t *testing.T) {
		h := newHarness(t, item(1, 1, 10))
		require.NoError(t, h.service.RunAdminDigest(ctx))
		h.notifier.AssertNotCalled(t, "SendDigest", mock.Anything)
		assert.Equal(t, "nothing stale", h.service.Snapshot().Jobs[JobAdminDigest].LastResult)
	})

	t.Run("configured recipient wins", func(t *testing.T) {
		h := newHarness(t, item(1, 1, 400))
		h.settings.s.EmailRecipient = "editor@example.com"
		h.notifier.On("SendDigest", mock.MatchedBy(func(d *models.Digest) bool {
			return d.Recipient == "editor@example.com"
		})).Return(nil).Once()
		require.NoError(t, h.service.RunAdminDigest(ctx))
		h.notifier.AssertExpectations(t)
	})
}

func TestRunAdminDigest_SendFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, item(1, 1, 400))
	h.notifier.On("SendDigest", mock.Anything).Return(errors.New("smtp down")).Once()
	h.notifier.On("SendDigest", mock.Anything).Return(nil).Once()

	require.Error(t, h.service.RunAdminDigest(ctx))
	assert.Equal(t, 1, h.service.Snapshot().Jobs[JobAdminDigest].ErrorCount)
	assert.Empty(t, h.events.Events())

	require.NoError(t, h.service.RunAdminDigest(ctx))
	h.notifier.AssertNumberOfCalls(t, "SendDigest", 2)
}

func TestSendTestDigest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, item(1, 1, 10))
	h.settings.s.EmailEnabled = false

	h.notifier.On("SendDigest", mock.MatchedBy(func(d *models.Digest) bool {
		return d.Test && d.Recipient == "qa@example.com" && d.Stats.Stale == 0
	})).Return(nil).Twice()

	require.NoError(t, h.service.SendTestDigest(ctx, "qa@example.com"))
	require.NoError(t, h.service.SendTestDigest(ctx, "qa@example.com"))
	h.notifier.AssertExpectations(t)

	cfgless := newHarness(t)
	cfgless.service.config.AdminEmail = ""
	assert.Error(t, cfgless.service.SendTestDigest(ctx, ""))
}

func TestRunAuthorDigests(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		item(1, 1, 400), item(2, 1, 300), item(3, 1, 10),
		item(4, 2, 250),
		item(5, 3, 500), // cannot edit
		item(6, 4, 500), // no email
	)

	got := map[string]*models.AuthorDigest{}
	h.notifier.On("SendAuthorDigest", mock.Anything).Run(func(args mock.Arguments) {
		d := args.Get(0).(*models.AuthorDigest)
		got[d.Author.Email] = d
	}).Return(nil)

	require.NoError(t, h.service.RunAuthorDigests(ctx))
	require.Len(t, got, 2)

	ada := got["ada@example.com"]
	require.NotNil(t, ada)
	assert.Equal(t, 2, ada.StaleCount)
	require.Len(t, ada.Items, 2)
	assert.Equal(t, int64(1), ada.Items[0].ID)
	assert.Equal(t, 180, ada.ThresholdDays)

	assert.Equal(t, 1, got["linus@example.com"].StaleCount)

	// second run in the same period sends nothing new
	require.NoError(t, h.service.RunAuthorDigests(ctx))
	h.notifier.AssertNumberOfCalls(t, "SendAuthorDigest", 2)
	assert.Len(t, h.events.Events(), 2)
}

func TestRunAuthorDigests_MinimumAndPartialFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, item(1, 1, 400), item(2, 1, 300), item(4, 2, 250))
	h.settings.s.AuthorMinStale = 2

	h.notifier.On("SendAuthorDigest", mock.Anything).Return(errors.New("smtp down")).Once()
	h.notifier.On("SendAuthorDigest", mock.Anything).Return(nil)

	err := h.service.RunAuthorDigests(ctx)
	require.Error(t, err)

	require.NoError(t, h.service.RunAuthorDigests(ctx))
	h.notifier.AssertNumberOfCalls(t, "SendAuthorDigest", 2)
	for _, call := range h.notifier.Calls {
		assert.Equal(t, "ada@example.com", call.Arguments.Get(0).(*models.AuthorDigest).Author.Email)
	}
}

func TestRunAuthorDigests_AfterWordPressSync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wp/v2/users":
			_, _ = w.Write([]byte(`[
				{"id":10,"name":"Editor","email":"editor@example.com","capabilities":{"edit_posts":true}},
				{"id":11,"name":"Subscriber","email":"subscriber@example.com","capabilities":[]}
			]`))
		case "/wp-json/wp/v2/posts":
			_, _ = w.Write([]byte(`[
				{"id":40,"type":"post","status":"publish","title":{"rendered":"Old"},"author":10,
					"date_gmt":"2024-01-01T00:00:00","modified_gmt":"2025-01-01T00:00:00"},
				{"id":41,"type":"post","status":"publish","title":{"rendered":"Older"},"author":11,
					"date_gmt":"2024-01-01T00:00:00","modified_gmt":"2024-06-01T00:00:00"}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := sources.NewWordPressSource(srv.URL, "admin", "app-password")
	_, err := sources.Sync(ctx, src, h.store, []string{"post"})
	require.NoError(t, err)

	h.notifier.On("SendAuthorDigest", mock.Anything).Return(nil)
	require.NoError(t, h.service.RunAuthorDigests(ctx))

	h.notifier.AssertNumberOfCalls(t, "SendAuthorDigest", 1)
	d := h.notifier.Calls[0].Arguments.Get(0).(*models.AuthorDigest)
	assert.Equal(t, "editor@example.com", d.Author.Email)
	assert.Equal(t, 1, d.StaleCount)
}

func TestRunAuthorDigests_Disabled(t *testing.T) {
	h := newHarness(t, item(1, 1, 400))
	h.settings.s.AuthorNotifications = false
	require.NoError(t, h.service.RunAuthorDigests(context.Background()))
	h.notifier.AssertNotCalled(t, "SendAuthorDigest", mock.Anything)
}

func TestRecordSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, item(1, 1, 400), item(2, 1, 100), item(3, 1, 10))

	require.NoError(t, h.service.RecordSnapshot(ctx))

	data, err := h.storage.Retrieve(ctx, trends.Key)
	require.NoError(t, err)
	var points []models.TrendPoint
	require.NoError(t, json.Unmarshal(data, &points))
	require.Len(t, points, 1)
	assert.Equal(t, models.TrendPoint{
		Date: "2026-06-01", Total: 3, Fresh: 1, Aging: 1, Stale: 1, StalePercent: 33, Score: 67, Grade: "D",
	}, points[0])

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(h.service.GetMetrics()), &metrics))
	assert.Equal(t, "recorded 2026-06-01", metrics.Jobs[JobSnapshot].LastResult)
}
