package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/events"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/notifications"
	"github.com/cfmlabs/freshness-monitor/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	JobSnapshot     = "snapshot"
	JobAdminDigest  = "admin"
	JobAuthorDigest = "author"

	adminDigestItems  = 10
	authorDigestItems = 20
)

// Engine is the part of the freshness engine the jobs need
type Engine interface {
	Stats(ctx context.Context, settings models.Settings, force bool) (*models.StatsSnapshot, error)
	ListStale(ctx context.Context, settings models.Settings, opts freshness.ListOptions) (*models.StalePage, error)
}

// SettingsSource provides the current settings
type SettingsSource interface {
	Get() models.Settings
}

// AuthorSource resolves author records
type AuthorSource interface {
	Authors(ctx context.Context, ids []int64) (map[int64]models.Author, error)
}

// SnapshotRecorder stores daily trend points
type SnapshotRecorder interface {
	Record(ctx context.Context, settings models.Settings) (*models.TrendPoint, error)
}

// DigestPublisher announces delivered digests
type DigestPublisher interface {
	PublishDigestSent(ctx context.Context, payload events.DigestSent) error
}

// Service runs the periodic freshness jobs
type Service struct {
	config              *config.Config
	engine              Engine
	settings            SettingsSource
	authors             AuthorSource
	trends              SnapshotRecorder
	ledger              *Ledger
	notificationService notifications.NotificationInterface
	publisher           DigestPublisher
	now                 func() time.Time
	metrics             *Metrics
	mu                  sync.RWMutex
}

// Metrics holds job run metrics
type Metrics struct {
	Jobs map[string]*JobMetrics `json:"jobs"`
}

// JobMetrics describes the last run of one job
type JobMetrics struct {
	LastRun         time.Time `json:"last_run"`
	LastRunDuration string    `json:"last_run_duration"`
	LastResult      string    `json:"last_result"`
	Runs            int       `json:"runs"`
	Sent            int       `json:"sent"`
	ErrorCount      int       `json:"error_count"`
}

// Dependencies groups the collaborators of the job service
type Dependencies struct {
	Engine        Engine
	Settings      SettingsSource
	Authors       AuthorSource
	Trends        SnapshotRecorder
	Storage       storage.StorageInterface
	Notifications notifications.NotificationInterface
	Publisher     DigestPublisher
}

// NewService creates a new job service
func NewService(cfg *config.Config, deps Dependencies) *Service {
	return &Service{
		config:              cfg,
		engine:              deps.Engine,
		settings:            deps.Settings,
		authors:             deps.Authors,
		trends:              deps.Trends,
		ledger:              NewLedger(deps.Storage),
		notificationService: deps.Notifications,
		publisher:           deps.Publisher,
		now:                 time.Now,
		metrics:             &Metrics{Jobs: make(map[string]*JobMetrics)},
	}
}

// WithClock overrides the service clock
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordSnapshot stores today's trend point
func (s *Service) RecordSnapshot(ctx context.Context) error {
	start := time.Now()
	logrus.Info("Starting trend snapshot")

	point, err := s.trends.Record(ctx, s.settings.Get())
	if err != nil {
		s.updateMetrics(JobSnapshot, time.Since(start), "error", 0, err)
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	s.updateMetrics(JobSnapshot, time.Since(start), "recorded "+point.Date, 0, nil)
	logrus.Infof("Trend snapshot completed in %v", time.Since(start))
	return nil
}

// RunAdminDigest sends the site-wide digest once per configured period
func (s *Service) RunAdminDigest(ctx context.Context) error {
	start := time.Now()
	settings := s.settings.Get()

	if !settings.EmailEnabled {
		logrus.Debug("Admin digest disabled, skipping")
		s.updateMetrics(JobAdminDigest, time.Since(start), "disabled", 0, nil)
		return nil
	}

	recipient := s.recipient(settings)
	period := PeriodKey(settings.EmailFrequency, s.now())

	sent, err := s.ledger.Sent(ctx, JobAdminDigest, period, "")
	if err != nil {
		s.updateMetrics(JobAdminDigest, time.Since(start), "error", 0, err)
		return err
	}
	if sent {
		logrus.Infof("Admin digest for %s already sent, skipping", period)
		s.updateMetrics(JobAdminDigest, time.Since(start), "already sent", 0, nil)
		return nil
	}

	digest, err := s.buildDigest(ctx, settings, recipient, false)
	if err != nil {
		s.updateMetrics(JobAdminDigest, time.Since(start), "error", 0, err)
		return err
	}
	if digest.Stats.Stale < 1 {
		logrus.Info("No stale content, admin digest not sent")
		s.updateMetrics(JobAdminDigest, time.Since(start), "nothing stale", 0, nil)
		return nil
	}

	if err := s.notificationService.SendDigest(ctx, digest); err != nil {
		s.updateMetrics(JobAdminDigest, time.Since(start), "error", 0, err)
		return fmt.Errorf("failed to send admin digest: %w", err)
	}

	entry := LedgerEntry{
		Job: JobAdminDigest, Period: period, Recipient: recipient,
		StaleCount: digest.Stats.Stale, SentAt: s.now().UTC(),
	}
	if err := s.ledger.Mark(ctx, entry, ""); err != nil {
		logrus.Warnf("Admin digest sent but not recorded: %v", err)
	}
	s.publishSent(ctx, entry)

	s.updateMetrics(JobAdminDigest, time.Since(start), "sent", 1, nil)
	logrus.Infof("Admin digest for %s sent in %v", period, time.Since(start))
	return nil
}

// SendTestDigest sends the admin digest immediately, ignoring the enabled
// flag and the ledger
func (s *Service) SendTestDigest(ctx context.Context, recipient string) error {
	settings := s.settings.Get()
	if recipient == "" {
		recipient = s.recipient(settings)
	}
	if recipient == "" {
		return notifications.ErrNoRecipient
	}

	digest, err := s.buildDigest(ctx, settings, recipient, true)
	if err != nil {
		return err
	}
	if err := s.notificationService.SendDigest(ctx, digest); err != nil {
		return fmt.Errorf("failed to send test digest: %w", err)
	}
	logrus.Infof("Test digest sent to %s", recipient)
	return nil
}

func (s *Service) recipient(settings models.Settings) string {
	if settings.EmailRecipient != "" {
		return settings.EmailRecipient
	}
	return s.config.AdminEmail
}

func (s *Service) buildDigest(ctx context.Context, settings models.Settings, recipient string, test bool) (*models.Digest, error) {
	stats, err := s.engine.Stats(ctx, settings, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	page, err := s.engine.ListStale(ctx, settings, freshness.ListOptions{
		PerPage: adminDigestItems,
		Page:    1,
		OrderBy: freshness.OrderModified,
		Order:   "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stale content: %w", err)
	}

	return &models.Digest{
		SiteName:    s.config.SiteName,
		SiteURL:     s.config.SiteURL,
		Recipient:   recipient,
		Test:        test,
		GeneratedAt: s.now(),
		Stats:       *stats,
		Health:      freshness.Health(*stats),
		Items:       page.Items,
		ListURL:     s.listURL(),
	}, nil
}

func (s *Service) listURL() string {
	if s.config.SiteURL == "" {
		return ""
	}
	return s.config.SiteURL + "/stale"
}

// RunAuthorDigests emails every qualifying author their own stale items.
// Each author is recorded separately so a partial failure is retried
// only for the authors that missed out.
func (s *Service) RunAuthorDigests(ctx context.Context) error {
	start := time.Now()
	settings := s.settings.Get()

	if !settings.AuthorNotifications {
		logrus.Debug("Author digests disabled, skipping")
		s.updateMetrics(JobAuthorDigest, time.Since(start), "disabled", 0, nil)
		return nil
	}

	counts, err := s.staleCountsByAuthor(ctx, settings)
	if err != nil {
		s.updateMetrics(JobAuthorDigest, time.Since(start), "error", 0, err)
		return err
	}

	ids := make([]int64, 0, len(counts))
	for id, count := range counts {
		if count >= settings.AuthorMinStale {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) == 0 {
		s.updateMetrics(JobAuthorDigest, time.Since(start), "nothing stale", 0, nil)
		return nil
	}

	authors, err := s.authors.Authors(ctx, ids)
	if err != nil {
		s.updateMetrics(JobAuthorDigest, time.Since(start), "error", 0, fmt.Errorf("failed to load authors: %w", err))
		return fmt.Errorf("failed to load authors: %w", err)
	}

	period := PeriodKey(settings.AuthorEmailFrequency, s.now())
	sentCount := 0
	var errs []error

	for _, id := range ids {
		author, ok := authors[id]
		if !ok || author.Email == "" || !author.CanEdit {
			continue
		}

		key := strconv.FormatInt(id, 10)
		already, err := s.ledger.Sent(ctx, JobAuthorDigest, period, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if already {
			continue
		}

		if err := s.sendAuthorDigest(ctx, settings, author, counts[id]); err != nil {
			logrus.Errorf("Failed to send author digest to %d: %v", id, err)
			errs = append(errs, err)
			continue
		}

		entry := LedgerEntry{
			Job: JobAuthorDigest, Period: period, Recipient: author.Email,
			StaleCount: counts[id], SentAt: s.now().UTC(),
		}
		if err := s.ledger.Mark(ctx, entry, key); err != nil {
			logrus.Warnf("Author digest sent but not recorded: %v", err)
		}
		s.publishSent(ctx, entry)
		sentCount++
	}

	err = errors.Join(errs...)
	result := fmt.Sprintf("sent %d", sentCount)
	s.updateMetrics(JobAuthorDigest, time.Since(start), result, sentCount, err)
	logrus.Infof("Author digests for %s: %s in %v", period, result, time.Since(start))
	return err
}

func (s *Service) staleCountsByAuthor(ctx context.Context, settings models.Settings) (map[int64]int, error) {
	page, err := s.engine.ListStale(ctx, settings, freshness.ListOptions{OrderBy: freshness.OrderID})
	if err != nil {
		return nil, fmt.Errorf("failed to list stale content: %w", err)
	}
	counts := make(map[int64]int)
	for _, item := range page.Items {
		counts[item.AuthorID]++
	}
	return counts, nil
}

func (s *Service) sendAuthorDigest(ctx context.Context, settings models.Settings, author models.Author, count int) error {
	page, err := s.engine.ListStale(ctx, settings, freshness.ListOptions{
		PerPage:  authorDigestItems,
		Page:     1,
		OrderBy:  freshness.OrderModified,
		Order:    "asc",
		AuthorID: author.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to list stale content: %w", err)
	}
	if len(page.Items) == 0 {
		return nil
	}

	return s.notificationService.SendAuthorDigest(ctx, &models.AuthorDigest{
		SiteName:      s.config.SiteName,
		SiteURL:       s.config.SiteURL,
		Author:        author,
		StaleCount:    count,
		ThresholdDays: freshness.NewResolver(settings).Global(),
		GeneratedAt:   s.now(),
		Items:         page.Items,
		ListURL:       s.listURL(),
	})
}

func (s *Service) publishSent(ctx context.Context, entry LedgerEntry) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishDigestSent(ctx, events.DigestSent{
		Kind:       entry.Job,
		Recipient:  entry.Recipient,
		StaleCount: entry.StaleCount,
		Period:     entry.Period,
	})
	if err != nil {
		logrus.Warnf("Failed to publish digest event: %v", err)
	}
}

func (s *Service) updateMetrics(job string, duration time.Duration, result string, sent int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics.Jobs[job]
	if !ok {
		m = &JobMetrics{}
		s.metrics.Jobs[job] = m
	}
	m.LastRun = s.now()
	m.LastRunDuration = duration.String()
	m.LastResult = result
	m.Runs++
	m.Sent += sent
	if err != nil {
		m.ErrorCount++
		m.LastResult = "error: " + err.Error()
	}
}

// Snapshot returns a copy of the job metrics
func (s *Service) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Metrics{Jobs: make(map[string]*JobMetrics, len(s.metrics.Jobs))}
	for name, m := range s.metrics.Jobs {
		copied := *m
		out.Jobs[name] = &copied
	}
	return out
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	data, _ := json.MarshalIndent(s.Snapshot(), "", "  ")
	return string(data)
}
