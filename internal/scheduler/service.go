package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	JobSnapshot       = "snapshot"
	JobAdminDigest    = "admin-digest"
	JobAuthorDigest   = "author-digest"
	JobSettingsReload = "settings-refresh"

	snapshotSpec = "0 0 2 * * *"
	refreshSpec  = "0 * * * * *"

	adminDigestHour  = 9
	authorDigestHour = 12

	jobTimeout = 30 * time.Minute
)

// KnownJob reports whether job names a job Trigger can run
func KnownJob(job string) bool {
	switch job {
	case JobSnapshot, JobAdminDigest, JobAuthorDigest, JobSettingsReload:
		return true
	}
	return false
}

// DigestSpec returns the six-field cron expression for a digest cadence
func DigestSpec(freq models.Frequency, hour int) string {
	switch freq {
	case models.FrequencyDaily:
		return fmt.Sprintf("0 0 %d * * *", hour)
	case models.FrequencyMonthly:
		return fmt.Sprintf("0 0 %d 1 * *", hour)
	default:
		return fmt.Sprintf("0 0 %d * * MON", hour)
	}
}

// Service handles scheduling of the freshness jobs
type Service struct {
	config    *config.Config
	jobs      JobRunner
	refresher SettingsRefresher
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
	specs   map[string]string
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, jobs JobRunner, refresher SettingsRefresher) *Service {
	return &Service{
		config:    cfg,
		jobs:      jobs,
		refresher: refresher,
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
		entries:   make(map[string]cron.EntryID),
		specs:     make(map[string]string),
	}
}

// Start registers every job for the given settings and begins the schedule
func (s *Service) Start(settings models.Settings) error {
	if err := s.add(JobSnapshot, snapshotSpec); err != nil {
		return err
	}
	if s.refresher != nil {
		if err := s.add(JobSettingsReload, refreshSpec); err != nil {
			return err
		}
	}
	if err := s.Reschedule(settings); err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (admin digest %s, author digest %s)",
		settings.EmailFrequency, settings.AuthorEmailFrequency)
	return nil
}

// Reschedule replaces the digest entries to follow the configured cadences
func (s *Service) Reschedule(settings models.Settings) error {
	if err := s.add(JobAdminDigest, DigestSpec(settings.EmailFrequency, adminDigestHour)); err != nil {
		return err
	}
	return s.add(JobAuthorDigest, DigestSpec(settings.AuthorEmailFrequency, authorDigestHour))
}

func (s *Service) add(job, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.specs[job] == spec {
		return nil
	}
	if id, ok := s.entries[job]; ok {
		s.cron.Remove(id)
		delete(s.entries, job)
	}

	id, err := s.cron.AddFunc(spec, func() {
		if err := s.Trigger(job); err != nil {
			logrus.Errorf("Scheduled %s run failed: %v", job, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job, err)
	}

	s.entries[job] = id
	s.specs[job] = spec
	logrus.Debugf("Scheduled %s at %q", job, spec)
	return nil
}

// Trigger runs one job synchronously
func (s *Service) Trigger(job string) error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	switch job {
	case JobSnapshot:
		return s.jobs.RecordSnapshot(ctx)
	case JobAdminDigest:
		return s.jobs.RunAdminDigest(ctx)
	case JobAuthorDigest:
		return s.jobs.RunAuthorDigests(ctx)
	case JobSettingsReload:
		if s.refresher == nil {
			return nil
		}
		_, err := s.refresher.Refresh(ctx)
		return err
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}

// Schedules returns the cron expression of every registered job
func (s *Service) Schedules() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.specs))
	for job, spec := range s.specs {
		out[job] = spec
	}
	return out
}

// Next returns the next activation time of a job
func (s *Service) Next(job string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[job]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
