package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	// Key is the storage key of the trend history
	Key = "trends/history.json"
	// MaxPoints bounds the history; older points are evicted first
	MaxPoints = 90

	dateLayout = "2006-01-02"
)

// StatsSource produces fresh stats snapshots
type StatsSource interface {
	Stats(ctx context.Context, settings models.Settings, force bool) (*models.StatsSnapshot, error)
}

// Recorder appends one trend point per day to key-value storage
type Recorder struct {
	storage storage.StorageInterface
	stats   StatsSource
	now     func() time.Time
	mu      sync.Mutex
}

// NewRecorder creates a recorder over storage
func NewRecorder(st storage.StorageInterface, stats StatsSource) *Recorder {
	return &Recorder{storage: st, stats: stats, now: time.Now}
}

// WithClock returns the recorder using now as its clock
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record forces a stats refresh and stores today's point, replacing a point
// already recorded today
func (r *Recorder) Record(ctx context.Context, settings models.Settings) (*models.TrendPoint, error) {
	snapshot, err := r.stats.Stats(ctx, settings, true)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats for trend: %w", err)
	}

	health := freshness.Health(*snapshot)
	point := models.TrendPoint{
		Date:         r.now().Format(dateLayout),
		Total:        snapshot.Total,
		Fresh:        snapshot.Fresh,
		Aging:        snapshot.Aging,
		Stale:        snapshot.Stale,
		StalePercent: snapshot.StalePercent,
		Score:        health.Score,
		Grade:        health.Grade,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	if n := len(history); n > 0 && history[n-1].Date == point.Date {
		history[n-1] = point
	} else {
		history = append(history, point)
	}
	if len(history) > MaxPoints {
		history = history[len(history)-MaxPoints:]
	}

	if err := r.save(ctx, history); err != nil {
		return nil, err
	}
	logrus.Infof("Recorded trend point for %s: %d stale of %d", point.Date, point.Stale, point.Total)
	return &point, nil
}

// History returns the most recent points, oldest first. days is clamped to 1..MaxPoints.
func (r *Recorder) History(ctx context.Context, days int) ([]models.TrendPoint, error) {
	days = max(1, min(MaxPoints, days))

	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(history) > days {
		history = history[len(history)-days:]
	}
	return history, nil
}

// Clear removes the stored history
func (r *Recorder) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storage.Delete(ctx, Key)
}

func (r *Recorder) load(ctx context.Context) ([]models.TrendPoint, error) {
	data, err := r.storage.Retrieve(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return []models.TrendPoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trend history: %w", err)
	}

	var history []models.TrendPoint
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode trend history: %w", err)
	}
	return history, nil
}

func (r *Recorder) save(ctx context.Context, history []models.TrendPoint) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode trend history: %w", err)
	}
	if err := r.storage.Store(ctx, Key, data); err != nil {
		return fmt.Errorf("failed to persist trend history: %w", err)
	}
	return nil
}
