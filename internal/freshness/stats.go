package freshness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

func (e *Engine) statsKey() string {
	return e.tenant + ":stats"
}

// Stats returns the aggregate snapshot, served from cache unless force is set
// or the cached entry expired.
func (e *Engine) Stats(ctx context.Context, settings models.Settings, force bool) (*models.StatsSnapshot, error) {
	if !force {
		if cached, ok := e.cachedStats(); ok {
			logrus.Debugf("Stats cache hit for %s", e.tenant)
			return cached, nil
		}
	}

	snapshot, err := e.computeStats(ctx, settings)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stats: %w", err)
	}
	e.cache.Set(e.statsKey(), data, e.cacheTTL)

	return snapshot, nil
}

func (e *Engine) cachedStats() (*models.StatsSnapshot, bool) {
	data, ok := e.cache.Get(e.statsKey())
	if !ok {
		return nil, false
	}
	var snapshot models.StatsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logrus.Warnf("Discarding unreadable stats cache entry for %s: %v", e.tenant, err)
		return nil, false
	}
	return &snapshot, true
}

// computeStats counts the stale set and the aging-or-stale set with the same
// global or per-type branching as ListStale; aging is their difference.
func (e *Engine) computeStats(ctx context.Context, settings models.Settings) (*models.StatsSnapshot, error) {
	start := time.Now()
	now := e.now()
	r := NewResolver(settings)
	rules := r.Rules()
	base := baseFilter(r, ruleTypes(rules))

	total, err := e.content.Count(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to count content: %w", err)
	}

	var stale, agingOrStale int
	if r.PerType() {
		for _, rule := range rules {
			s, a, err := e.countBands(ctx, base, []string{rule.Type}, rule.ThresholdDays, now)
			if err != nil {
				return nil, err
			}
			stale += s
			agingOrStale += a
		}
	} else {
		stale, agingOrStale, err = e.countBands(ctx, base, base.Types, r.Global(), now)
		if err != nil {
			return nil, err
		}
	}

	snapshot := &models.StatsSnapshot{
		Total:          total,
		Stale:          stale,
		Aging:          agingOrStale - stale,
		Fresh:          total - agingOrStale,
		StalePercent:   StalePercent(stale, total),
		ThresholdDays:  r.Global(),
		PerTypeEnabled: r.PerType(),
		ComputedAt:     now,
	}

	logrus.Debugf("Computed stats for %s in %v: %d total, %d stale", e.tenant, time.Since(start), total, stale)
	return snapshot, nil
}

func (e *Engine) countBands(ctx context.Context, base Filter, types []string, threshold int, now time.Time) (stale, agingOrStale int, err error) {
	f := base
	f.Types = types

	staleCutoff := Cutoff(now, threshold)
	f.StaleBefore = &staleCutoff
	if stale, err = e.content.Count(ctx, f); err != nil {
		return 0, 0, fmt.Errorf("failed to count stale content: %w", err)
	}

	agingCutoff := Cutoff(now, agingDays(threshold))
	f.StaleBefore = &agingCutoff
	if agingOrStale, err = e.content.Count(ctx, f); err != nil {
		return 0, 0, fmt.Errorf("failed to count aging content: %w", err)
	}

	return stale, agingOrStale, nil
}

// Invalidate drops the cached stats snapshot
func (e *Engine) Invalidate() {
	e.cache.Delete(e.statsKey())
}
