package freshness

import (
	"fmt"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/models"
)

const day = 24 * time.Hour

// NormalizeDateMode maps unknown or empty modes to modified
func NormalizeDateMode(mode models.DateMode) models.DateMode {
	switch mode {
	case models.DateModified, models.DatePublished, models.DateOldest:
		return mode
	default:
		return models.DateModified
	}
}

// SelectDate returns the timestamp evaluated for an item under the given mode.
// Zero timestamps are treated as now, so an item with a missing date is never stale.
func SelectDate(item models.ContentItem, mode models.DateMode, now time.Time) time.Time {
	published := orNow(item.PublishedAt, now)
	modified := orNow(item.ModifiedAt, now)

	switch NormalizeDateMode(mode) {
	case models.DatePublished:
		return published
	case models.DateOldest:
		if published.Before(modified) {
			return published
		}
		return modified
	default:
		return modified
	}
}

// EffectiveDate is the selected date advanced by a later review, if any
func EffectiveDate(item models.ContentItem, mode models.DateMode, now time.Time) time.Time {
	selected := SelectDate(item, mode, now)
	if item.ReviewedAt != nil && item.ReviewedAt.After(selected) {
		return *item.ReviewedAt
	}
	return selected
}

// AgeDays returns whole days elapsed between t and now; future dates are 0
func AgeDays(t, now time.Time) int {
	d := now.Sub(t)
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

// Cutoff returns the instant at or before which an item is days old
func Cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * day)
}

// DaysAgoText renders an age as "N days ago"
func DaysAgoText(days int) string {
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
