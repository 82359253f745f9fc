package freshness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// MarkReviewed stamps an item as reviewed now and returns the timestamp
func (e *Engine) MarkReviewed(ctx context.Context, id int64) (time.Time, error) {
	at := e.now().UTC().Truncate(time.Second)
	if err := e.review(ctx, id, at); err != nil {
		return time.Time{}, err
	}

	e.Invalidate()
	e.publishReviewed(ctx, []int64{id}, at)
	return at, nil
}

// MarkReviewedBulk reviews each id independently; failures never abort the batch
func (e *Engine) MarkReviewedBulk(ctx context.Context, ids []int64) models.BulkReviewResult {
	at := e.now().UTC().Truncate(time.Second)
	result := models.BulkReviewResult{Updated: []int64{}, Failed: []int64{}, ReviewedAt: at}

	for _, id := range ids {
		if err := e.review(ctx, id, at); err != nil {
			if !errors.Is(err, ErrNotFound) {
				logrus.Warnf("Failed to review content %d: %v", id, err)
			}
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Updated = append(result.Updated, id)
	}

	if len(result.Updated) > 0 {
		e.Invalidate()
		e.publishReviewed(ctx, result.Updated, at)
	}
	return result
}

func (e *Engine) review(ctx context.Context, id int64, at time.Time) error {
	if id <= 0 {
		return ErrNotFound
	}
	if _, err := e.content.Get(ctx, id); err != nil {
		return err
	}
	if err := e.reviews.SetReviewed(ctx, id, at); err != nil {
		return fmt.Errorf("failed to record review for %d: %w", id, err)
	}
	return nil
}

func (e *Engine) publishReviewed(ctx context.Context, ids []int64, at time.Time) {
	if e.sink == nil {
		return
	}
	if err := e.sink.PublishReviewed(ctx, ids, at); err != nil {
		logrus.Warnf("Failed to publish review event: %v", err)
	}
}
