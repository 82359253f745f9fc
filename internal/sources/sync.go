package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/content"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// Writer receives imported content
type Writer interface {
	Upsert(ctx context.Context, item models.ContentItem) error
	UpsertAuthor(ctx context.Context, author models.Author) error
}

// SyncResult counts what one sync run imported
type SyncResult struct {
	Source   string        `json:"source"`
	Authors  int           `json:"authors"`
	Items    int           `json:"items"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Sync copies authors and content of the given types from src into w.
// Items the store rejects as invalid are counted as skipped.
func Sync(ctx context.Context, src Source, w Writer, types []string) (*SyncResult, error) {
	if !src.IsEnabled() {
		return nil, fmt.Errorf("source %s is not configured", src.GetName())
	}

	start := time.Now()
	result := &SyncResult{Source: src.GetName()}

	authors, err := src.FetchAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch authors from %s: %w", src.GetName(), err)
	}
	for _, a := range authors {
		if err := w.UpsertAuthor(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to store author %d: %w", a.ID, err)
		}
		result.Authors++
	}

	items, err := src.FetchContent(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content from %s: %w", src.GetName(), err)
	}
	for _, item := range items {
		err := w.Upsert(ctx, item)
		if errors.Is(err, content.ErrInvalidItem) {
			logrus.Warnf("Skipping content %d: %v", item.ID, err)
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Items++
	}

	result.Duration = time.Since(start)
	logrus.Infof("Synced %d items and %d authors from %s in %v", result.Items, result.Authors, result.Source, result.Duration)
	return result, nil
}
