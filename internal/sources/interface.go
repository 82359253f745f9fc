package sources

import (
	"context"

	"github.com/cfmlabs/freshness-monitor/internal/models"
)

// Source interface defines the contract for host content sources
type Source interface {
	GetName() string
	IsEnabled() bool
	FetchAuthors(ctx context.Context) ([]models.Author, error)
	FetchContent(ctx context.Context, types []string) ([]models.ContentItem, error)
}
