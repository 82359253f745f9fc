package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
)

// Backend names a content database
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
	BackendMemory   Backend = "memory"
)

// ErrInvalidItem is returned when an item cannot be stored as given
var ErrInvalidItem = errors.New("invalid content item")

// ParseBackend validates a backend name
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendSQLite, BackendPostgres, BackendMySQL, BackendMemory:
		return b, nil
	case "":
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("unsupported content backend: %s", s)
	}
}

// Store is the content database the engine reads and the host syncs into
type Store interface {
	freshness.ContentStore
	freshness.ReviewStore

	Upsert(ctx context.Context, item models.ContentItem) error
	UpsertAuthor(ctx context.Context, author models.Author) error
	Delete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status string) error
	Close() error
}

// Open opens a store for the backend. SQL backends are migrated first.
func Open(ctx context.Context, backend Backend, dsn string) (Store, error) {
	if backend == BackendMemory {
		return NewMemoryStore(), nil
	}
	if _, err := Migrate(backend, dsn, -1); err != nil {
		return nil, err
	}
	return OpenSQL(ctx, backend, dsn)
}

func validate(item models.ContentItem) error {
	if item.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidItem)
	}
	if item.Type == "" {
		return fmt.Errorf("%w: content type is required", ErrInvalidItem)
	}
	if item.PublishedAt.IsZero() || item.ModifiedAt.IsZero() {
		return fmt.Errorf("%w: published and modified timestamps are required", ErrInvalidItem)
	}
	return nil
}
