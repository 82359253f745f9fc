package content

import (
	"context"
	"sync"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
)

// MemoryStore keeps content in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[int64]models.ContentItem
	authors map[int64]models.Author
	reviews map[int64]time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[int64]models.ContentItem),
		authors: make(map[int64]models.Author),
		reviews: make(map[int64]time.Time),
	}
}

func (s *MemoryStore) matching(f freshness.Filter) []models.ContentItem {
	var out []models.ContentItem
	for _, item := range s.items {
		if at, ok := s.reviews[item.ID]; ok {
			reviewed := at
			item.ReviewedAt = &reviewed
		}
		if f.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

func (s *MemoryStore) Count(ctx context.Context, f freshness.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(f)), nil
}

func (s *MemoryStore) IDs(ctx context.Context, f freshness.Filter) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.matching(f)
	freshness.SortItems(items, freshness.Page{OrderBy: freshness.OrderID})
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (s *MemoryStore) Find(ctx context.Context, f freshness.Filter, p freshness.Page) ([]models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.matching(f)
	freshness.SortItems(items, p)
	if p.Offset >= len(items) {
		return []models.ContentItem{}, nil
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, freshness.ErrNotFound
	}
	if at, ok := s.reviews[id]; ok {
		reviewed := at
		item.ReviewedAt = &reviewed
	}
	return &item, nil
}

func (s *MemoryStore) Authors(ctx context.Context, ids []int64) (map[int64]models.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]models.Author, len(ids))
	for _, id := range ids {
		if a, ok := s.authors[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (s *MemoryStore) SetReviewed(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return freshness.ErrNotFound
	}
	s.reviews[id] = at
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, item models.ContentItem) error {
	if err := validate(item); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ReviewedAt = nil
	s.items[item.ID] = item
	return nil
}

func (s *MemoryStore) UpsertAuthor(ctx context.Context, author models.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors[author.ID] = author
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return freshness.ErrNotFound
	}
	delete(s.items, id)
	delete(s.reviews, id)
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return freshness.ErrNotFound
	}
	item.Status = status
	s.items[id] = item
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
