package freshness

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/models"
)

// ErrNotFound is returned when a content identifier does not exist
var ErrNotFound = errors.New("content not found")

// OrderField is a sortable content column
type OrderField string

const (
	OrderModified OrderField = "modified"
	OrderDate     OrderField = "date"
	OrderTitle    OrderField = "title"
	OrderAuthor   OrderField = "author"
	OrderID       OrderField = "id"
)

// ParseOrderField validates an orderby value
func ParseOrderField(s string) (OrderField, bool) {
	switch f := OrderField(strings.ToLower(s)); f {
	case OrderModified, OrderDate, OrderTitle, OrderAuthor, OrderID:
		return f, true
	}
	return "", false
}

// Filter narrows the content set a store operates on.
// StaleBefore, when set, keeps only items whose selected date (per DateMode)
// is at or before it and that have not been reviewed after it.
type Filter struct {
	Status      string
	Types       []string
	ExcludeIDs  []int64
	IncludeIDs  []int64
	AuthorID    int64
	DateMode    models.DateMode
	StaleBefore *time.Time
}

// Page is a sort order plus an optional window. Limit 0 returns everything.
type Page struct {
	OrderBy OrderField
	Desc    bool
	Limit   int
	Offset  int
}

// Matches evaluates the filter against a single item in memory
func (f Filter) Matches(item models.ContentItem) bool {
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if len(f.Types) > 0 && !containsString(f.Types, item.Type) {
		return false
	}
	if containsID(f.ExcludeIDs, item.ID) {
		return false
	}
	if f.IncludeIDs != nil && !containsID(f.IncludeIDs, item.ID) {
		return false
	}
	if f.AuthorID != 0 && item.AuthorID != f.AuthorID {
		return false
	}
	if f.StaleBefore != nil {
		cutoff := *f.StaleBefore
		// any instant after the cutoff stands in for "now" on missing dates
		if EffectiveDate(item, f.DateMode, cutoff.Add(time.Nanosecond)).After(cutoff) {
			return false
		}
	}
	return true
}

// SortItems orders items in place the way a store orders rows for a Page
func SortItems(items []models.ContentItem, p Page) {
	less := func(a, b models.ContentItem) int {
		switch p.OrderBy {
		case OrderDate:
			return a.PublishedAt.Compare(b.PublishedAt)
		case OrderTitle:
			return strings.Compare(a.Title, b.Title)
		case OrderAuthor:
			return compareInt(a.AuthorID, b.AuthorID)
		case OrderID:
			return 0
		default:
			return a.ModifiedAt.Compare(b.ModifiedAt)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := less(items[i], items[j])
		if c == 0 {
			c = compareInt(items[i].ID, items[j].ID)
		}
		if p.Desc {
			return c > 0
		}
		return c < 0
	})
}

// ContentStore reads the host content set
type ContentStore interface {
	Count(ctx context.Context, f Filter) (int, error)
	IDs(ctx context.Context, f Filter) ([]int64, error)
	Find(ctx context.Context, f Filter, p Page) ([]models.ContentItem, error)
	Get(ctx context.Context, id int64) (*models.ContentItem, error)
	Authors(ctx context.Context, ids []int64) (map[int64]models.Author, error)
}

// ReviewStore persists review timestamps
type ReviewStore interface {
	SetReviewed(ctx context.Context, id int64, at time.Time) error
}

// IDLister is the subset of ContentStore used by the per-type fan-out
type IDLister interface {
	IDs(ctx context.Context, f Filter) ([]int64, error)
}

// StaleIDsByType collects the stale identifiers of every rule's type using
// that type's own cutoff and returns their union in rule order.
func StaleIDsByType(ctx context.Context, lister IDLister, base Filter, rules []TypeRule, now time.Time) ([]int64, error) {
	seen := make(map[int64]bool)
	var union []int64

	for _, rule := range rules {
		f := base
		f.Types = []string{rule.Type}
		cutoff := Cutoff(now, rule.ThresholdDays)
		f.StaleBefore = &cutoff

		ids, err := lister.IDs(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			union = append(union, id)
		}
	}

	return union, nil
}

func totalPages(total, perPage int) int {
	if total == 0 {
		return 0
	}
	if perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(list []int64, id int64) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
