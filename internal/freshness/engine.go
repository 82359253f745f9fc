// Package freshness classifies content by age and answers stale-content queries.
package freshness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultCacheTTL is how long a computed stats snapshot is served from cache
const DefaultCacheTTL = 15 * time.Minute

// DefaultTenant is the cache namespace of a single-site engine
const DefaultTenant = "default"

// Cache stores opaque values by key with a time to live
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

// Links builds edit and view URLs for content items
type Links interface {
	EditURL(id int64) string
	ViewURL(id int64) string
}

// ReviewSink is notified after review timestamps are written
type ReviewSink interface {
	PublishReviewed(ctx context.Context, ids []int64, at time.Time) error
}

// SiteLinks derives item URLs from a site base URL
type SiteLinks struct {
	BaseURL string
}

func (l SiteLinks) EditURL(id int64) string {
	return fmt.Sprintf("%s/content/%d/edit", strings.TrimRight(l.BaseURL, "/"), id)
}

func (l SiteLinks) ViewURL(id int64) string {
	return fmt.Sprintf("%s/content/%d", strings.TrimRight(l.BaseURL, "/"), id)
}

// Engine is the freshness engine. Settings are passed into every call.
type Engine struct {
	content  ContentStore
	reviews  ReviewStore
	cache    Cache
	links    Links
	sink     ReviewSink
	now      func() time.Time
	cacheTTL time.Duration
	tenant   string
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the engine clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCacheTTL overrides the stats cache lifetime
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithLinks sets the URL builder used to enrich items
func WithLinks(links Links) Option {
	return func(e *Engine) { e.links = links }
}

// WithReviewSink sets the receiver of review notifications
func WithReviewSink(sink ReviewSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// NewEngine creates an engine over the given stores and cache
func NewEngine(content ContentStore, reviews ReviewStore, cache Cache, opts ...Option) *Engine {
	e := &Engine{
		content:  content,
		reviews:  reviews,
		cache:    cache,
		links:    SiteLinks{},
		now:      time.Now,
		cacheTTL: DefaultCacheTTL,
		tenant:   DefaultTenant,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithTenant returns a copy of the engine whose cache entries are namespaced
// under tenant. The stores are shared with the receiver.
func (e *Engine) WithTenant(tenant string) *Engine {
	clone := *e
	clone.tenant = tenant
	return &clone
}

// Tenant returns the cache namespace of the engine
func (e *Engine) Tenant() string {
	return e.tenant
}

// ListOptions describes one page of a stale listing
type ListOptions struct {
	PerPage  int // 0 or less returns every stale item on one page
	Page     int
	OrderBy  OrderField
	Order    string
	Types    []string // restricts the monitored types; must be a subset
	AuthorID int64
}

func (o ListOptions) page() Page {
	p := Page{OrderBy: o.OrderBy, Desc: strings.EqualFold(o.Order, "desc")}
	if p.OrderBy == "" {
		p.OrderBy = OrderModified
	}
	if o.PerPage > 0 {
		page := o.Page
		if page < 1 {
			page = 1
		}
		p.Limit = o.PerPage
		p.Offset = (page - 1) * o.PerPage
	}
	return p
}

// baseFilter is the monitored, published, non-excluded content set
func baseFilter(r Resolver, types []string) Filter {
	return Filter{
		Status:     models.StatusPublished,
		Types:      types,
		ExcludeIDs: append([]int64(nil), r.settings.ExcludedIDs...),
		DateMode:   r.DateMode(),
	}
}

func scopedRules(r Resolver, only []string) []TypeRule {
	rules := r.Rules()
	if len(only) == 0 {
		return rules
	}
	scoped := rules[:0:0]
	for _, rule := range rules {
		if containsString(only, rule.Type) {
			scoped = append(scoped, rule)
		}
	}
	return scoped
}

func ruleTypes(rules []TypeRule) []string {
	types := make([]string, 0, len(rules))
	for _, r := range rules {
		types = append(types, r.Type)
	}
	return types
}

// ListStale returns one page of stale content.
// In per-type mode the stale set is collected per type first and then paged.
func (e *Engine) ListStale(ctx context.Context, settings models.Settings, opts ListOptions) (*models.StalePage, error) {
	now := e.now()
	r := NewResolver(settings)
	rules := scopedRules(r, opts.Types)
	page := opts.page()

	result := &models.StalePage{Items: []models.StaleItem{}, PerPage: opts.PerPage, Page: max(opts.Page, 1)}
	if len(rules) == 0 {
		return result, nil
	}

	base := baseFilter(r, ruleTypes(rules))
	base.AuthorID = opts.AuthorID

	var (
		items []models.ContentItem
		total int
		err   error
	)

	if r.PerType() {
		ids, err := StaleIDsByType(ctx, e.content, base, rules, now)
		if err != nil {
			return nil, fmt.Errorf("failed to collect stale ids: %w", err)
		}
		total = len(ids)
		if total > 0 {
			items, err = e.content.Find(ctx, Filter{Status: models.StatusPublished, IncludeIDs: ids}, page)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch stale page: %w", err)
			}
		}
	} else {
		cutoff := Cutoff(now, r.Global())
		f := base
		f.StaleBefore = &cutoff

		total, err = e.content.Count(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("failed to count stale content: %w", err)
		}
		if total > 0 {
			items, err = e.content.Find(ctx, f, page)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch stale page: %w", err)
			}
		}
	}

	enriched, err := e.enrich(ctx, r, items, now)
	if err != nil {
		return nil, err
	}

	result.Items = enriched
	result.Total = total
	result.TotalPages = totalPages(total, opts.PerPage)
	return result, nil
}

func (e *Engine) enrich(ctx context.Context, r Resolver, items []models.ContentItem, now time.Time) ([]models.StaleItem, error) {
	out := make([]models.StaleItem, 0, len(items))
	if len(items) == 0 {
		return out, nil
	}

	authorIDs := make([]int64, 0, len(items))
	for _, item := range items {
		authorIDs = append(authorIDs, item.AuthorID)
	}
	authors, err := e.content.Authors(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}

	mode := r.DateMode()
	for _, item := range items {
		threshold := r.Resolve(item.Type)
		days := AgeDays(SelectDate(item, mode, now), now)
		out = append(out, models.StaleItem{
			ID:            item.ID,
			Title:         item.Title,
			Type:          item.Type,
			AuthorID:      item.AuthorID,
			AuthorName:    authors[item.AuthorID].DisplayName,
			PublishedAt:   item.PublishedAt,
			ModifiedAt:    item.ModifiedAt,
			DaysOld:       days,
			DaysOldText:   DaysAgoText(days),
			ThresholdDays: threshold,
			Band:          Classify(AgeDays(EffectiveDate(item, mode, now), now), threshold),
			ReviewedAt:    item.ReviewedAt,
			EditURL:       e.links.EditURL(item.ID),
			ViewURL:       e.links.ViewURL(item.ID),
		})
	}
	return out, nil
}

// Check classifies a single item
func (e *Engine) Check(ctx context.Context, settings models.Settings, id int64) (*models.Freshness, error) {
	item, err := e.content.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.now()
	r := NewResolver(settings)
	mode := r.DateMode()
	threshold := r.Resolve(item.Type)
	selected := SelectDate(*item, mode, now)
	days := AgeDays(selected, now)
	band := Classify(AgeDays(EffectiveDate(*item, mode, now), now), threshold)

	f := &models.Freshness{
		ID:            item.ID,
		Title:         item.Title,
		Type:          item.Type,
		Band:          band,
		DaysOld:       days,
		DaysOldText:   DaysAgoText(days),
		ThresholdDays: threshold,
		DateMode:      mode,
		EvaluatedAt:   selected,
		ReviewedAt:    item.ReviewedAt,
		Excluded:      r.Excluded(item.ID),
		Monitored:     r.Monitored(item.Type),
	}
	f.IsStale = band == models.BandStale && f.Monitored && !f.Excluded && item.Status == models.StatusPublished
	return f, nil
}

// HandleContentEvent invalidates cached stats for a content mutation.
// Revisions do not affect the published set and are ignored.
func (e *Engine) HandleContentEvent(ev models.ContentEvent) {
	if ev.IsRevision {
		return
	}
	logrus.Debugf("Content %d %s, invalidating stats for %s", ev.ID, ev.Kind, e.tenant)
	e.Invalidate()
}
