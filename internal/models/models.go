package models

import "time"

// DateMode selects which timestamp of a content item is evaluated
type DateMode string

const (
	DateModified  DateMode = "modified"
	DatePublished DateMode = "published"
	DateOldest    DateMode = "oldest"
)

// Band is the freshness classification of a content item
type Band string

const (
	BandFresh Band = "fresh"
	BandAging Band = "aging"
	BandStale Band = "stale"
)

// Frequency is the cadence of a scheduled digest
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// StatusPublished is the only content status the engine considers
const StatusPublished = "publish"

// ContentItem is a piece of host content (post, page, ...)
type ContentItem struct {
	ID          int64     `json:"id" yaml:"id"`
	Type        string    `json:"type" yaml:"type"`
	Status      string    `json:"status" yaml:"status"`
	Title       string    `json:"title" yaml:"title"`
	AuthorID    int64     `json:"author_id" yaml:"author_id"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	ModifiedAt  time.Time `json:"modified_at" yaml:"modified_at"`
	// ReviewedAt is populated by stores that join the review ledger.
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" yaml:"reviewed_at,omitempty"`
}

// Author is the owner of content items
type Author struct {
	ID          int64  `json:"id" db:"id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Email       string `json:"email" db:"email"`
	CanEdit     bool   `json:"can_edit" db:"can_edit"`
}

// Settings holds the global monitoring configuration
type Settings struct {
	ThresholdDays  int            `json:"threshold_days" yaml:"threshold_days"`
	DateMode       DateMode       `json:"date_mode" yaml:"date_mode"`
	ContentTypes   []string       `json:"content_types" yaml:"content_types"`
	ExcludedIDs    []int64        `json:"excluded_ids" yaml:"excluded_ids"`
	TypeThresholds map[string]int `json:"type_thresholds" yaml:"type_thresholds"`
	PerTypeEnabled bool           `json:"per_type_enabled" yaml:"per_type_enabled"`
	ShowInList     bool           `json:"show_in_list" yaml:"show_in_list"`

	EmailEnabled   bool      `json:"email_enabled" yaml:"email_enabled"`
	EmailFrequency Frequency `json:"email_frequency" yaml:"email_frequency"`
	EmailRecipient string    `json:"email_recipient" yaml:"email_recipient"`

	AuthorNotifications  bool      `json:"author_notifications" yaml:"author_notifications"`
	AuthorEmailFrequency Frequency `json:"author_email_frequency" yaml:"author_email_frequency"`
	AuthorMinStale       int       `json:"author_min_stale" yaml:"author_min_stale"`
}

// StatsSnapshot is the aggregate classification of the monitored content set
type StatsSnapshot struct {
	Total          int       `json:"total"`
	Fresh          int       `json:"fresh"`
	Aging          int       `json:"aging"`
	Stale          int       `json:"stale"`
	StalePercent   int       `json:"stale_percent"`
	ThresholdDays  int       `json:"threshold_days"`
	PerTypeEnabled bool      `json:"per_type_enabled"`
	ComputedAt     time.Time `json:"computed_at"`
}

// HealthScore is the letter-graded summary of a snapshot
type HealthScore struct {
	Score int    `json:"score"`
	Grade string `json:"grade"`
	Label string `json:"label"`
	Class string `json:"class"`
}

// TrendPoint is one daily snapshot in the trend history
type TrendPoint struct {
	Date         string `json:"date"`
	Total        int    `json:"total"`
	Fresh        int    `json:"fresh"`
	Aging        int    `json:"aging"`
	Stale        int    `json:"stale"`
	StalePercent int    `json:"stale_percent"`
	Score        int    `json:"score"`
	Grade        string `json:"grade"`
}

// StaleItem is a content item enriched for presentation
type StaleItem struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	AuthorID      int64      `json:"author_id"`
	AuthorName    string     `json:"author"`
	PublishedAt   time.Time  `json:"published_at"`
	ModifiedAt    time.Time  `json:"modified_at"`
	DaysOld       int        `json:"days_old"`
	DaysOldText   string     `json:"days_old_text"`
	ThresholdDays int        `json:"threshold_days"`
	Band          Band       `json:"status"`
	ReviewedAt    *time.Time `json:"last_reviewed"`
	EditURL       string     `json:"edit_url"`
	ViewURL       string     `json:"view_url"`
}

// StalePage is one page of stale items plus out-of-band totals
type StalePage struct {
	Items      []StaleItem `json:"items"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
}

// Freshness is the single-item classification result
type Freshness struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	IsStale       bool       `json:"is_stale"`
	Band          Band       `json:"status"`
	DaysOld       int        `json:"days_old"`
	DaysOldText   string     `json:"days_old_text"`
	ThresholdDays int        `json:"threshold_days"`
	DateMode      DateMode   `json:"date_mode"`
	EvaluatedAt   time.Time  `json:"evaluated_date"`
	ReviewedAt    *time.Time `json:"last_reviewed"`
	Excluded      bool       `json:"excluded"`
	Monitored     bool       `json:"monitored"`
}

// BulkReviewResult partitions a bulk review into successes and failures
type BulkReviewResult struct {
	Updated    []int64   `json:"updated"`
	Failed     []int64   `json:"failed"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// ContentEventKind names a content mutation reported by the host
type ContentEventKind string

const (
	ContentCreated   ContentEventKind = "created"
	ContentUpdated   ContentEventKind = "updated"
	ContentDeleted   ContentEventKind = "deleted"
	ContentTrashed   ContentEventKind = "trashed"
	ContentUntrashed ContentEventKind = "untrashed"
)

// ContentEvent is a content mutation notification
type ContentEvent struct {
	Kind       ContentEventKind `json:"kind"`
	ID         int64            `json:"id"`
	IsRevision bool             `json:"is_revision,omitempty"`
	Item       *ContentItem     `json:"item,omitempty"`
}

// AuthorStale is an author's stale count
type AuthorStale struct {
	Author Author `json:"author"`
	Count  int    `json:"count"`
}

// Digest is the admin stale-content summary
type Digest struct {
	SiteName    string        `json:"site_name"`
	SiteURL     string        `json:"site_url"`
	Recipient   string        `json:"recipient"`
	Test        bool          `json:"test"`
	GeneratedAt time.Time     `json:"generated_at"`
	Stats       StatsSnapshot `json:"stats"`
	Health      HealthScore   `json:"health"`
	Items       []StaleItem   `json:"items"`
	ListURL     string        `json:"list_url"`
}

// AuthorDigest is an author's personal stale-content summary
type AuthorDigest struct {
	SiteName      string      `json:"site_name"`
	SiteURL       string      `json:"site_url"`
	Author        Author      `json:"author"`
	StaleCount    int         `json:"stale_count"`
	ThresholdDays int         `json:"threshold_days"`
	GeneratedAt   time.Time   `json:"generated_at"`
	Items         []StaleItem `json:"items"`
	ListURL       string      `json:"list_url"`
}

// SiteStats is one tenant's contribution to network stats
type SiteStats struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	URL    string        `json:"url"`
	Stats  StatsSnapshot `json:"stats"`
	Health HealthScore   `json:"health"`
	Error  string        `json:"error,omitempty"`
}

// NetworkStats aggregates stats across tenants
type NetworkStats struct {
	Sites        []SiteStats `json:"sites" yaml:"sites"`
	TotalSites   int         `json:"total_sites" yaml:"total_sites"`
	Total        int         `json:"total" yaml:"total"`
	Fresh        int         `json:"fresh" yaml:"fresh"`
	Aging        int         `json:"aging" yaml:"aging"`
	Stale        int         `json:"stale" yaml:"stale"`
	StalePercent int         `json:"stale_percent" yaml:"stale_percent"`
	ComputedAt   time.Time   `json:"computed_at" yaml:"computed_at"`
}

// NetworkStaleItem is a stale item tagged with its tenant
type NetworkStaleItem struct {
	SiteID    string `json:"site_id" yaml:"site_id"`
	SiteName  string `json:"site_name" yaml:"site_name"`
	StaleItem `yaml:",inline"`
}
