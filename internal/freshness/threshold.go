package freshness

import "github.com/cfmlabs/freshness-monitor/internal/models"

// DefaultThresholdDays is used when the configured global threshold is unusable
const DefaultThresholdDays = 180

// DefaultContentType is monitored when settings name no content types
const DefaultContentType = "post"

// TypeRule pairs a monitored content type with its effective threshold
type TypeRule struct {
	Type          string `json:"type"`
	ThresholdDays int    `json:"threshold_days"`
}

// Resolver resolves staleness thresholds from a settings record
type Resolver struct {
	settings models.Settings
}

// NewResolver creates a resolver for the given settings
func NewResolver(settings models.Settings) Resolver {
	return Resolver{settings: settings}
}

// Global returns the global threshold, falling back to DefaultThresholdDays
func (r Resolver) Global() int {
	if r.settings.ThresholdDays < 1 {
		return DefaultThresholdDays
	}
	return r.settings.ThresholdDays
}

// PerType reports whether per-type overrides are active
func (r Resolver) PerType() bool {
	return r.settings.PerTypeEnabled
}

// Resolve returns the threshold in days for a content type
func (r Resolver) Resolve(contentType string) int {
	if r.settings.PerTypeEnabled {
		if days, ok := r.settings.TypeThresholds[contentType]; ok && days > 0 {
			return days
		}
	}
	return r.Global()
}

// Types returns the monitored content types, deduplicated, in configured order
func (r Resolver) Types() []string {
	seen := make(map[string]bool, len(r.settings.ContentTypes))
	types := make([]string, 0, len(r.settings.ContentTypes))
	for _, t := range r.settings.ContentTypes {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	if len(types) == 0 {
		types = append(types, DefaultContentType)
	}
	return types
}

// Rules resolves every monitored type once for a call
func (r Resolver) Rules() []TypeRule {
	types := r.Types()
	rules := make([]TypeRule, 0, len(types))
	for _, t := range types {
		rules = append(rules, TypeRule{Type: t, ThresholdDays: r.Resolve(t)})
	}
	return rules
}

// Monitored reports whether a content type is in the monitored set
func (r Resolver) Monitored(contentType string) bool {
	for _, t := range r.Types() {
		if t == contentType {
			return true
		}
	}
	return false
}

// Excluded reports whether an identifier is on the exclusion list
func (r Resolver) Excluded(id int64) bool {
	for _, ex := range r.settings.ExcludedIDs {
		if ex == id {
			return true
		}
	}
	return false
}

// DateMode returns the configured date mode, defaulting to modified
func (r Resolver) DateMode() models.DateMode {
	return NormalizeDateMode(r.settings.DateMode)
}
