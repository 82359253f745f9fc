package settings

import (
	"fmt"
	"net/mail"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	defaultThreshold = 180
	maxTypeThreshold = 3650
	maxAuthorMin     = 100
)

var typeKey = regexp.MustCompile(`[^a-z0-9_\-]`)

// Defaults returns the settings created on first activation
func Defaults() models.Settings {
	return models.Settings{
		ThresholdDays:        defaultThreshold,
		DateMode:             models.DateModified,
		ContentTypes:         []string{"post"},
		ExcludedIDs:          []int64{},
		TypeThresholds:       map[string]int{},
		ShowInList:           true,
		EmailFrequency:       models.FrequencyWeekly,
		AuthorEmailFrequency: models.FrequencyWeekly,
		AuthorMinStale:       1,
	}
}

// Sanitize normalizes a settings record so every field is usable as is
func Sanitize(in models.Settings) models.Settings {
	out := in

	if out.ThresholdDays < 1 {
		out.ThresholdDays = defaultThreshold
	}

	switch out.DateMode {
	case models.DateModified, models.DatePublished, models.DateOldest:
	default:
		out.DateMode = models.DateModified
	}

	out.ContentTypes = sanitizeTypes(in.ContentTypes)
	out.ExcludedIDs = sanitizeIDs(in.ExcludedIDs)

	out.TypeThresholds = make(map[string]int, len(in.TypeThresholds))
	for t, days := range in.TypeThresholds {
		key := sanitizeKey(t)
		if key == "" || days < 1 || days > maxTypeThreshold {
			continue
		}
		out.TypeThresholds[key] = days
	}

	out.EmailFrequency = sanitizeFrequency(in.EmailFrequency)
	out.AuthorEmailFrequency = sanitizeFrequency(in.AuthorEmailFrequency)

	out.EmailRecipient = ""
	if addr, err := mail.ParseAddress(strings.TrimSpace(in.EmailRecipient)); err == nil {
		out.EmailRecipient = addr.Address
	}

	out.AuthorMinStale = max(1, min(maxAuthorMin, in.AuthorMinStale))
	return out
}

func sanitizeKey(s string) string {
	return typeKey.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

func sanitizeTypes(types []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range types {
		key := sanitizeKey(t)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	if len(out) == 0 {
		out = append(out, "post")
	}
	return out
}

func sanitizeIDs(ids []int64) []int64 {
	seen := map[int64]bool{}
	out := []int64{}
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sanitizeFrequency(f models.Frequency) models.Frequency {
	switch f {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
		return f
	}
	return models.FrequencyWeekly
}

// ParseIDList parses a comma separated identifier list, skipping blanks
func ParseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Set assigns one field by its JSON name from a string value
func Set(s *models.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s expects true or false", key)
		}
		return b, nil
	}

	var err error
	switch key {
	case "threshold_days":
		s.ThresholdDays, err = strconv.Atoi(value)
	case "date_mode":
		s.DateMode = models.DateMode(value)
	case "content_types":
		s.ContentTypes = strings.Split(value, ",")
	case "excluded_ids":
		s.ExcludedIDs, err = ParseIDList(value)
	case "per_type_enabled":
		s.PerTypeEnabled, err = parseBool()
	case "show_in_list":
		s.ShowInList, err = parseBool()
	case "email_enabled":
		s.EmailEnabled, err = parseBool()
	case "email_frequency":
		s.EmailFrequency = models.Frequency(value)
	case "email_recipient":
		s.EmailRecipient = value
	case "author_notifications":
		s.AuthorNotifications, err = parseBool()
	case "author_email_frequency":
		s.AuthorEmailFrequency = models.Frequency(value)
	case "author_min_stale":
		s.AuthorMinStale, err = strconv.Atoi(value)
	default:
		if t, ok := strings.CutPrefix(key, "type_thresholds."); ok {
			days, convErr := strconv.Atoi(value)
			if convErr != nil {
				return fmt.Errorf("%s expects a number of days", key)
			}
			if s.TypeThresholds == nil {
				s.TypeThresholds = map[string]int{}
			}
			if days <= 0 {
				delete(s.TypeThresholds, t)
			} else {
				s.TypeThresholds[t] = days
			}
			return nil
		}
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// LoadSeed reads an initial settings record from a YAML file
func LoadSeed(path string) (*models.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings seed: %w", err)
	}
	seed := Defaults()
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse settings seed: %w", err)
	}
	sanitized := Sanitize(seed)
	return &sanitized, nil
}
