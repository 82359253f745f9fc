package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/olekukonko/tablewriter/tw"
)

const dateLayout = "2006-01-02 15:04:05"

type metricRow struct {
	Metric string `json:"metric" yaml:"metric"`
	Value  string `json:"value" yaml:"value"`
}

// StatsReport is the structured form of the stats command
type StatsReport struct {
	Stats  models.StatsSnapshot `json:"stats" yaml:"stats"`
	Health models.HealthScore   `json:"health" yaml:"health"`
}

// Stats prints the aggregate counts and health grade
func (p *Printer) Stats(s models.StatsSnapshot, h models.HealthScore) error {
	if p.Format == FormatJSON || p.Format == FormatYAML {
		return p.structured(StatsReport{Stats: s, Health: h})
	}

	rows := []metricRow{
		{"Total Posts", itoa(s.Total)},
		{"Fresh Content", itoa(s.Fresh)},
		{"Aging Content", itoa(s.Aging)},
		{"Stale Content", itoa(s.Stale)},
		{"Stale Percentage", itoa(s.StalePercent) + "%"},
		{"Threshold (days)", itoa(s.ThresholdDays)},
		{"Health Score", fmt.Sprintf("%d (%s, %s)", h.Score, h.Grade, h.Label)},
	}
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.Metric, r.Value}
	}
	return p.rows([]string{"Metric", "Value"}, data, tw.AlignLeft)
}

type staleRow struct {
	ID          int64  `json:"ID" yaml:"ID"`
	Title       string `json:"title" yaml:"title"`
	Type        string `json:"type" yaml:"type"`
	DaysOld     int    `json:"days_old" yaml:"days_old"`
	LastUpdated string `json:"last_updated" yaml:"last_updated"`
	Status      string `json:"status" yaml:"status"`
}

// Stale prints a stale listing. An empty listing prints the all-clear line.
func (p *Printer) Stale(items []models.StaleItem) error {
	if len(items) == 0 {
		switch p.Format {
		case FormatJSON, FormatYAML:
			if err := p.structured([]staleRow{}); err != nil {
				return err
			}
		}
		p.Success(AllClear)
		return nil
	}

	if p.Format == FormatIDs {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = strconv.FormatInt(item.ID, 10)
		}
		_, err := fmt.Fprintln(p.Out, strings.Join(ids, " "))
		return err
	}

	rows := make([]staleRow, len(items))
	for i, item := range items {
		rows[i] = staleRow{
			ID:          item.ID,
			Title:       item.Title,
			Type:        item.Type,
			DaysOld:     item.DaysOld,
			LastUpdated: item.ModifiedAt.Format(dateLayout),
			Status:      string(item.Band),
		}
	}
	if p.Format == FormatJSON || p.Format == FormatYAML {
		return p.structured(rows)
	}

	titleWidth := p.titleWidth()
	data := make([][]string, len(rows))
	for i, r := range rows {
		title := r.Title
		if p.Format == FormatTable {
			title = truncate(title, titleWidth)
		}
		data[i] = []string{
			strconv.FormatInt(r.ID, 10),
			title,
			r.Type,
			itoa(r.DaysOld),
			r.LastUpdated,
			p.band(models.Band(r.Status)),
		}
	}
	return p.rows([]string{"ID", "Title", "Type", "Days Old", "Last Updated", "Status"}, data, tw.AlignLeft)
}

func (p *Printer) band(b models.Band) string {
	if p.Format != FormatTable || b == "" {
		return string(b)
	}
	label := strings.ToUpper(string(b[:1])) + string(b[1:])
	switch b {
	case models.BandStale:
		return p.colorize(StaleColor, label)
	case models.BandAging:
		return p.colorize(AgingColor, label)
	default:
		return p.colorize(FreshColor, label)
	}
}

// Check prints a single item classification
func (p *Printer) Check(f *models.Freshness) error {
	if p.Format == FormatJSON || p.Format == FormatYAML {
		return p.structured(f)
	}

	reviewed := "Never"
	if f.ReviewedAt != nil {
		reviewed = f.ReviewedAt.Format(dateLayout)
	}
	isStale := "No"
	if f.IsStale {
		isStale = "Yes"
	}
	data := [][]string{
		{"Post ID", strconv.FormatInt(f.ID, 10)},
		{"Title", f.Title},
		{"Type", f.Type},
		{"Evaluated Date", f.EvaluatedAt.Format(dateLayout)},
		{"Date Mode", string(f.DateMode)},
		{"Days Old", itoa(f.DaysOld)},
		{"Freshness Status", p.band(f.Band)},
		{"Is Stale", isStale},
		{"Threshold (days)", itoa(f.ThresholdDays)},
		{"Last Reviewed", reviewed},
	}
	if f.Excluded {
		data = append(data, []string{"Excluded", "Yes"})
	}
	if !f.Monitored {
		data = append(data, []string{"Monitored", "No"})
	}
	return p.rows([]string{"Field", "Value"}, data, tw.AlignLeft)
}

// Settings prints the settings record, one setting per row
func (p *Printer) Settings(s models.Settings) error {
	if p.Format == FormatJSON || p.Format == FormatYAML {
		return p.structured(s)
	}

	ids := make([]string, len(s.ExcludedIDs))
	for i, id := range s.ExcludedIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	types := make([]string, 0, len(s.TypeThresholds))
	for t := range s.TypeThresholds {
		types = append(types, t)
	}
	sort.Strings(types)
	overrides := make([]string, len(types))
	for i, t := range types {
		overrides[i] = fmt.Sprintf("%s=%d", t, s.TypeThresholds[t])
	}

	data := [][]string{
		{"threshold_days", itoa(s.ThresholdDays)},
		{"date_mode", string(s.DateMode)},
		{"content_types", strings.Join(s.ContentTypes, ", ")},
		{"excluded_ids", strings.Join(ids, ", ")},
		{"per_type_enabled", strconv.FormatBool(s.PerTypeEnabled)},
		{"type_thresholds", strings.Join(overrides, ", ")},
		{"show_in_list", strconv.FormatBool(s.ShowInList)},
		{"email_enabled", strconv.FormatBool(s.EmailEnabled)},
		{"email_frequency", string(s.EmailFrequency)},
		{"email_recipient", s.EmailRecipient},
		{"author_notifications", strconv.FormatBool(s.AuthorNotifications)},
		{"author_email_frequency", string(s.AuthorEmailFrequency)},
		{"author_min_stale", itoa(s.AuthorMinStale)},
	}
	return p.rows([]string{"Setting", "Value"}, data, tw.AlignLeft)
}

// Trends prints the trend history oldest first
func (p *Printer) Trends(points []models.TrendPoint) error {
	if p.Format == FormatJSON || p.Format == FormatYAML {
		if points == nil {
			points = []models.TrendPoint{}
		}
		return p.structured(points)
	}
	if len(points) == 0 {
		p.Warning("No trend data recorded yet.")
		return nil
	}

	data := make([][]string, len(points))
	for i, pt := range points {
		data[i] = []string{
			pt.Date,
			itoa(pt.Total),
			itoa(pt.Fresh),
			itoa(pt.Aging),
			itoa(pt.Stale),
			itoa(pt.StalePercent) + "%",
			fmt.Sprintf("%d (%s)", pt.Score, pt.Grade),
		}
	}
	return p.rows([]string{"Date", "Total", "Fresh", "Aging", "Stale", "Stale %", "Score"}, data, tw.AlignRight)
}

// Network prints per-tenant stats and the network totals
func (p *Printer) Network(n *models.NetworkStats) error {
	if p.Format == FormatJSON || p.Format == FormatYAML {
		return p.structured(n)
	}

	data := make([][]string, 0, len(n.Sites)+1)
	for _, s := range n.Sites {
		grade := s.Health.Grade
		if s.Error != "" {
			grade = p.colorize(StaleColor, "error")
		}
		data = append(data, []string{
			s.ID,
			s.Name,
			itoa(s.Stats.Total),
			itoa(s.Stats.Stale),
			itoa(s.Stats.StalePercent) + "%",
			grade,
		})
	}
	if p.Format == FormatTable {
		data = append(data, []string{"", "Network", itoa(n.Total), itoa(n.Stale), itoa(n.StalePercent) + "%", ""})
	}
	return p.rows([]string{"Site", "Name", "Total", "Stale", "Stale %", "Grade"}, data, tw.AlignLeft)
}

type networkStaleRow struct {
	Site     string `json:"site" yaml:"site"`
	staleRow `yaml:",inline"`
}

// NetworkStale prints the oldest stale items across tenants
func (p *Printer) NetworkStale(items []models.NetworkStaleItem) error {
	if len(items) == 0 {
		switch p.Format {
		case FormatJSON, FormatYAML:
			if err := p.structured([]networkStaleRow{}); err != nil {
				return err
			}
		}
		p.Success(AllClear)
		return nil
	}

	if p.Format == FormatIDs {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.SiteID + ":" + strconv.FormatInt(item.ID, 10)
		}
		_, err := fmt.Fprintln(p.Out, strings.Join(ids, " "))
		return err
	}

	rows := make([]networkStaleRow, len(items))
	for i, item := range items {
		rows[i] = networkStaleRow{
			Site: item.SiteID,
			staleRow: staleRow{
				ID:          item.ID,
				Title:       item.Title,
				Type:        item.Type,
				DaysOld:     item.DaysOld,
				LastUpdated: item.ModifiedAt.Format(dateLayout),
				Status:      string(item.Band),
			},
		}
	}
	if p.Format == FormatJSON || p.Format == FormatYAML {
		return p.structured(rows)
	}

	titleWidth := p.titleWidth()
	data := make([][]string, len(rows))
	for i, r := range rows {
		title := r.Title
		if p.Format == FormatTable {
			title = truncate(title, titleWidth)
		}
		data[i] = []string{
			r.Site,
			strconv.FormatInt(r.ID, 10),
			title,
			r.Type,
			itoa(r.DaysOld),
			r.LastUpdated,
			p.band(models.Band(r.Status)),
		}
	}
	return p.rows([]string{"Site", "ID", "Title", "Type", "Days Old", "Last Updated", "Status"}, data, tw.AlignLeft)
}

// Reviewed reports the outcome of a review command
func (p *Printer) Reviewed(result models.BulkReviewResult) {
	for _, id := range result.Failed {
		p.Warning("Post #%d not found. Skipping.", id)
	}
	if len(result.Updated) > 0 {
		p.Success("Marked %d post(s) as reviewed.", len(result.Updated))
	}
}
