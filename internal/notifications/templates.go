package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/cfmlabs/freshness-monitor/internal/models"
)

const digestHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Content Freshness Report</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; margin: 0; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #0073aa; color: #fff; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { padding: 20px; background: #f9f9f9; }
        .stat-box { text-align: center; padding: 20px 15px; background: #fff; border: 1px solid #e0e0e0; }
        .stat-number { font-size: 36px; font-weight: bold; color: #0073aa; display: block; }
        .stat-label { font-size: 12px; color: #666; text-transform: uppercase; }
        .stale-number { color: #d63638; }
        .post-item { padding: 12px 0; border-bottom: 1px solid #eee; }
        .post-title { font-weight: 600; color: #0073aa; text-decoration: none; }
        .post-meta { font-size: 12px; color: #666; }
        .button { display: inline-block; background: #0073aa; color: #fff; padding: 14px 28px; text-decoration: none; border-radius: 5px; }
        .footer { text-align: center; padding: 20px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>Content Freshness Report</h1>
        <p class="site-name">{{.SiteName}}</p>
    </div>
    <div class="content">
        {{if .Test}}<p class="test-notice">This is a test email.</p>{{end}}
        <p>Here is your content freshness summary:</p>
        <table class="stats-table" cellpadding="0" cellspacing="10" align="center">
            <tr>
                <td class="stat-box" width="33%"><span class="stat-number" id="stat-total">{{.Stats.Total}}</span><span class="stat-label">Total Posts</span></td>
                <td class="stat-box" width="33%"><span class="stat-number stale-number" id="stat-stale">{{.Stats.Stale}}</span><span class="stat-label">Stale Posts</span></td>
                <td class="stat-box" width="33%"><span class="stat-number" id="stat-percent">{{.Stats.StalePercent}}%</span><span class="stat-label">Need Attention</span></td>
            </tr>
        </table>
        <p class="health {{.Health.Class}}">Health score: {{.Health.Score}} ({{.Health.Grade}}, {{.Health.Label}})</p>
        <p>Posts are considered stale if not updated in the last {{.Stats.ThresholdDays}} days.</p>
        {{if .Items}}
        <div class="post-list">
            <h3>Posts Needing Attention</h3>
            {{range .Items}}
            <div class="post-item">
                <a href="{{.EditURL}}" class="post-title">{{.Title}}</a>
                <div class="post-meta">{{.Type | title}} &bull; Last updated {{.DaysOldText}} &bull; By {{.AuthorName}}</div>
            </div>
            {{end}}
        </div>
        {{end}}
        {{if .ListURL}}<p style="text-align: center;"><a href="{{.ListURL}}" class="button">View All Stale Content</a></p>{{end}}
    </div>
    <div class="footer">
        <p>This email was sent by Content Freshness Monitor.</p>
    </div>
</div>
</body>
</html>
`

const authorDigestHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your Content Needs Attention</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; margin: 0; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #0073aa; color: #fff; padding: 20px; text-align: center; }
        .post-item { padding: 12px 0; border-bottom: 1px solid #eee; }
        .post-title { font-weight: 600; color: #0073aa; }
        .post-meta { font-size: 12px; color: #666; }
        .tips { background: #fff8e5; padding: 15px; border-left: 4px solid #dba617; }
        .footer { text-align: center; padding: 20px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>Your Content Needs Attention</h1>
        <p class="site-name">{{.SiteName}}</p>
    </div>
    <p class="greeting">Hi {{.Author.DisplayName}},</p>
    <p>Some of your content hasn't been updated in a while. You have <strong class="stale-count">{{.StaleCount}}</strong> posts older than {{.ThresholdDays}} days.</p>
    <div class="post-list">
        <h3>Posts Needing Your Attention</h3>
        {{range .Items}}
        <div class="post-item">
            <span class="post-title">{{.Title}}</span>
            <div class="post-meta">{{.Type | title}} &bull; Last updated {{.DaysOldText}}</div>
            <a href="{{.EditURL}}" class="edit-link">Edit</a> | <a href="{{.ViewURL}}" class="view-link">View</a>
        </div>
        {{end}}
    </div>
    <div class="tips">
        <div class="tips-title">Quick Refresh Tips:</div>
        <ul>
            <li>Update statistics and data references</li>
            <li>Add new insights or recent developments</li>
            <li>Check for broken links</li>
            <li>Improve readability and formatting</li>
        </ul>
    </div>
    <div class="footer">
        <p>This email was sent by Content Freshness Monitor.</p>
        <p>Contact your site administrator to adjust notification settings.</p>
    </div>
</div>
</body>
</html>
`

var funcs = template.FuncMap{
	"title": capitalize,
}

var (
	digestTemplate       = template.Must(template.New("digest").Funcs(funcs).Parse(digestHTML))
	authorDigestTemplate = template.Must(template.New("author").Funcs(funcs).Parse(authorDigestHTML))
)

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// RenderDigestHTML renders the admin digest body
func RenderDigestHTML(d *models.Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderAuthorDigestHTML renders the author digest body
func RenderAuthorDigestHTML(d *models.AuthorDigest) (string, error) {
	var buf bytes.Buffer
	if err := authorDigestTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderDigestText renders the plain text alternative of the admin digest
func RenderDigestText(d *models.Digest) string {
	var text strings.Builder

	fmt.Fprintf(&text, "Content Freshness Report - %s\n", d.SiteName)
	fmt.Fprintf(&text, "Generated: %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	fmt.Fprintf(&text, "Total Posts: %d\n", d.Stats.Total)
	fmt.Fprintf(&text, "Stale Posts: %d (%d%%)\n", d.Stats.Stale, d.Stats.StalePercent)
	fmt.Fprintf(&text, "Health: %s (%d, %s)\n", d.Health.Grade, d.Health.Score, d.Health.Label)
	fmt.Fprintf(&text, "Threshold: %d days\n", d.Stats.ThresholdDays)

	if len(d.Items) > 0 {
		text.WriteString("\nPOSTS NEEDING ATTENTION\n")
		text.WriteString("=======================\n")
		for i, item := range d.Items {
			fmt.Fprintf(&text, "\n%d. %s\n", i+1, item.Title)
			fmt.Fprintf(&text, "   %s | Last updated %s | By %s\n", capitalize(item.Type), item.DaysOldText, item.AuthorName)
			fmt.Fprintf(&text, "   Edit: %s\n", item.EditURL)
		}
	}

	if d.ListURL != "" {
		fmt.Fprintf(&text, "\nView all stale content: %s\n", d.ListURL)
	}
	text.WriteString("\n---\nThis email was sent by Content Freshness Monitor.\n")
	return text.String()
}

// RenderAuthorDigestText renders the plain text alternative of an author digest
func RenderAuthorDigestText(d *models.AuthorDigest) string {
	var text strings.Builder

	fmt.Fprintf(&text, "Hi %s,\n\n", d.Author.DisplayName)
	fmt.Fprintf(&text, "You have %d posts on %s that have not been updated in %d days.\n\n",
		d.StaleCount, d.SiteName, d.ThresholdDays)

	for i, item := range d.Items {
		fmt.Fprintf(&text, "%d. %s (%s, last updated %s)\n", i+1, item.Title, item.Type, item.DaysOldText)
		fmt.Fprintf(&text, "   Edit: %s\n", item.EditURL)
	}

	text.WriteString("\n---\nThis email was sent by Content Freshness Monitor.\n")
	return text.String()
}
