package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	wpPerPage    = 100
	wpDateLayout = "2006-01-02T15:04:05"
)

// WordPressSource reads posts and authors from the WordPress REST API
type WordPressSource struct {
	client        *resty.Client
	baseURL       string
	authenticated bool
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Title       wpRendered `json:"title"`
	Author      int64      `json:"author"`
	DateGMT     string     `json:"date_gmt"`
	ModifiedGMT string     `json:"modified_gmt"`
}

type wpUser struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Capabilities wpCapabilities `json:"capabilities"`
}

// wpCapabilities is only sent in the edit context. A user without
// capabilities is encoded as an empty JSON array.
type wpCapabilities map[string]bool

func (c *wpCapabilities) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[]")) {
		*c = nil
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*c = m
	return nil
}

// NewWordPressSource creates a source for the site at baseURL. Username and
// an application password unlock author emails; both may be empty.
func NewWordPressSource(baseURL, username, password string) *WordPressSource {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "Freshness-Monitor/1.0").
		SetHeader("Accept", "application/json")
	if username != "" && password != "" {
		client.SetBasicAuth(username, password)
	}
	return &WordPressSource{
		client:        client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		authenticated: username != "" && password != "",
	}
}

func (w *WordPressSource) GetName() string {
	return "wordpress"
}

func (w *WordPressSource) IsEnabled() bool {
	return w.baseURL != ""
}

// FetchAuthors lists every user. Emails and capabilities are only returned to
// authenticated clients, so anonymous imports leave CanEdit false.
func (w *WordPressSource) FetchAuthors(ctx context.Context) ([]models.Author, error) {
	var authors []models.Author
	err := w.paginate(ctx, "users", func(body []byte) (int, error) {
		var users []wpUser
		if err := json.Unmarshal(body, &users); err != nil {
			return 0, fmt.Errorf("failed to decode users: %w", err)
		}
		for _, u := range users {
			authors = append(authors, models.Author{
				ID:          u.ID,
				DisplayName: u.Name,
				Email:       u.Email,
				CanEdit:     u.Capabilities["edit_posts"],
			})
		}
		return len(users), nil
	})
	return authors, err
}

// FetchContent lists the published items of each content type
func (w *WordPressSource) FetchContent(ctx context.Context, types []string) ([]models.ContentItem, error) {
	var items []models.ContentItem
	for _, t := range types {
		err := w.paginate(ctx, restBase(t), func(body []byte) (int, error) {
			var posts []wpPost
			if err := json.Unmarshal(body, &posts); err != nil {
				return 0, fmt.Errorf("failed to decode %s: %w", t, err)
			}
			for _, p := range posts {
				item, err := p.toItem(t)
				if err != nil {
					logrus.Warnf("Skipping %s %d: %v", t, p.ID, err)
					continue
				}
				items = append(items, item)
			}
			return len(posts), nil
		})
		if err != nil {
			return items, err
		}
	}
	return items, nil
}

// paginate walks a collection until X-WP-TotalPages is reached or a short
// page is returned
func (w *WordPressSource) paginate(ctx context.Context, collection string, handle func(body []byte) (int, error)) error {
	for page := 1; ; page++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req := w.client.R().
			SetContext(ctx).
			SetQueryParam("per_page", strconv.Itoa(wpPerPage)).
			SetQueryParam("page", strconv.Itoa(page))
		if w.authenticated {
			req.SetQueryParam("context", "edit")
		}

		resp, err := req.Get(fmt.Sprintf("%s/wp-json/wp/v2/%s", w.baseURL, collection))
		if err != nil {
			return fmt.Errorf("failed to fetch %s page %d: %w", collection, page, err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("wordpress API returned status %d for %s page %d", resp.StatusCode(), collection, page)
		}

		n, err := handle(resp.Body())
		if err != nil {
			return err
		}

		totalPages, _ := strconv.Atoi(resp.Header().Get("X-WP-TotalPages"))
		if n < wpPerPage || (totalPages > 0 && page >= totalPages) {
			return nil
		}
	}
}

func (p wpPost) toItem(contentType string) (models.ContentItem, error) {
	published, err := time.ParseInLocation(wpDateLayout, p.DateGMT, time.UTC)
	if err != nil {
		return models.ContentItem{}, fmt.Errorf("invalid date_gmt %q", p.DateGMT)
	}
	modified, err := time.ParseInLocation(wpDateLayout, p.ModifiedGMT, time.UTC)
	if err != nil {
		return models.ContentItem{}, fmt.Errorf("invalid modified_gmt %q", p.ModifiedGMT)
	}
	if p.Type != "" {
		contentType = p.Type
	}
	return models.ContentItem{
		ID:          p.ID,
		Type:        contentType,
		Status:      p.Status,
		Title:       plainText(p.Title.Rendered),
		AuthorID:    p.Author,
		PublishedAt: published,
		ModifiedAt:  modified,
	}, nil
}

// plainText strips markup and decodes entities from a rendered field
func plainText(rendered string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return rendered
	}
	return strings.TrimSpace(doc.Text())
}

// restBase maps a content type to its REST collection
func restBase(contentType string) string {
	switch contentType {
	case "post":
		return "posts"
	case "page":
		return "pages"
	default:
		return contentType
	}
}
