package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// ErrNoRecipient is returned when a digest has nowhere to go
var ErrNoRecipient = errors.New("no digest recipient configured")

// Service handles sending digests via email and Teams
type Service struct {
	config *config.Config
	client *resty.Client
	mailer Mailer
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type            string               `json:"@type"`
	Context         string               `json:"@context"`
	ThemeColor      string               `json:"themeColor,omitempty"`
	Title           string               `json:"title"`
	Text            string               `json:"text"`
	Sections        []TeamsSection       `json:"sections,omitempty"`
	PotentialAction []TeamsOpenURIAction `json:"potentialAction,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type TeamsOpenURIAction struct {
	Type    string           `json:"@type"`
	Name    string           `json:"name"`
	Targets []TeamsURITarget `json:"targets"`
}

type TeamsURITarget struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

// NewService creates a notification service delivering mail over SMTP
func NewService(cfg *config.Config) *Service {
	var mailer Mailer
	if cfg.MailEnabled() {
		mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return NewServiceWithMailer(cfg, mailer)
}

// NewServiceWithMailer creates a notification service with a custom mailer
func NewServiceWithMailer(cfg *config.Config, mailer Mailer) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
		mailer: mailer,
	}
}

// DigestSubject is the admin digest subject line
func DigestSubject(d *models.Digest) string {
	subject := fmt.Sprintf("[%s] Content Freshness Alert: %d stale posts need attention", d.SiteName, d.Stats.Stale)
	if d.Test {
		subject = "[TEST] " + subject
	}
	return subject
}

// AuthorDigestSubject is the author digest subject line
func AuthorDigestSubject(d *models.AuthorDigest) string {
	return fmt.Sprintf("[%s] %s, you have %d posts that need updating", d.SiteName, d.Author.DisplayName, d.StaleCount)
}

// SendDigest sends the admin digest by email and, for scheduled runs, to Teams
func (s *Service) SendDigest(ctx context.Context, digest *models.Digest) error {
	var errs []string

	if digest.Recipient != "" && s.mailer != nil {
		if err := s.sendDigestEmail(digest); err != nil {
			logrus.Errorf("Failed to send digest email: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Sent digest to %s", digest.Recipient)
		}
	}

	if s.config.TeamsWebhookURL != "" && !digest.Test {
		if err := s.sendToTeams(ctx, digest); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Sent digest to Teams")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	if !s.canDeliver(digest) {
		return ErrNoRecipient
	}
	return nil
}

func (s *Service) canDeliver(digest *models.Digest) bool {
	mail := digest.Recipient != "" && s.mailer != nil
	teams := s.config.TeamsWebhookURL != "" && !digest.Test
	return mail || teams
}

// SendAuthorDigest emails an author their own stale items
func (s *Service) SendAuthorDigest(ctx context.Context, digest *models.AuthorDigest) error {
	if s.mailer == nil || digest.Author.Email == "" {
		return ErrNoRecipient
	}

	htmlBody, err := RenderAuthorDigestHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build author email HTML: %w", err)
	}

	m := s.newMessage(digest.Author.Email, AuthorDigestSubject(digest))
	m.SetBody("text/plain", RenderAuthorDigestText(digest))
	m.AddAlternative("text/html", htmlBody)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *Service) newMessage(to, subject string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.MailFrom)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	return m
}

func (s *Service) sendDigestEmail(digest *models.Digest) error {
	htmlBody, err := RenderDigestHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := s.newMessage(digest.Recipient, DigestSubject(digest))
	m.SetBody("text/plain", RenderDigestText(digest))
	m.AddAlternative("text/html", htmlBody)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *Service) sendToTeams(ctx context.Context, digest *models.Digest) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(BuildTeamsMessage(digest)).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

// BuildTeamsMessage renders the digest as a Teams message card
func BuildTeamsMessage(digest *models.Digest) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: themeColor(digest.Health.Grade),
		Title:      DigestSubject(digest),
		Text: fmt.Sprintf("%d of %d published items have not been updated in %d days.",
			digest.Stats.Stale, digest.Stats.Total, digest.Stats.ThresholdDays),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Total", Value: fmt.Sprintf("%d", digest.Stats.Total)},
			{Name: "Fresh", Value: fmt.Sprintf("%d", digest.Stats.Fresh)},
			{Name: "Aging", Value: fmt.Sprintf("%d", digest.Stats.Aging)},
			{Name: "Stale", Value: fmt.Sprintf("%d (%d%%)", digest.Stats.Stale, digest.Stats.StalePercent)},
			{Name: "Health", Value: fmt.Sprintf("%s (%d, %s)", digest.Health.Grade, digest.Health.Score, digest.Health.Label)},
			{Name: "Generated", Value: digest.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		},
		Markdown: true,
	})

	if len(digest.Items) > 0 {
		limit := min(5, len(digest.Items))
		lines := make([]string, 0, limit)
		for _, item := range digest.Items[:limit] {
			lines = append(lines, fmt.Sprintf("**[%s](%s)** - %s, %s", item.Title, item.EditURL, item.Type, item.DaysOldText))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Posts Needing Attention",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if digest.ListURL != "" {
		message.PotentialAction = []TeamsOpenURIAction{{
			Type:    "OpenUri",
			Name:    "View All Stale Content",
			Targets: []TeamsURITarget{{OS: "default", URI: digest.ListURL}},
		}}
	}

	return message
}

func themeColor(grade string) string {
	switch grade {
	case "A", "B":
		return "00a32a"
	case "C":
		return "dba617"
	default:
		return "d63638"
	}
}
