package notifications

import (
	"context"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"gopkg.in/gomail.v2"
)

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendDigest(ctx context.Context, digest *models.Digest) error
	SendAuthorDigest(ctx context.Context, digest *models.AuthorDigest) error
}

// Mailer delivers composed email messages
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}
