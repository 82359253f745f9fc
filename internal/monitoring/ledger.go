package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/storage"
)

// PeriodKey names the digest period containing t: a day, an ISO week or a month
func PeriodKey(freq models.Frequency, t time.Time) string {
	switch freq {
	case models.FrequencyDaily:
		return t.Format("2006-01-02")
	case models.FrequencyMonthly:
		return t.Format("2006-01")
	default:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
}

// LedgerEntry records one delivered digest
type LedgerEntry struct {
	Job        string    `json:"job"`
	Period     string    `json:"period"`
	Recipient  string    `json:"recipient"`
	StaleCount int       `json:"stale_count"`
	SentAt     time.Time `json:"sent_at"`
}

// Ledger remembers which digests were already sent for a period, so a
// scheduler firing twice does not send twice
type Ledger struct {
	storage storage.StorageInterface
}

func NewLedger(st storage.StorageInterface) *Ledger {
	return &Ledger{storage: st}
}

func ledgerKey(job, period, recipient string) string {
	key := fmt.Sprintf("digests/%s/%s", job, period)
	if recipient != "" {
		key += "/" + recipient
	}
	return key
}

// Sent reports whether job already delivered for period to recipient
func (l *Ledger) Sent(ctx context.Context, job, period, recipient string) (bool, error) {
	_, err := l.storage.Retrieve(ctx, ledgerKey(job, period, recipient))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read digest ledger: %w", err)
	}
	return true, nil
}

// Mark records a delivery
func (l *Ledger) Mark(ctx context.Context, entry LedgerEntry, keyRecipient string) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}
	if err := l.storage.Store(ctx, ledgerKey(entry.Job, entry.Period, keyRecipient), data); err != nil {
		return fmt.Errorf("failed to write digest ledger: %w", err)
	}
	return nil
}
