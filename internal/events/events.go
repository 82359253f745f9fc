package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeContentReviewed = "content.reviewed"
	TypeDigestSent      = "digest.sent"
)

// Event is the envelope of every published message
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Tenant    string          `json:"tenant"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Reviewed is the payload of content.reviewed
type Reviewed struct {
	IDs        []int64   `json:"ids"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// DigestSent is the payload of digest.sent
type DigestSent struct {
	Kind       string `json:"kind"`
	Recipient  string `json:"recipient"`
	StaleCount int    `json:"stale_count"`
	Period     string `json:"period"`
}

// Publisher delivers events to a message broker
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NewEvent wraps a payload in an envelope with a fresh id
func NewEvent(eventType, tenant string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Tenant:    tenant,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Noop discards every event
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Memory keeps published events in order, for tests and dry runs
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of the events published so far
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Notifier turns domain notifications into events
type Notifier struct {
	publisher Publisher
	tenant    string
}

// NewNotifier creates a notifier publishing under tenant
func NewNotifier(p Publisher, tenant string) *Notifier {
	if p == nil {
		p = Noop{}
	}
	return &Notifier{publisher: p, tenant: tenant}
}

// PublishReviewed emits content.reviewed
func (n *Notifier) PublishReviewed(ctx context.Context, ids []int64, at time.Time) error {
	ev, err := NewEvent(TypeContentReviewed, n.tenant, Reviewed{IDs: ids, ReviewedAt: at})
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, ev)
}

// PublishDigestSent emits digest.sent
func (n *Notifier) PublishDigestSent(ctx context.Context, payload DigestSent) error {
	ev, err := NewEvent(TypeDigestSent, n.tenant, payload)
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, ev)
}
