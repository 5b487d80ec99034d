// Package outbox implements the transactional outbox: domain events are
// stored in the writing transaction and relayed after commit.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gstledger/internal/core/id"
	"gstledger/internal/domain"
)

// Status represents the state of an outbox message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Message represents a message in the transactional outbox.
type Message struct {
	ID            id.ID      `db:"id" json:"id"`
	AggregateType string     `db:"aggregate_type" json:"aggregateType"`
	AggregateID   id.ID      `db:"aggregate_id" json:"aggregateId"`
	EventType     string     `db:"event_type" json:"eventType"`
	Payload       []byte     `db:"payload" json:"payload"`
	Status        Status     `db:"status" json:"status"`
	RetryCount    int        `db:"retry_count" json:"retryCount"`
	LastError     *string    `db:"last_error" json:"lastError,omitempty"`
	NextRetryAt   *time.Time `db:"next_retry_at" json:"nextRetryAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	PublishedAt   *time.Time `db:"published_at" json:"publishedAt,omitempty"`
}

// Store persists outbox messages.
type Store interface {
	// Append inserts msg in the caller's transaction.
	Append(ctx context.Context, msg *Message) error

	// FetchPending returns up to limit pending messages due at now, oldest first.
	FetchPending(ctx context.Context, limit int, now time.Time) ([]*Message, error)

	MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error

	// MarkFailed records a failed attempt. exhausted moves the message to
	// the failed status.
	MarkFailed(ctx context.Context, msgID id.ID, lastErr string, nextRetry time.Time, exhausted bool) error

	// MoveToDLQ moves failed messages to the dead letter queue.
	MoveToDLQ(ctx context.Context) (int64, error)
}

// Publisher writes domain events to the outbox.
type Publisher struct {
	store Store
	now   func() time.Time
}

// NewPublisher creates an outbox publisher.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, now: func() time.Time { return time.Now().UTC() }}
}

var _ domain.EventPublisher = (*Publisher)(nil)

// Publish writes an event to the outbox within the current transaction.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return p.store.Append(ctx, &Message{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     p.now(),
	})
}
