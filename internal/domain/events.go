package domain

import (
	"context"

	"gstledger/internal/core/id"
)

// Event types written to the transactional outbox.
const (
	EventDocumentPosted    = "DocumentPosted"
	EventDocumentCancelled = "DocumentCancelled"
	EventPaymentApplied    = "PaymentApplied"
	EventPaymentReversed   = "PaymentReversed"
)

// Event is a domain event to be relayed after commit.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher writes events in the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
