package outbox

import (
	"context"
	"fmt"
	"time"

	"gstledger/pkg/logger"
)

// Handler delivers one message. A returned error schedules a retry.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// RelayConfig tunes delivery.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
	// Backoff is the base delay; attempt n waits n*Backoff.
	Backoff time.Duration
}

// DefaultRelayConfig returns the worker defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 100, MaxRetries: 5, Backoff: time.Minute}
}

// Relay reads pending messages and hands them to a Handler.
type Relay struct {
	store   Store
	handler Handler
	cfg     RelayConfig
	now     func() time.Time
}

// NewRelay creates an outbox relay.
func NewRelay(store Store, handler Handler, cfg RelayConfig) *Relay {
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &Relay{store: store, handler: handler, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// ProcessBatch delivers one batch and returns the number delivered.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := r.store.FetchPending(ctx, r.cfg.BatchSize, r.now())
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		if err := r.process(ctx, msg); err != nil {
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"retry", msg.RetryCount+1,
				"error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (r *Relay) process(ctx context.Context, msg *Message) error {
	if err := r.handler.Handle(ctx, msg); err != nil {
		attempt := msg.RetryCount + 1
		next := r.now().Add(time.Duration(attempt) * r.cfg.Backoff)
		if updErr := r.store.MarkFailed(ctx, msg.ID, err.Error(), next, attempt >= r.cfg.MaxRetries); updErr != nil {
			return fmt.Errorf("update failed message: %w", updErr)
		}
		return err
	}
	return r.store.MarkPublished(ctx, msg.ID, r.now())
}

// MoveToDLQ moves exhausted messages to the dead letter queue.
func (r *Relay) MoveToDLQ(ctx context.Context) (int64, error) {
	return r.store.MoveToDLQ(ctx)
}
