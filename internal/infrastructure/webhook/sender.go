// Package webhook delivers outbox messages to an HTTP endpoint, the
// document renderer and mailer.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gstledger/internal/domain/outbox"
)

var tracer = otel.Tracer("gstledger/webhook")

// Delivery headers. Receivers deduplicate on HeaderMessageID.
const (
	HeaderMessageID = "X-Message-ID"
	HeaderEventType = "X-Event-Type"
)

// Envelope is the JSON body posted for each message.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
	Attempt       int             `json:"attempt"`
}

// Sender posts messages to a fixed URL. It implements outbox.Handler.
type Sender struct {
	url    string
	client *http.Client
}

// NewSender creates a sender with the given per-request timeout.
func NewSender(url string, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{url: url, client: &http.Client{Timeout: timeout}}
}

var _ outbox.Handler = (*Sender)(nil)

// Handle posts msg. Any non-2xx answer is an error and schedules a retry.
func (s *Sender) Handle(ctx context.Context, msg *outbox.Message) (err error) {
	ctx, span := tracer.Start(ctx, "webhook.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("outbox.message_id", msg.ID.String()),
			attribute.String("outbox.event_type", msg.EventType),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	body, err := json.Marshal(Envelope{
		ID:            msg.ID.String(),
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID.String(),
		EventType:     msg.EventType,
		Payload:       payload,
		CreatedAt:     msg.CreatedAt,
		Attempt:       msg.RetryCount + 1,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderMessageID, msg.ID.String())
	req.Header.Set(HeaderEventType, msg.EventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", msg.EventType, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", msg.EventType, resp.StatusCode)
	}
	return nil
}
