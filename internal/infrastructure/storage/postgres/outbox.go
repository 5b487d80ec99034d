package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/domain/outbox"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status,
	retry_count, last_error, next_retry_at, created_at, published_at`

// OutboxStore implements outbox.Store over sys_outbox.
type OutboxStore struct {
	txManager *TxManager
}

// NewOutboxStore creates the outbox store.
func NewOutboxStore(txManager *TxManager) *OutboxStore {
	return &OutboxStore{txManager: txManager}
}

var _ outbox.Store = (*OutboxStore)(nil)

// Append writes msg within the current transaction.
// MUST be called inside a transaction context.
func (s *OutboxStore) Append(ctx context.Context, msg *outbox.Message) error {
	t := s.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox append requires transaction context")
	}

	_, err := t.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// AppendBatch writes several messages in one round trip.
func (s *OutboxStore) AppendBatch(ctx context.Context, msgs []*outbox.Message) error {
	t := s.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox append requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, msg := range msgs {
		batch.Queue(`
			INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.Status, msg.CreatedAt)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()
	for range msgs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}
	return nil
}

// FetchPending returns due messages oldest first. Inside a transaction the
// rows stay locked so that parallel relays skip them.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int, now time.Time) ([]*outbox.Message, error) {
	sql := `
		SELECT ` + outboxColumns + `
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY created_at, id
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`

	var messages []*outbox.Message
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &messages, sql, outbox.StatusPending, now, limit); err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	return messages, nil
}

func (s *OutboxStore) MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, outbox.StatusPublished, at, msgID)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("outbox message", msgID.String())
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, msgID id.ID, lastErr string, nextRetry time.Time, exhausted bool) error {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    next_retry_at = $2,
		    status = CASE WHEN $3 THEN $4 ELSE status END
		WHERE id = $5
	`, lastErr, nextRetry, exhausted, outbox.StatusFailed, msgID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("outbox message", msgID.String())
	}
	return nil
}

// MoveToDLQ moves failed messages to the dead letter queue.
func (s *OutboxStore) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING `+outboxColumns+`
		)
		INSERT INTO sys_outbox_dlq (`+outboxColumns+`, failed_at, failure_reason)
		SELECT `+outboxColumns+`, NOW(), last_error FROM moved
	`, outbox.StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}
