package memory

import (
	"context"
	"sort"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/domain/outbox"
)

// OutboxStore implements outbox.Store.
type OutboxStore struct {
	store *Store
}

// NewOutboxStore creates the outbox store.
func NewOutboxStore(store *Store) *OutboxStore {
	return &OutboxStore{store: store}
}

var _ outbox.Store = (*OutboxStore)(nil)

func (s *OutboxStore) Append(ctx context.Context, msg *outbox.Message) error {
	return s.store.write(ctx, func(st *state) error {
		m := *msg
		m.Payload = append([]byte(nil), msg.Payload...)
		st.outbox.put(m.ID, m)
		return nil
	})
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int, now time.Time) ([]*outbox.Message, error) {
	st := s.store.read(ctx)
	out := make([]*outbox.Message, 0)
	for _, m := range st.outbox.rows {
		if m.Status != outbox.StatusPending {
			continue
		}
		if m.NextRetryAt != nil && m.NextRetryAt.After(now) {
			continue
		}
		m := m
		out = append(out, &m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return id.Less(out[i].ID, out[j].ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *OutboxStore) MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error {
	return s.store.write(ctx, func(st *state) error {
		m, ok := st.outbox.get(msgID)
		if !ok {
			return apperror.NewNotFound("outbox message", msgID.String())
		}
		m.Status = outbox.StatusPublished
		m.PublishedAt = &at
		st.outbox.put(msgID, m)
		return nil
	})
}

func (s *OutboxStore) MarkFailed(ctx context.Context, msgID id.ID, lastErr string, nextRetry time.Time, exhausted bool) error {
	return s.store.write(ctx, func(st *state) error {
		m, ok := st.outbox.get(msgID)
		if !ok {
			return apperror.NewNotFound("outbox message", msgID.String())
		}
		m.RetryCount++
		m.LastError = &lastErr
		m.NextRetryAt = &nextRetry
		if exhausted {
			m.Status = outbox.StatusFailed
		}
		st.outbox.put(msgID, m)
		return nil
	})
}

func (s *OutboxStore) MoveToDLQ(ctx context.Context) (int64, error) {
	var moved int64
	err := s.store.write(ctx, func(st *state) error {
		moved = 0
		for msgID, m := range st.outbox.rows {
			if m.Status != outbox.StatusFailed {
				continue
			}
			st.dlq.put(msgID, m)
			moved++
		}
		for msgID := range st.dlq.rows {
			st.outbox.del(msgID)
		}
		return nil
	})
	return moved, err
}

// Messages returns every outbox message, oldest first. Used by tests and
// the CLI.
func (s *OutboxStore) Messages(ctx context.Context) []outbox.Message {
	st := s.store.read(ctx)
	out := make([]outbox.Message, 0, len(st.outbox.rows))
	for _, m := range st.outbox.rows {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return id.Less(out[i].ID, out[j].ID)
	})
	return out
}
