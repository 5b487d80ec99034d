package memory

import (
	"context"
	"sync"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/idempotency"
)

type idempotencyEntry struct {
	req       idempotency.Request
	status    idempotency.Status
	replay    idempotency.Replay
	updatedAt time.Time
	expiresAt time.Time
}

// IdempotencyStore implements idempotency.Store in process memory. Keys live
// outside the transactional state so that a rolled back request keeps its
// claim until Release.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]*idempotencyEntry
	ttl  time.Duration
	now  func() time.Time
}

// NewIdempotencyStore creates an idempotency store. A non-positive ttl
// selects idempotency.DefaultTTL.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{
		keys: make(map[string]*idempotencyEntry),
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

func (s *IdempotencyStore) Acquire(_ context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.keys[req.Key]
	if !ok || now.After(e.expiresAt) {
		s.keys[req.Key] = &idempotencyEntry{
			req:       req,
			status:    idempotency.StatusPending,
			updatedAt: now,
			expiresAt: now.Add(s.ttl),
		}
		return nil, nil
	}

	if e.req != req {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("operation", e.req.Operation)
	}
	if e.status == idempotency.StatusSuccess {
		replay := e.replay
		return &replay, nil
	}
	if now.Sub(e.updatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	e.updatedAt = now
	return nil, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key string, resp idempotency.Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.keys[key]
	if !ok {
		return nil
	}
	e.status = idempotency.StatusSuccess
	e.replay = idempotency.Replay{
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        append([]byte(nil), resp.Body...),
	}
	e.updatedAt = s.now()
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.keys[key]; ok && e.status == idempotency.StatusPending {
		delete(s.keys, key)
	}
	return nil
}
