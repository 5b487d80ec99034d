// Package idempotency defines the contract for replaying the response of a
// request that was retried with the same idempotency key.
package idempotency

import (
	"context"
	"time"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
)

// DefaultTTL is how long completed responses are kept for replay.
const DefaultTTL = 24 * time.Hour

// StaleAfter is the age at which a pending key is considered abandoned.
const StaleAfter = time.Minute

// Replay is a stored response to send back instead of re-executing.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Request identifies one attempt.
type Request struct {
	Key         string
	UserID      string
	Operation   string
	RequestHash string
}

// Store persists idempotency keys.
type Store interface {
	// Acquire claims req.Key. It returns (nil, nil) when the caller should
	// execute the request, a Replay when a response is already stored, or an
	// error when the key is in flight or was used for a different request.
	Acquire(ctx context.Context, req Request) (*Replay, error)

	// Complete stores the response for replay.
	Complete(ctx context.Context, key string, resp Replay) error

	// Release forgets a key whose request failed in a retryable way.
	Release(ctx context.Context, key string) error
}
