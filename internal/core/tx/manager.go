// Package tx provides transaction management abstractions.
// This package defines interfaces that decouple domain logic from specific
// storage implementations.
package tx

import (
	"context"
	"sync"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction support.
//
// Domain services depend on this interface, not concrete implementations.
// Implementations live in infrastructure/storage/postgres and infrastructure/storage/memory.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed and after-commit hooks run.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Read-only transactions observe one consistent snapshot and never block writers.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only snapshot transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// CommitHooks collects callbacks that must run only after the outermost
// transaction commits. A rolled back transaction discards them.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

type hooksKey struct{}

// WithCommitHooks attaches a fresh hook list to ctx.
// Managers call this when they begin an outermost transaction.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// AfterCommit registers fn to run after the current transaction commits.
// Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, ok := ctx.Value(hooksKey{}).(*CommitHooks)
	if !ok || h == nil {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run executes registered hooks in registration order.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

type scopeKey struct{}

// Scope tells read paths what kind of transaction ctx runs in.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeReadWrite
	ScopeReadOnly
)

// WithScope marks ctx as running inside a transaction of kind s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeOf returns the transaction kind of ctx.
func ScopeOf(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// InTransaction reports whether ctx runs inside any transaction or snapshot.
// Shared caches must neither serve nor absorb reads made under one.
func InTransaction(ctx context.Context) bool {
	return ScopeOf(ctx) != ScopeNone
}
