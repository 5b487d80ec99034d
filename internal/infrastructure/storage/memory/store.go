// Package memory is an in-process storage backend with the same transaction
// contract as the postgres backend. Write transactions are serialized and
// work on a copy-on-write fork of the committed state; read-only
// transactions pin the committed state and never block writers.
package memory

import (
	"context"
	"fmt"
	"sync/atomic"

	"gstledger/internal/core/id"
	"gstledger/internal/core/tx"
	"gstledger/internal/domain/audit"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/expense"
	"gstledger/internal/domain/outbox"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/registers/stock"
	"gstledger/pkg/logger"
)

// table is a copy-on-write map. A forked table shares rows with its parent
// until the first write copies them.
type table[K comparable, V any] struct {
	rows  map[K]V
	owned bool
}

func newTable[K comparable, V any]() table[K, V] {
	return table[K, V]{rows: make(map[K]V), owned: true}
}

func (t table[K, V]) fork() table[K, V] {
	return table[K, V]{rows: t.rows}
}

func (t *table[K, V]) put(k K, v V) {
	if !t.owned {
		rows := make(map[K]V, len(t.rows)+1)
		for key, val := range t.rows {
			rows[key] = val
		}
		t.rows = rows
		t.owned = true
	}
	t.rows[k] = v
}

func (t *table[K, V]) del(k K) {
	if _, ok := t.rows[k]; !ok {
		return
	}
	t.put(k, *new(V))
	delete(t.rows, k)
}

func (t table[K, V]) get(k K) (V, bool) {
	v, ok := t.rows[k]
	return v, ok
}

// state is one version of the whole database. Stored values are never
// mutated in place; writers store fresh copies.
type state struct {
	parties   table[id.ID, party.Party]
	products  table[id.ID, product.Product]
	documents table[id.ID, transaction.Document]
	entries   table[id.ID, stock.Entry]
	records   table[id.ID, payment.Record]
	balances  table[id.ID, payment.Balance]
	expenses  table[id.ID, expense.Expense]
	sequences table[string, int64]
	outbox    table[id.ID, outbox.Message]
	dlq       table[id.ID, outbox.Message]
	audit     table[id.ID, audit.Entry]
}

func newState() *state {
	return &state{
		parties:   newTable[id.ID, party.Party](),
		products:  newTable[id.ID, product.Product](),
		documents: newTable[id.ID, transaction.Document](),
		entries:   newTable[id.ID, stock.Entry](),
		records:   newTable[id.ID, payment.Record](),
		balances:  newTable[id.ID, payment.Balance](),
		expenses:  newTable[id.ID, expense.Expense](),
		sequences: newTable[string, int64](),
		outbox:    newTable[id.ID, outbox.Message](),
		dlq:       newTable[id.ID, outbox.Message](),
		audit:     newTable[id.ID, audit.Entry](),
	}
}

func (s *state) fork() *state {
	return &state{
		parties:   s.parties.fork(),
		products:  s.products.fork(),
		documents: s.documents.fork(),
		entries:   s.entries.fork(),
		records:   s.records.fork(),
		balances:  s.balances.fork(),
		expenses:  s.expenses.fork(),
		sequences: s.sequences.fork(),
		outbox:    s.outbox.fork(),
		dlq:       s.dlq.fork(),
		audit:     s.audit.fork(),
	}
}

// Store is the in-memory database. It implements tx.ReadOnlyManager.
type Store struct {
	committed atomic.Pointer[state]
	// writer is a one-slot semaphore so waiting honours ctx cancellation.
	writer chan struct{}
}

var _ tx.ReadOnlyManager = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	s := &Store{writer: make(chan struct{}, 1)}
	s.committed.Store(newState())
	return s
}

type writeKey struct{}

type readKey struct{}

// writeTx is the working state of an open write transaction.
type writeTx struct {
	st *state
}

// RunInTransaction executes fn in a write transaction. Nested calls reuse
// the outer transaction. Commit hooks run after the new state is visible.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(writeKey{}).(*writeTx); ok {
		return fn(ctx)
	}
	if tx.ScopeOf(ctx) == tx.ScopeReadOnly {
		return fmt.Errorf("write transaction inside a read-only transaction")
	}

	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("begin transaction: %w", ctx.Err())
	}
	released := false
	release := func() {
		if !released {
			released = true
			<-s.writer
		}
	}
	defer release()

	w := &writeTx{st: s.committed.Load().fork()}
	txCtx := context.WithValue(ctx, writeKey{}, w)
	txCtx = tx.WithScope(txCtx, tx.ScopeReadWrite)
	txCtx, hooks := tx.WithCommitHooks(txCtx)

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		logger.Warn(ctx, "transaction abandoned after cancellation", "error", err)
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.committed.Store(w.st)
	release()
	hooks.Run(ctx)
	return nil
}

// ReadOnly executes fn against the committed state as of now. Writers that
// commit meanwhile are not observed.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(writeKey{}).(*writeTx); ok {
		return fn(ctx)
	}
	if _, ok := ctx.Value(readKey{}).(*state); ok {
		return fn(ctx)
	}
	snap := s.committed.Load()
	ctx = context.WithValue(ctx, readKey{}, snap)
	return fn(tx.WithScope(ctx, tx.ScopeReadOnly))
}

// read returns the state visible to ctx.
func (s *Store) read(ctx context.Context) *state {
	if w, ok := ctx.Value(writeKey{}).(*writeTx); ok {
		return w.st
	}
	if snap, ok := ctx.Value(readKey{}).(*state); ok {
		return snap
	}
	return s.committed.Load()
}

// write runs fn against the working state of ctx's transaction, or in a
// transaction of its own when there is none.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if w, ok := ctx.Value(writeKey{}).(*writeTx); ok {
		return fn(w.st)
	}
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(writeKey{}).(*writeTx).st)
	})
}
