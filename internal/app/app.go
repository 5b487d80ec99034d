// Package app wires storage backends into the ledger engines.
package app

import (
	"context"
	"fmt"
	"time"

	"gstledger/internal/core/idempotency"
	"gstledger/internal/core/keylock"
	"gstledger/internal/core/numerator"
	"gstledger/internal/core/tx"
	"gstledger/internal/domain"
	"gstledger/internal/domain/audit"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/expense"
	"gstledger/internal/domain/outbox"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/domain/reports"
	pgnumerator "gstledger/internal/infrastructure/numerator"
	"gstledger/internal/infrastructure/storage/memory"
	"gstledger/internal/infrastructure/storage/postgres"
	"gstledger/internal/infrastructure/storage/postgres/catalog_repo"
	"gstledger/internal/infrastructure/storage/postgres/document_repo"
	"gstledger/internal/infrastructure/storage/postgres/register_repo"
	"gstledger/internal/infrastructure/storage/postgres/report_repo"
)

// DocumentStore persists transaction documents and answers status lookups
// for the payment ledger.
type DocumentStore interface {
	transaction.Repository
	payment.DocumentStates
}

// Backend is one storage implementation of every repository.
type Backend struct {
	TxManager tx.ReadOnlyManager
	Parties   party.Repository
	Products  product.Repository
	Documents DocumentStore
	Stock     stock.Repository
	Payments  payment.Repository
	Expenses  expense.Repository
	Sequences numerator.Generator
	Outbox    outbox.Store
	Audit     audit.Store

	Idempotency idempotency.Store

	// StockPositions serves report valuations. Nil reads through the
	// stock ledger.
	StockPositions reports.Stock
}

// MemoryBackend backs every repository with one in-memory store.
func MemoryBackend(store *memory.Store) Backend {
	return Backend{
		TxManager: store,
		Parties:   memory.NewPartyRepo(store),
		Products:  memory.NewProductRepo(store),
		Documents: memory.NewDocumentRepo(store),
		Stock:     memory.NewStockRepo(store),
		Payments:  memory.NewPaymentRepo(store),
		Expenses:  memory.NewExpenseRepo(store),
		Sequences: memory.NewSequences(store),
		Outbox:    memory.NewOutboxStore(store),
		Audit:     memory.NewAuditStore(store),

		Idempotency: memory.NewIdempotencyStore(idempotency.DefaultTTL),
	}
}

// PostgresBackend backs every repository with PostgreSQL through one
// transaction manager. Strict numbering runs in the caller's transaction;
// cached ranges are reserved on the pool.
func PostgresBackend(txm *postgres.TxManager, idempotencyTTL time.Duration) Backend {
	if idempotencyTTL <= 0 {
		idempotencyTTL = idempotency.DefaultTTL
	}
	sequences := pgnumerator.New(func(ctx context.Context) pgnumerator.Querier {
		return txm.GetQuerier(ctx)
	}, txm.Pool())

	return Backend{
		TxManager: txm,
		Parties:   catalog_repo.NewPartyRepo(txm),
		Products:  catalog_repo.NewProductRepo(txm),
		Documents: document_repo.NewTransactionRepo(txm),
		Stock:     register_repo.NewStockRepo(txm),
		Payments:  register_repo.NewPaymentRepo(txm),
		Expenses:  register_repo.NewExpenseRepo(txm),
		Sequences: sequences,
		Outbox:    postgres.NewOutboxStore(txm),
		Audit:     postgres.NewAuditStore(txm),

		Idempotency: postgres.NewIdempotencyStore(txm, idempotencyTTL),

		StockPositions: report_repo.NewReportRepo(txm),
	}
}

// Options configure the engines independently of storage.
type Options struct {
	Seller transaction.SellerProfile
	// BooksStart dates opening stock entries.
	BooksStart time.Time
	// AuditCompressThreshold is the change-set size above which audit
	// payloads are compressed. Zero selects the default.
	AuditCompressThreshold int
}

// Container holds the wired services.
type Container struct {
	Backend Backend
	Locks   *keylock.Locker
	Audit   *audit.Recorder
	Events  domain.EventPublisher

	Parties   *party.Service
	Products  *product.Service
	Stock     *stock.Ledger
	Payments  *payment.Ledger
	Documents *transaction.Engine
	Expenses  *expense.Service
	Reports   *reports.Engine
}

// New wires every service over b. All engines share one lock table.
func New(b Backend, opts Options) (*Container, error) {
	rec, err := audit.NewRecorder(b.Audit, opts.AuditCompressThreshold)
	if err != nil {
		return nil, fmt.Errorf("audit recorder: %w", err)
	}

	locks := keylock.New()
	events := outbox.NewPublisher(b.Outbox)

	stockLedger := stock.NewLedger(b.Stock, b.TxManager, locks)
	payments := payment.NewLedger(payment.LedgerConfig{
		Repo:      b.Payments,
		Documents: b.Documents,
		TxManager: b.TxManager,
		Locks:     locks,
		Events:    events,
		Audit:     rec,
	})
	products := product.NewService(b.Products, b.TxManager, stockLedger, opts.BooksStart)
	documents := transaction.NewEngine(transaction.EngineConfig{
		Repo:      b.Documents,
		Parties:   b.Parties,
		Products:  b.Products,
		Stock:     stockLedger,
		Payments:  payments,
		Numerator: b.Sequences,
		TxManager: b.TxManager,
		Locks:     locks,
		Events:    events,
		Audit:     rec,
		Seller:    opts.Seller,
	})
	expenses := expense.NewService(b.Expenses, b.TxManager, rec)

	var positions reports.Stock = stockLedger
	if b.StockPositions != nil {
		positions = b.StockPositions
	}

	return &Container{
		Backend:   b,
		Locks:     locks,
		Audit:     rec,
		Events:    events,
		Parties:   party.NewService(b.Parties, b.TxManager),
		Products:  products,
		Stock:     stockLedger,
		Payments:  payments,
		Documents: documents,
		Expenses:  expenses,
		Reports: reports.NewEngine(reports.Sources{
			Documents: documents,
			Products:  b.Products,
			Stock:     positions,
			Payments:  payments,
			Expenses:  expenses,
		}, b.TxManager),
	}, nil
}

// NewRelay builds an outbox relay over the backend's outbox.
func (c *Container) NewRelay(h outbox.Handler, cfg outbox.RelayConfig) *outbox.Relay {
	return outbox.NewRelay(c.Backend.Outbox, h, cfg)
}
