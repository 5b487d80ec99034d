package stock

import (
	"context"
	"time"

	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
)

// BalanceUpdate rewrites one entry's running balance.
type BalanceUpdate struct {
	EntryID        id.ID
	RunningBalance types.Quantity
}

// Revision identifies the committed state of a product's entries. Entries
// are never deleted, so any insert or void changes it.
type Revision struct {
	Entries int64 `db:"entries"`
	Voided  int64 `db:"voided"`
}

// Repository defines persistence for stock entries.
type Repository interface {
	// LockProducts serializes writers on the given products for the rest of
	// the current transaction. Ids arrive sorted.
	LockProducts(ctx context.Context, productIDs []id.ID) error

	// Insert stores a new entry.
	Insert(ctx context.Context, e *Entry) error

	// UpdateRunningBalances persists recomputed balances in one batch.
	UpdateRunningBalances(ctx context.Context, updates []BalanceUpdate) error

	// MarkVoided stamps voided_at and void_reason.
	MarkVoided(ctx context.Context, entryID id.ID, at time.Time, reason string) error

	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)

	// ListByProduct returns every entry of a product ordered by
	// (occurred_on, sequence), voided ones included.
	ListByProduct(ctx context.Context, productID id.ID) ([]Entry, error)

	// ListByReference returns the entries a document produced.
	ListByReference(ctx context.Context, refType ReferenceType, refID id.ID) ([]Entry, error)

	// Revision counts a product's entries and voided entries.
	Revision(ctx context.Context, productID id.ID) (Revision, error)

	// ProductIDs returns the distinct products that have entries.
	ProductIDs(ctx context.Context) ([]id.ID, error)
}
