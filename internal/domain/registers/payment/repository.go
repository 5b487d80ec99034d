package payment

import (
	"context"
	"time"

	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
)

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	DocumentID *id.ID
	// PaidOnTo keeps records paid on or before this date.
	PaidOnTo *time.Time
}

// BalanceFilter narrows ListBalances.
type BalanceFilter struct {
	Kind           *Kind
	Status         *BalanceStatus
	CounterpartyID *id.ID
	// DocumentDateTo keeps balances of documents dated on or before this date.
	DocumentDateTo *time.Time
}

// Repository defines persistence for payment records and balances.
type Repository interface {
	// LockDocument serializes payment writers on a document for the rest of
	// the current transaction.
	LockDocument(ctx context.Context, documentID id.ID) error

	InsertRecord(ctx context.Context, r *Record) error
	GetRecord(ctx context.Context, recordID id.ID) (*Record, error)
	// SetReversedBy writes the back-link; it fails if one is already set.
	SetReversedBy(ctx context.Context, recordID, reversalID id.ID) error
	// ListRecords returns records ordered by (paid_on, created_at, id).
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)

	CreateBalance(ctx context.Context, b *Balance) error
	GetBalance(ctx context.Context, documentID id.ID) (*Balance, error)
	// UpdateBalance saves b if the stored version equals expectedVersion,
	// otherwise it returns a concurrent modification error.
	UpdateBalance(ctx context.Context, b *Balance, expectedVersion int) error
	// ListBalances returns balances ordered by (document_date, document_id).
	ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error)
}

// DocumentStates resolves a document's status when it has no balance yet.
type DocumentStates interface {
	DocumentStatus(ctx context.Context, documentID id.ID) (entity.DocumentStatus, error)
}
