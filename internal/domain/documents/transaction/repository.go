package transaction

import (
	"context"
	"time"

	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/domain"
)

// Repository defines persistence for transaction documents.
type Repository interface {
	// Create inserts header and lines.
	Create(ctx context.Context, doc *Document) error

	// GetByID retrieves a document with its lines.
	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetForUpdate retrieves a document with its lines under a row lock.
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// Update saves header and replaces lines when doc.Version matches the
	// stored version, then bumps doc.Version.
	Update(ctx context.Context, doc *Document) error

	// List retrieves headers (without lines) with filtering.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)

	// ListPosted returns posted documents of docType dated within
	// [from, to], with lines, ordered by (date, number).
	ListPosted(ctx context.Context, docType DocType, from, to time.Time) ([]*Document, error)

	// DocumentStatus returns only the status.
	DocumentStatus(ctx context.Context, docID id.ID) (entity.DocumentStatus, error)
}

// ListFilter for filtering documents.
type ListFilter struct {
	domain.ListFilter

	DocType        *DocType
	Status         *entity.DocumentStatus
	CounterpartyID *id.ID
	DateFrom       *time.Time
	DateTo         *time.Time
}

// Directory is the read-only document view used by reports.
type Directory interface {
	ListPosted(ctx context.Context, docType DocType, from, to time.Time) ([]*Document, error)
}
