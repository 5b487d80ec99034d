package expense

import (
	"context"
	"time"

	"gstledger/internal/domain"
)

// ListFilter for filtering expenses.
type ListFilter struct {
	domain.ListFilter

	AccountHead string
	DateFrom    *time.Time
	DateTo      *time.Time
}

// Repository defines persistence for expenses.
type Repository interface {
	Create(ctx context.Context, e *Expense) error

	// List returns expenses ordered by (date, created_at, id).
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Expense], error)

	// ListRange returns every expense dated within [from, to].
	ListRange(ctx context.Context, from, to time.Time) ([]*Expense, error)
}
