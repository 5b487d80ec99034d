package reports

import (
	"context"
	"time"

	"gstledger/internal/core/id"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/expense"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/registers/stock"
)

// Documents reads posted documents.
type Documents interface {
	ListPosted(ctx context.Context, docType transaction.DocType, from, to time.Time) ([]*transaction.Document, error)
}

// Stock reads stock positions. Products missing from the result hold no
// stock as of date.
type Stock interface {
	PositionsAsOf(ctx context.Context, date time.Time) (map[id.ID]stock.Position, error)
}

// Payments reads payment records and balances.
type Payments interface {
	Records(ctx context.Context, filter payment.RecordFilter) ([]payment.Record, error)
	Balances(ctx context.Context, filter payment.BalanceFilter) ([]payment.Balance, error)
}

// Expenses reads recorded expenses.
type Expenses interface {
	ListRange(ctx context.Context, from, to time.Time) ([]*expense.Expense, error)
}

// Sources are the read models a report draws on.
type Sources struct {
	Documents Documents
	Products  product.Directory
	Stock     Stock
	Payments  Payments
	Expenses  Expenses
}
