// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/infrastructure/storage/postgres"
)

const stockEntriesTable = "reg_stock_entries"

var stockEntryColumns = postgres.ExtractDBColumns[stock.Entry]()

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	batch     *postgres.BatchExecutor
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		batch:     postgres.NewBatchExecutor(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ stock.Repository = (*StockRepo)(nil)

// LockProducts takes transaction-scoped advisory locks on the products so
// that writers in other processes serialize too.
func (r *StockRepo) LockProducts(ctx context.Context, productIDs []id.ID) error {
	keys := make([]string, len(productIDs))
	for i, p := range productIDs {
		keys[i] = stock.LockKey(p)
	}
	return r.txManager.AdvisoryLock(ctx, keys...)
}

// Insert stores a new entry.
func (r *StockRepo) Insert(ctx context.Context, e *stock.Entry) error {
	sql, args, err := r.builder.
		Insert(stockEntriesTable).
		SetMap(postgres.StructToMap(e)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock entry: %w", err)
	}
	return nil
}

// UpdateRunningBalances persists recomputed balances in one batch.
// MUST be called inside a transaction context.
func (r *StockRepo) UpdateRunningBalances(ctx context.Context, updates []stock.BalanceUpdate) error {
	queries := make([]postgres.BatchQuery, 0, len(updates))
	for _, u := range updates {
		queries = append(queries, postgres.BatchQuery{
			SQL:        "UPDATE " + stockEntriesTable + " SET running_balance = $1 WHERE id = $2",
			Args:       []any{u.RunningBalance, u.EntryID},
			ExpectRows: 1,
		})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("update running balances: %w", err)
	}
	return nil
}

// MarkVoided stamps voided_at and void_reason once.
func (r *StockRepo) MarkVoided(ctx context.Context, entryID id.ID, at time.Time, reason string) error {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE reg_stock_entries
		SET voided_at = $1, void_reason = $2
		WHERE id = $3 AND voided_at IS NULL
	`, at, reason, entryID)
	if err != nil {
		return fmt.Errorf("void stock entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, entryID); err != nil {
			return err
		}
		return apperror.NewValidation("stock entry is already voided").
			WithDetail("entry_id", entryID.String())
	}
	return nil
}

// GetByID retrieves one entry.
func (r *StockRepo) GetByID(ctx context.Context, entryID id.ID) (*stock.Entry, error) {
	sql, args, err := r.builder.
		Select(stockEntryColumns...).
		From(stockEntriesTable).
		Where(squirrel.Eq{"id": entryID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e stock.Entry
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock entry", entryID.String())
		}
		return nil, fmt.Errorf("get stock entry: %w", err)
	}
	return &e, nil
}

func (r *StockRepo) selectEntries(ctx context.Context, q squirrel.SelectBuilder) ([]stock.Entry, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entries := make([]stock.Entry, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock entries: %w", err)
	}
	return entries, nil
}

// ListByProduct returns every entry of a product ordered by
// (occurred_on, sequence), voided ones included.
func (r *StockRepo) ListByProduct(ctx context.Context, productID id.ID) ([]stock.Entry, error) {
	return r.selectEntries(ctx, r.builder.
		Select(stockEntryColumns...).
		From(stockEntriesTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("occurred_on", "sequence"))
}

// ListByReference returns the entries a document produced.
func (r *StockRepo) ListByReference(ctx context.Context, refType stock.ReferenceType, refID id.ID) ([]stock.Entry, error) {
	return r.selectEntries(ctx, r.builder.
		Select(stockEntryColumns...).
		From(stockEntriesTable).
		Where(squirrel.Eq{"reference_type": refType, "reference_id": refID}).
		OrderBy("occurred_on", "product_id", "sequence"))
}

// Revision counts a product's entries and voided entries.
func (r *StockRepo) Revision(ctx context.Context, productID id.ID) (stock.Revision, error) {
	sql, args, err := r.builder.
		Select("count(*) AS entries", "count(voided_at) AS voided").
		From(stockEntriesTable).
		Where(squirrel.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return stock.Revision{}, fmt.Errorf("build query: %w", err)
	}

	var rev stock.Revision
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &rev, sql, args...); err != nil {
		return stock.Revision{}, fmt.Errorf("stock revision: %w", err)
	}
	return rev, nil
}

// ProductIDs returns the distinct products that have entries.
func (r *StockRepo) ProductIDs(ctx context.Context) ([]id.ID, error) {
	var ids []id.ID
	err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids,
		"SELECT DISTINCT product_id FROM "+stockEntriesTable+" ORDER BY product_id")
	if err != nil {
		return nil, fmt.Errorf("stock products: %w", err)
	}
	return ids, nil
}
