// Package report_repo provides PostgreSQL read models for reports.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/domain/reports"
	"gstledger/internal/infrastructure/storage/postgres"
)

const stockEntriesTable = "reg_stock_entries"

// ReportRepo answers report reads with set-based queries.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ reports.Stock = (*ReportRepo)(nil)

type positionRow struct {
	ProductID       id.ID          `db:"product_id"`
	Balance         types.Quantity `db:"balance"`
	LastInwardValue *types.Money   `db:"last_inward_value"`
}

// positionsQuery selects, per product, the running balance of the last entry
// dated on or before date and the unit value of the last live inward entry.
func (r *ReportRepo) positionsQuery(date time.Time) squirrel.SelectBuilder {
	latest := squirrel.
		Select("product_id", "running_balance").
		Options("DISTINCT ON (product_id)").
		From(stockEntriesTable).
		Where(squirrel.LtOrEq{"occurred_on": date}).
		OrderBy("product_id", "occurred_on DESC", "sequence DESC")

	inward := squirrel.
		Select("product_id", "unit_value").
		Options("DISTINCT ON (product_id)").
		From(stockEntriesTable).
		Where(squirrel.LtOrEq{"occurred_on": date}).
		Where(squirrel.Eq{"voided_at": nil}).
		Where(squirrel.Expr("(entry_type = ? OR (entry_type = ? AND quantity > 0 AND unit_value > 0))",
			stock.EntryIn, stock.EntryAdjust)).
		OrderBy("product_id", "occurred_on DESC", "sequence DESC")

	inwardSQL, inwardArgs, _ := inward.ToSql()

	return r.builder.
		Select("b.product_id", "b.running_balance AS balance", "v.unit_value AS last_inward_value").
		FromSelect(latest, "b").
		LeftJoin("("+inwardSQL+") AS v ON v.product_id = b.product_id", inwardArgs...)
}

// PositionsAsOf returns every product with entries on or before date.
// Products absent from the map hold nothing as of date.
func (r *ReportRepo) PositionsAsOf(ctx context.Context, date time.Time) (map[id.ID]stock.Position, error) {
	sql, args, err := r.positionsQuery(types.DateOf(date)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []positionRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("stock positions: %w", err)
	}

	out := make(map[id.ID]stock.Position, len(rows))
	for _, row := range rows {
		out[row.ProductID] = stock.Position{
			ProductID:       row.ProductID,
			Balance:         row.Balance,
			LastInwardValue: row.LastInwardValue,
		}
	}
	return out, nil
}
