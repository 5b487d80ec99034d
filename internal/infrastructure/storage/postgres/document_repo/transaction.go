// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/tax"
	"gstledger/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "doc_transactions"
	linesTable     = "doc_transaction_lines"
)

var lineColumns = []string{
	"document_id", "line_no", "product_id", "hsn_code", "quantity", "rate", "discount",
	"gst_rate_percent", "taxable_value", "cgst", "sgst", "igst", "line_total",
}

// documentRow is the flat header row. The counterparty snapshot is stored
// in counterparty_* columns.
type documentRow struct {
	ID            id.ID                 `db:"id"`
	Version       int                   `db:"version"`
	DocType       transaction.DocType   `db:"doc_type"`
	Number        string                `db:"number"`
	FinancialYear string                `db:"financial_year"`
	Date          time.Time             `db:"date"`
	DueDate       *time.Time            `db:"due_date"`
	Status        entity.DocumentStatus `db:"status"`
	PostedAt      *time.Time            `db:"posted_at"`
	CancelledAt   *time.Time            `db:"cancelled_at"`
	Notes         string                `db:"notes"`

	CounterpartyID        id.ID      `db:"counterparty_id"`
	CounterpartyName      string     `db:"counterparty_name"`
	CounterpartyGSTStatus tax.Status `db:"counterparty_gst_status"`
	CounterpartyGSTIN     string     `db:"counterparty_gstin"`
	CounterpartyStateCode string     `db:"counterparty_state_code"`

	PlaceOfSupply   string     `db:"place_of_supply"`
	SellerStateCode string     `db:"seller_state_code"`
	SellerStatus    tax.Status `db:"seller_gst_status"`
	VendorRef       string     `db:"vendor_ref"`
	AmendsID        *id.ID     `db:"amends_id"`
	CancelReason    string     `db:"cancel_reason"`

	TaxableValue types.Money `db:"taxable_value"`
	CGST         types.Money `db:"cgst"`
	SGST         types.Money `db:"sgst"`
	IGST         types.Money `db:"igst"`
	TotalTax     types.Money `db:"total_tax"`
	GrandTotal   types.Money `db:"grand_total"`

	CreatedBy string    `db:"created_by"`
	UpdatedBy string    `db:"updated_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var documentColumns = postgres.ExtractDBColumns[documentRow]()

func toRow(d *transaction.Document) documentRow {
	return documentRow{
		ID:                    d.ID,
		Version:               d.Version,
		DocType:               d.DocType,
		Number:                d.Number,
		FinancialYear:         d.FinancialYear,
		Date:                  d.Date,
		DueDate:               d.DueDate,
		Status:                d.Status,
		PostedAt:              d.PostedAt,
		CancelledAt:           d.CancelledAt,
		Notes:                 d.Notes,
		CounterpartyID:        d.CounterpartyID,
		CounterpartyName:      d.Counterparty.Name,
		CounterpartyGSTStatus: d.Counterparty.GSTStatus,
		CounterpartyGSTIN:     d.Counterparty.GSTIN,
		CounterpartyStateCode: d.Counterparty.StateCode,
		PlaceOfSupply:         d.PlaceOfSupply,
		SellerStateCode:       d.SellerStateCode,
		SellerStatus:          d.SellerStatus,
		VendorRef:             d.VendorRef,
		AmendsID:              d.AmendsID,
		CancelReason:          d.CancelReason,
		TaxableValue:          d.TaxableValue,
		CGST:                  d.CGST,
		SGST:                  d.SGST,
		IGST:                  d.IGST,
		TotalTax:              d.TotalTax,
		GrandTotal:            d.GrandTotal,
		CreatedBy:             d.CreatedBy,
		UpdatedBy:             d.UpdatedBy,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

func (row *documentRow) toDocument() *transaction.Document {
	d := &transaction.Document{
		DocType:        row.DocType,
		FinancialYear:  row.FinancialYear,
		DueDate:        row.DueDate,
		CounterpartyID: row.CounterpartyID,
		Counterparty: transaction.Counterparty{
			Name:      row.CounterpartyName,
			GSTStatus: row.CounterpartyGSTStatus,
			GSTIN:     row.CounterpartyGSTIN,
			StateCode: row.CounterpartyStateCode,
		},
		PlaceOfSupply:   row.PlaceOfSupply,
		SellerStateCode: row.SellerStateCode,
		SellerStatus:    row.SellerStatus,
		VendorRef:       row.VendorRef,
		AmendsID:        row.AmendsID,
		CancelReason:    row.CancelReason,
		Totals: transaction.Totals{
			TaxableValue: row.TaxableValue,
			CGST:         row.CGST,
			SGST:         row.SGST,
			IGST:         row.IGST,
			TotalTax:     row.TotalTax,
			GrandTotal:   row.GrandTotal,
		},
	}
	d.ID = row.ID
	d.Version = row.Version
	d.Number = row.Number
	d.Date = types.DateOf(row.Date)
	d.Status = row.Status
	d.PostedAt = row.PostedAt
	d.CancelledAt = row.CancelledAt
	d.Notes = row.Notes
	d.CreatedBy = row.CreatedBy
	d.UpdatedBy = row.UpdatedBy
	d.CreatedAt = row.CreatedAt
	d.UpdatedAt = row.UpdatedAt
	if d.DueDate != nil {
		due := types.DateOf(*d.DueDate)
		d.DueDate = &due
	}
	return d
}

type lineRow struct {
	DocumentID id.ID `db:"document_id"`
	transaction.Line
}

// TransactionRepo implements transaction.Repository.
type TransactionRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewTransactionRepo creates a new invoice/purchase repository.
func NewTransactionRepo(txManager *postgres.TxManager) *TransactionRepo {
	return &TransactionRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var (
	_ transaction.Repository = (*TransactionRepo)(nil)
	_ payment.DocumentStates = (*TransactionRepo)(nil)
)

// Create inserts header and lines. MUST be called inside a transaction.
func (r *TransactionRepo) Create(ctx context.Context, doc *transaction.Document) error {
	data := postgres.StructToMap(toRow(doc))

	sql, args, err := r.builder.
		Insert(documentsTable).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("document", "number", doc.Number).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", documentsTable, err)
	}

	return r.insertLines(ctx, doc.ID, doc.Lines)
}

// insertLines copies lines in one round trip. Decimals travel as text.
func (r *TransactionRepo) insertLines(ctx context.Context, docID id.ID, lines []transaction.Line) error {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{
			docID, l.LineNo, l.ProductID, l.HSNCode, l.Quantity,
			l.Rate.String(), l.Discount.String(), l.GSTRatePercent.String(),
			l.TaxableValue.String(), l.CGST.String(), l.SGST.String(), l.IGST.String(), l.LineTotal.String(),
		})
	}
	if _, err := r.inserter.CopyFromSlice(ctx, linesTable, lineColumns, rows); err != nil {
		return fmt.Errorf("copy lines: %w", err)
	}
	return nil
}

func (r *TransactionRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(documentColumns...).From(documentsTable)
}

func (r *TransactionRepo) getOne(ctx context.Context, docID id.ID, forUpdate bool) (*transaction.Document, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": docID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	doc := row.toDocument()
	lines, err := r.loadLines(ctx, []id.ID{docID})
	if err != nil {
		return nil, err
	}
	doc.Lines = lines[docID]
	return doc, nil
}

// loadLines returns the lines of each document ordered by line_no.
func (r *TransactionRepo) loadLines(ctx context.Context, docIDs []id.ID) (map[id.ID][]transaction.Line, error) {
	out := make(map[id.ID][]transaction.Line, len(docIDs))
	if len(docIDs) == 0 {
		return out, nil
	}

	sql, args, err := r.builder.
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"document_id": docIDs}).
		OrderBy("document_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	for _, row := range rows {
		out[row.DocumentID] = append(out[row.DocumentID], row.Line)
	}
	return out, nil
}

// GetByID retrieves a document with its lines.
func (r *TransactionRepo) GetByID(ctx context.Context, docID id.ID) (*transaction.Document, error) {
	return r.getOne(ctx, docID, false)
}

// GetForUpdate retrieves a document with its lines under a row lock.
func (r *TransactionRepo) GetForUpdate(ctx context.Context, docID id.ID) (*transaction.Document, error) {
	return r.getOne(ctx, docID, true)
}

// Update saves the header with optimistic locking and replaces the lines.
func (r *TransactionRepo) Update(ctx context.Context, doc *transaction.Document) error {
	now := time.Now().UTC()

	data := postgres.StructToMap(toRow(doc))
	for _, col := range []string{"id", "version", "created_at", "created_by"} {
		delete(data, col)
	}
	data["updated_at"] = now

	sql, args, err := r.builder.
		Update(documentsTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": doc.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", documentsTable, err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.DocumentStatus(ctx, doc.ID); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("document", doc.ID.String())
	}

	if _, err := querier.Exec(ctx, "DELETE FROM "+linesTable+" WHERE document_id = $1", doc.ID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}
	if err := r.insertLines(ctx, doc.ID, doc.Lines); err != nil {
		return err
	}

	doc.Version++
	doc.UpdatedAt = now
	return nil
}

// applyFilter narrows q to the documents matching filter.
func applyFilter(q squirrel.SelectBuilder, filter transaction.ListFilter) squirrel.SelectBuilder {
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if filter.DocType != nil {
		q = q.Where(squirrel.Eq{"doc_type": *filter.DocType})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.CounterpartyID != nil {
		q = q.Where(squirrel.Eq{"counterparty_id": *filter.CounterpartyID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"counterparty_name": pattern},
		})
	}
	return q
}

// orderColumns sorts by (date, number, id); a leading "-" reverses it.
func orderColumns(orderBy string) []string {
	dir := "ASC"
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
	}
	return []string{"date " + dir, "number " + dir, "id " + dir}
}

// List retrieves headers (without lines) with filtering.
func (r *TransactionRepo) List(ctx context.Context, filter transaction.ListFilter) (domain.ListResult[*transaction.Document], error) {
	result := domain.ListResult[*transaction.Document]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := applyFilter(r.baseSelect(), filter)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy(orderColumns(filter.OrderBy)...)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}

	result.Items = make([]*transaction.Document, 0, len(rows))
	for i := range rows {
		result.Items = append(result.Items, rows[i].toDocument())
	}
	return result, nil
}

// ListPosted returns posted documents of docType dated within [from, to],
// with lines, ordered by (date, number).
func (r *TransactionRepo) ListPosted(ctx context.Context, docType transaction.DocType, from, to time.Time) ([]*transaction.Document, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"doc_type": docType, "status": entity.StatusPosted}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy(orderColumns("date")...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list posted: %w", err)
	}

	docs := make([]*transaction.Document, 0, len(rows))
	ids := make([]id.ID, 0, len(rows))
	for i := range rows {
		docs = append(docs, rows[i].toDocument())
		ids = append(ids, rows[i].ID)
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		d.Lines = lines[d.ID]
	}
	return docs, nil
}

// DocumentStatus returns only the status.
func (r *TransactionRepo) DocumentStatus(ctx context.Context, docID id.ID) (entity.DocumentStatus, error) {
	var status entity.DocumentStatus
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		"SELECT status FROM "+documentsTable+" WHERE id = $1", docID).Scan(&status)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", apperror.NewNotFound("document", docID.String())
		}
		return "", fmt.Errorf("document status: %w", err)
	}
	return status, nil
}
