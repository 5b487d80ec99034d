package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/infrastructure/storage/postgres"
)

const (
	paymentRecordsTable  = "reg_payment_records"
	paymentBalancesTable = "reg_payment_balances"
)

var (
	paymentRecordColumns  = postgres.ExtractDBColumns[payment.Record]()
	paymentBalanceColumns = postgres.ExtractDBColumns[payment.Balance]()
)

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewPaymentRepo creates a new payment register repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ payment.Repository = (*PaymentRepo)(nil)

// LockDocument takes a transaction-scoped advisory lock on the document.
func (r *PaymentRepo) LockDocument(ctx context.Context, documentID id.ID) error {
	return r.txManager.AdvisoryLock(ctx, payment.LockKey(documentID))
}

func (r *PaymentRepo) insert(ctx context.Context, table, entityName, key string, data map[string]any) error {
	sql, args, err := r.builder.Insert(table).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate(entityName, key, fmt.Sprint(data[key])).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (r *PaymentRepo) InsertRecord(ctx context.Context, rec *payment.Record) error {
	return r.insert(ctx, paymentRecordsTable, "payment", "id", postgres.StructToMap(rec))
}

func (r *PaymentRepo) GetRecord(ctx context.Context, recordID id.ID) (*payment.Record, error) {
	sql, args, err := r.builder.
		Select(paymentRecordColumns...).
		From(paymentRecordsTable).
		Where(squirrel.Eq{"id": recordID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec payment.Record
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment", recordID.String())
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &rec, nil
}

// SetReversedBy writes the back-link once.
func (r *PaymentRepo) SetReversedBy(ctx context.Context, recordID, reversalID id.ID) error {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE reg_payment_records
		SET reversed_by_id = $1
		WHERE id = $2 AND reversed_by_id IS NULL
	`, reversalID, recordID)
	if err != nil {
		return fmt.Errorf("set reversed by: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetRecord(ctx, recordID); err != nil {
			return err
		}
		return apperror.NewValidation("payment is already reversed").
			WithDetail("payment_id", recordID.String())
	}
	return nil
}

// ListRecords returns records ordered by (paid_on, created_at, id).
func (r *PaymentRepo) ListRecords(ctx context.Context, filter payment.RecordFilter) ([]payment.Record, error) {
	q := r.builder.
		Select(paymentRecordColumns...).
		From(paymentRecordsTable).
		OrderBy("paid_on", "created_at", "id")
	if filter.DocumentID != nil {
		q = q.Where(squirrel.Eq{"document_id": *filter.DocumentID})
	}
	if filter.PaidOnTo != nil {
		q = q.Where(squirrel.LtOrEq{"paid_on": *filter.PaidOnTo})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	records := make([]payment.Record, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return records, nil
}

func (r *PaymentRepo) CreateBalance(ctx context.Context, b *payment.Balance) error {
	return r.insert(ctx, paymentBalancesTable, "payment balance", "document_id", postgres.StructToMap(b))
}

func (r *PaymentRepo) GetBalance(ctx context.Context, documentID id.ID) (*payment.Balance, error) {
	sql, args, err := r.builder.
		Select(paymentBalanceColumns...).
		From(paymentBalancesTable).
		Where(squirrel.Eq{"document_id": documentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b payment.Balance
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment balance", documentID.String())
		}
		return nil, fmt.Errorf("get payment balance: %w", err)
	}
	return &b, nil
}

// UpdateBalance saves b if the stored version equals expectedVersion.
func (r *PaymentRepo) UpdateBalance(ctx context.Context, b *payment.Balance, expectedVersion int) error {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE reg_payment_balances
		SET paid = $1, outstanding = $2, status = $3, version = $4, updated_at = $5
		WHERE document_id = $6 AND version = $7
	`, b.Paid, b.Outstanding, b.Status, b.Version, b.UpdatedAt, b.DocumentID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update payment balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetBalance(ctx, b.DocumentID); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("payment balance", b.DocumentID.String())
	}
	return nil
}

// ListBalances returns balances ordered by (document_date, document_id).
func (r *PaymentRepo) ListBalances(ctx context.Context, filter payment.BalanceFilter) ([]payment.Balance, error) {
	q := r.builder.
		Select(paymentBalanceColumns...).
		From(paymentBalancesTable).
		OrderBy("document_date", "document_id")
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.CounterpartyID != nil {
		q = q.Where(squirrel.Eq{"counterparty_id": *filter.CounterpartyID})
	}
	if filter.DocumentDateTo != nil {
		q = q.Where(squirrel.LtOrEq{"document_date": *filter.DocumentDateTo})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	balances := make([]payment.Balance, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("list payment balances: %w", err)
	}
	return balances, nil
}
