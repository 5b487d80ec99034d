package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/core/keylock"
	"gstledger/internal/core/tx"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
	"gstledger/internal/domain/audit"
	"gstledger/pkg/logger"
)

// LockKey is the keylock key guarding a document and its balance.
func LockKey(documentID id.ID) string {
	return "doc:" + documentID.String()
}

// Ledger applies and reverses payments. Writers on one document are
// serialized by the document lock and the balance version check.
type Ledger struct {
	repo      Repository
	documents DocumentStates
	txm       tx.Manager
	locks     *keylock.Locker
	events    domain.EventPublisher
	audit     *audit.Recorder
	now       func() time.Time
}

// LedgerConfig wires a Ledger.
type LedgerConfig struct {
	Repo      Repository
	Documents DocumentStates
	TxManager tx.Manager
	Locks     *keylock.Locker
	Events    domain.EventPublisher
	Audit     *audit.Recorder
}

// NewLedger creates a payment ledger.
func NewLedger(cfg LedgerConfig) *Ledger {
	events := cfg.Events
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Ledger{
		repo:      cfg.Repo,
		documents: cfg.Documents,
		txm:       cfg.TxManager,
		locks:     cfg.Locks,
		events:    events,
		audit:     cfg.Audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Open creates the balance row for a freshly posted document.
// Must run inside the posting transaction.
func (l *Ledger) Open(ctx context.Context, req OpenRequest) (*Balance, error) {
	if req.GrandTotal.IsNegative() {
		return nil, apperror.NewValidation("grand total cannot be negative")
	}
	b := &Balance{
		DocumentID:     req.DocumentID,
		Kind:           req.Kind,
		CounterpartyID: req.CounterpartyID,
		DocumentDate:   types.DateOf(req.DocumentDate),
		DueDate:        req.DueDate,
		GrandTotal:     req.GrandTotal,
		Paid:           decimal.Zero,
		Outstanding:    req.GrandTotal,
		Status:         BalanceOpen,
		Version:        1,
		UpdatedAt:      l.now(),
	}
	if err := l.repo.CreateBalance(ctx, b); err != nil {
		return nil, fmt.Errorf("open balance: %w", err)
	}
	return b, nil
}

// Close marks a balance closed. It fails with PaymentsExist while any net
// amount is paid. Must run inside the cancelling transaction.
func (l *Ledger) Close(ctx context.Context, documentID id.ID) error {
	b, err := l.repo.GetBalance(ctx, documentID)
	if err != nil {
		return err
	}
	if !b.Paid.IsZero() {
		return apperror.NewPaymentsExist(documentID.String(), types.FormatMoney(b.Paid))
	}
	expected := b.Version
	b.Status = BalanceClosed
	b.Outstanding = decimal.Zero
	b.Version++
	b.UpdatedAt = l.now()
	return l.repo.UpdateBalance(ctx, b, expected)
}

// stateError explains why a document without an open balance cannot take
// payments.
func (l *Ledger) stateError(ctx context.Context, documentID id.ID, operation string) error {
	if l.documents == nil {
		return apperror.NewNotFound("document", documentID.String())
	}
	status, err := l.documents.DocumentStatus(ctx, documentID)
	if err != nil {
		return err
	}
	return apperror.NewInvalidDocumentState(documentID.String(), string(status), operation)
}

// Apply records a payment against a posted document.
func (l *Ledger) Apply(ctx context.Context, req ApplyRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, unlock, err := l.locks.Hold(ctx, LockKey(req.DocumentID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var rec *Record
	err = l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.LockDocument(ctx, req.DocumentID); err != nil {
			return fmt.Errorf("lock document: %w", err)
		}

		b, err := l.repo.GetBalance(ctx, req.DocumentID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return l.stateError(ctx, req.DocumentID, "pay")
			}
			return err
		}
		if b.Status != BalanceOpen {
			return apperror.NewInvalidDocumentState(req.DocumentID.String(), string(entity.StatusCancelled), "pay")
		}
		if req.Amount.GreaterThan(b.Outstanding) {
			return apperror.NewOverpayment(req.DocumentID.String(),
				types.FormatMoney(req.Amount), types.FormatMoney(b.Outstanding))
		}

		rec = &Record{
			ID:          id.New(),
			DocumentID:  req.DocumentID,
			Amount:      req.Amount,
			Method:      req.Method,
			PaidOn:      types.DateOf(req.PaidOn),
			AccountHead: req.AccountHead,
			Reference:   strings.TrimSpace(req.Reference),
			CreatedAt:   l.now(),
		}
		if err := l.repo.InsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := l.adjust(ctx, b, req.Amount); err != nil {
			return err
		}
		return l.emit(ctx, domain.EventPaymentApplied, audit.ActionPayment, rec, b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment applied",
		"document_id", req.DocumentID,
		"payment_id", rec.ID,
		"amount", types.FormatMoney(rec.Amount))

	return rec, nil
}

// Reverse offsets a payment with a negative record of the same amount.
// Outstanding returns exactly to its value before the payment.
func (l *Ledger) Reverse(ctx context.Context, paymentID id.ID, reason string) (*Record, error) {
	orig, err := l.repo.GetRecord(ctx, paymentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("payment", paymentID.String())
		}
		return nil, err
	}

	ctx, unlock, err := l.locks.Hold(ctx, LockKey(orig.DocumentID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var rev *Record
	err = l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.LockDocument(ctx, orig.DocumentID); err != nil {
			return fmt.Errorf("lock document: %w", err)
		}

		orig, err := l.repo.GetRecord(ctx, paymentID)
		if err != nil {
			return err
		}
		if orig.IsReversal() {
			return apperror.NewValidation("a reversal cannot be reversed").
				WithDetail("payment_id", paymentID.String())
		}
		if orig.IsReversed() {
			return apperror.NewValidation("payment is already reversed").
				WithDetail("payment_id", paymentID.String()).
				WithDetail("reversed_by", orig.ReversedByID.String())
		}

		b, err := l.repo.GetBalance(ctx, orig.DocumentID)
		if err != nil {
			return err
		}
		if b.Status != BalanceOpen {
			return apperror.NewInvalidDocumentState(orig.DocumentID.String(), string(entity.StatusCancelled), "reverse a payment on")
		}

		reversesID := orig.ID
		ref := strings.TrimSpace(reason)
		if ref == "" {
			ref = "reversal"
		}
		rev = &Record{
			ID:          id.New(),
			DocumentID:  orig.DocumentID,
			Amount:      orig.Amount.Neg(),
			Method:      orig.Method,
			PaidOn:      types.DateOf(l.now()),
			AccountHead: orig.AccountHead,
			Reference:   ref,
			ReversesID:  &reversesID,
			CreatedAt:   l.now(),
		}
		if err := l.repo.InsertRecord(ctx, rev); err != nil {
			return fmt.Errorf("insert reversal: %w", err)
		}
		if err := l.repo.SetReversedBy(ctx, orig.ID, rev.ID); err != nil {
			return fmt.Errorf("link reversal: %w", err)
		}
		if err := l.adjust(ctx, b, rev.Amount); err != nil {
			return err
		}
		return l.emit(ctx, domain.EventPaymentReversed, audit.ActionReverse, rev, b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment reversed",
		"document_id", rev.DocumentID,
		"payment_id", paymentID,
		"reversal_id", rev.ID)

	return rev, nil
}

// adjust moves paid and outstanding by amount with a version check.
func (l *Ledger) adjust(ctx context.Context, b *Balance, amount types.Money) error {
	expected := b.Version
	b.Paid = b.Paid.Add(amount)
	b.Outstanding = b.GrandTotal.Sub(b.Paid)
	if b.Outstanding.IsNegative() || b.Paid.IsNegative() {
		return apperror.NewInternal(fmt.Errorf("payment balance out of range for %s", b.DocumentID))
	}
	b.Version++
	b.UpdatedAt = l.now()
	if err := l.repo.UpdateBalance(ctx, b, expected); err != nil {
		return err
	}
	return nil
}

func (l *Ledger) emit(ctx context.Context, eventType string, action audit.Action, rec *Record, b *Balance) error {
	payload := map[string]any{
		"paymentId":   rec.ID,
		"documentId":  rec.DocumentID,
		"amount":      types.FormatMoney(rec.Amount),
		"method":      rec.Method,
		"paidOn":      types.FormatDate(rec.PaidOn),
		"outstanding": types.FormatMoney(b.Outstanding),
		"fullyPaid":   b.FullyPaid(),
	}
	if err := l.events.Publish(ctx, domain.Event{
		AggregateType: "document",
		AggregateID:   rec.DocumentID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	if l.audit != nil {
		if err := l.audit.Record(ctx, "payment", rec.ID, action, payload); err != nil {
			return fmt.Errorf("audit payment: %w", err)
		}
	}
	return nil
}

// Outstanding returns grand_total minus the net amount paid.
// Cancelled documents owe nothing.
func (l *Ledger) Outstanding(ctx context.Context, documentID id.ID) (types.Money, error) {
	b, err := l.Balance(ctx, documentID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Outstanding, nil
}

// Balance returns the document's balance row.
func (l *Ledger) Balance(ctx context.Context, documentID id.ID) (*Balance, error) {
	b, err := l.repo.GetBalance(ctx, documentID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, l.stateError(ctx, documentID, "query the balance of")
		}
		return nil, err
	}
	return b, nil
}

// List returns a document's payments and reversals in date order.
func (l *Ledger) List(ctx context.Context, documentID id.ID) ([]Record, error) {
	return l.repo.ListRecords(ctx, RecordFilter{DocumentID: &documentID})
}

// Records returns payments matching filter (used by reports).
func (l *Ledger) Records(ctx context.Context, filter RecordFilter) ([]Record, error) {
	return l.repo.ListRecords(ctx, filter)
}

// Balances returns balances matching filter (used by reports).
func (l *Ledger) Balances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	return l.repo.ListBalances(ctx, filter)
}
