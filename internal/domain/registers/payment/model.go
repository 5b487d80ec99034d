// Package payment provides the payment ledger: payments applied against
// posted documents with an outstanding-balance invariant per document.
package payment

import (
	"strings"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
)

// Method is how money moved.
type Method string

const (
	MethodCash   Method = "cash"
	MethodBank   Method = "bank"
	MethodUPI    Method = "upi"
	MethodCard   Method = "card"
	MethodCheque Method = "cheque"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBank, MethodUPI, MethodCard, MethodCheque:
		return true
	}
	return false
}

// DefaultAccountHead is the cash/bank head a method settles into when the
// caller does not name one.
func (m Method) DefaultAccountHead() string {
	if m == MethodCash {
		return "Cash"
	}
	return "Bank"
}

// Kind says which way a balance runs.
type Kind string

const (
	// KindReceivable is owed to us (invoices).
	KindReceivable Kind = "receivable"
	// KindPayable is owed by us (purchases).
	KindPayable Kind = "payable"
)

// Record is one payment or reversal. Records are immutable apart from the
// reversed_by back-link, written once.
type Record struct {
	ID         id.ID `db:"id" json:"id"`
	DocumentID id.ID `db:"document_id" json:"documentId"`
	// Amount is positive for payments, negative for reversals.
	Amount       types.Money `db:"amount" json:"amount"`
	Method       Method      `db:"method" json:"method"`
	PaidOn       time.Time   `db:"paid_on" json:"paidOn"`
	AccountHead  string      `db:"account_head" json:"accountHead"`
	Reference    string      `db:"reference" json:"reference,omitempty"`
	ReversesID   *id.ID      `db:"reverses_id" json:"reversesId,omitempty"`
	ReversedByID *id.ID      `db:"reversed_by_id" json:"reversedById,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
}

// IsReversal reports whether the record offsets another one.
func (r *Record) IsReversal() bool {
	return r.ReversesID != nil
}

// IsReversed reports whether a reversal already offsets this record.
func (r *Record) IsReversed() bool {
	return r.ReversedByID != nil
}

// BalanceStatus is the lifecycle of a document balance.
type BalanceStatus string

const (
	BalanceOpen   BalanceStatus = "open"
	BalanceClosed BalanceStatus = "closed"
)

// Balance is the per-document outstanding row, opened when the document is
// posted. Version is the compare-and-set token for concurrent payments.
type Balance struct {
	DocumentID     id.ID         `db:"document_id" json:"documentId"`
	Kind           Kind          `db:"kind" json:"kind"`
	CounterpartyID id.ID         `db:"counterparty_id" json:"counterpartyId"`
	DocumentDate   time.Time     `db:"document_date" json:"documentDate"`
	DueDate        *time.Time    `db:"due_date" json:"dueDate,omitempty"`
	GrandTotal     types.Money   `db:"grand_total" json:"grandTotal"`
	Paid           types.Money   `db:"paid" json:"paid"`
	Outstanding    types.Money   `db:"outstanding" json:"outstanding"`
	Status         BalanceStatus `db:"status" json:"status"`
	Version        int           `db:"version" json:"version"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

// FullyPaid reports whether nothing is outstanding.
func (b *Balance) FullyPaid() bool {
	return b.Outstanding.IsZero()
}

// OpenRequest describes the balance to open for a posted document.
type OpenRequest struct {
	DocumentID     id.ID
	Kind           Kind
	CounterpartyID id.ID
	DocumentDate   time.Time
	DueDate        *time.Time
	GrandTotal     types.Money
}

// ApplyRequest is a payment against a document.
type ApplyRequest struct {
	DocumentID  id.ID
	Amount      types.Money
	Method      Method
	PaidOn      time.Time
	AccountHead string
	Reference   string
}

// Validate checks the request shape; balance rules are checked by the ledger.
func (r *ApplyRequest) Validate() error {
	if id.IsNil(r.DocumentID) {
		return apperror.NewValidation("document_id is required").WithDetail("field", "documentId")
	}
	if !r.Amount.IsPositive() {
		return apperror.NewValidation("payment amount must be positive").WithDetail("field", "amount")
	}
	if !types.RoundMoney(r.Amount).Equal(r.Amount) {
		return apperror.NewValidation("payment amount has more than two decimals").WithDetail("field", "amount")
	}
	if !r.Method.Valid() {
		return apperror.NewValidation("unknown payment method").
			WithDetail("field", "method").
			WithDetail("value", string(r.Method))
	}
	if r.PaidOn.IsZero() {
		return apperror.NewValidation("paid_on is required").WithDetail("field", "paidOn")
	}
	r.AccountHead = strings.TrimSpace(r.AccountHead)
	if r.AccountHead == "" {
		r.AccountHead = r.Method.DefaultAccountHead()
	}
	return nil
}
