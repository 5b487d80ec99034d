// Package expense records operating expenses paid from cash or bank.
package expense

import (
	"context"
	"strings"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
)

// Cash and bank heads an expense can be paid from.
const (
	PaidFromCash = "Cash"
	PaidFromBank = "Bank"
)

// Expense is a recorded outflow booked against an account head.
type Expense struct {
	ID          id.ID       `db:"id" json:"id"`
	Date        time.Time   `db:"date" json:"date"`
	AccountHead string      `db:"account_head" json:"accountHead"`
	Amount      types.Money `db:"amount" json:"amount"`
	PaidFrom    string      `db:"paid_from" json:"paidFrom"`
	Description string      `db:"description" json:"description,omitempty"`
	CreatedBy   string      `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// Validate implements entity.Validatable interface.
func (e *Expense) Validate(ctx context.Context) error {
	if e.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if strings.TrimSpace(e.AccountHead) == "" {
		return apperror.NewValidation("account head is required").WithDetail("field", "accountHead")
	}
	if !e.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}
	if !e.Amount.Equal(types.RoundMoney(e.Amount)) {
		return apperror.NewValidation("amount has more than two decimal places").WithDetail("field", "amount")
	}
	if e.PaidFrom != PaidFromCash && e.PaidFrom != PaidFromBank {
		return apperror.NewValidation("paid from must be Cash or Bank").
			WithDetail("field", "paidFrom").
			WithDetail("value", e.PaidFrom)
	}
	return nil
}

// SetCreatedBy implements the audit enrichment contract.
func (e *Expense) SetCreatedBy(actor string) { e.CreatedBy = actor }

// SetUpdatedBy is a no-op: expenses are never updated.
func (e *Expense) SetUpdatedBy(string) {}
