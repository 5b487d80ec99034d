package dto

import (
	"time"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/expense"
)

// RecordExpenseRequest is the body of POST /expenses.
type RecordExpenseRequest struct {
	Date        string      `json:"date" binding:"required,date"`
	AccountHead string      `json:"accountHead" binding:"required,max=64"`
	Amount      types.Money `json:"amount"`
	PaidFrom    string      `json:"paidFrom" binding:"omitempty,oneof=Cash Bank"`
	Description string      `json:"description" binding:"omitempty,max=500"`
}

// ToRecord converts the body to a service request.
func (r RecordExpenseRequest) ToRecord() (expense.RecordRequest, error) {
	date, err := ParseDate("date", r.Date)
	if err != nil {
		return expense.RecordRequest{}, err
	}
	return expense.RecordRequest{
		Date:        date,
		AccountHead: r.AccountHead,
		Amount:      r.Amount,
		PaidFrom:    r.PaidFrom,
		Description: r.Description,
	}, nil
}

// ExpenseListQuery holds GET /expenses parameters.
type ExpenseListQuery struct {
	ListQuery
	AccountHead string `form:"accountHead"`
	From        string `form:"from" binding:"omitempty,date"`
	To          string `form:"to" binding:"omitempty,date"`
}

// Filter converts the query into a service filter.
func (q ExpenseListQuery) Filter() (expense.ListFilter, error) {
	f := expense.ListFilter{
		ListFilter:  q.ListQuery.Filter("date"),
		AccountHead: q.AccountHead,
	}
	var err error
	if f.DateFrom, err = ParseOptionalDate("from", &q.From); err != nil {
		return f, err
	}
	if f.DateTo, err = ParseOptionalDate("to", &q.To); err != nil {
		return f, err
	}
	return f, nil
}

// ExpenseResponse is a recorded expense.
type ExpenseResponse struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	AccountHead string      `json:"accountHead"`
	Amount      types.Money `json:"amount"`
	PaidFrom    string      `json:"paidFrom"`
	Description string      `json:"description,omitempty"`
	CreatedBy   string      `json:"createdBy,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// FromExpense maps an expense to its response.
func FromExpense(e *expense.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:          e.ID.String(),
		Date:        types.FormatDate(e.Date),
		AccountHead: e.AccountHead,
		Amount:      e.Amount,
		PaidFrom:    e.PaidFrom,
		Description: e.Description,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
}
