package dto

import (
	"time"

	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/registers/payment"
)

// ApplyPaymentRequest is the body of POST /documents/:id/payments.
type ApplyPaymentRequest struct {
	Amount      types.Money `json:"amount"`
	Method      string      `json:"method" binding:"required,oneof=cash bank upi card cheque"`
	PaidOn      string      `json:"paidOn" binding:"required,date"`
	AccountHead string      `json:"accountHead" binding:"omitempty,max=64"`
	Reference   string      `json:"reference" binding:"omitempty,max=128"`
}

// ToApply converts the body to a ledger request for docID.
func (r ApplyPaymentRequest) ToApply(docID id.ID) (payment.ApplyRequest, error) {
	paidOn, err := ParseDate("paidOn", r.PaidOn)
	if err != nil {
		return payment.ApplyRequest{}, err
	}
	return payment.ApplyRequest{
		DocumentID:  docID,
		Amount:      r.Amount,
		Method:      payment.Method(r.Method),
		PaidOn:      paidOn,
		AccountHead: r.AccountHead,
		Reference:   r.Reference,
	}, nil
}

// ReversePaymentRequest is the body of POST /payments/:id/reverse.
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentResponse is a payment or reversal record.
type PaymentResponse struct {
	ID           string      `json:"id"`
	DocumentID   string      `json:"documentId"`
	Amount       types.Money `json:"amount"`
	Method       string      `json:"method"`
	PaidOn       string      `json:"paidOn"`
	AccountHead  string      `json:"accountHead"`
	Reference    string      `json:"reference,omitempty"`
	ReversesID   *string     `json:"reversesId,omitempty"`
	ReversedByID *string     `json:"reversedById,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// FromPayment maps a record to its response.
func FromPayment(r *payment.Record) PaymentResponse {
	return PaymentResponse{
		ID:           r.ID.String(),
		DocumentID:   r.DocumentID.String(),
		Amount:       r.Amount,
		Method:       string(r.Method),
		PaidOn:       types.FormatDate(r.PaidOn),
		AccountHead:  r.AccountHead,
		Reference:    r.Reference,
		ReversesID:   idPtrString(r.ReversesID),
		ReversedByID: idPtrString(r.ReversedByID),
		CreatedAt:    r.CreatedAt,
	}
}

// FromPayments maps a slice of records.
func FromPayments(recs []payment.Record) []PaymentResponse {
	out := make([]PaymentResponse, len(recs))
	for i := range recs {
		out[i] = FromPayment(&recs[i])
	}
	return out
}

// OutstandingResponse is the balance of one document.
type OutstandingResponse struct {
	DocumentID  string      `json:"documentId"`
	Kind        string      `json:"kind"`
	GrandTotal  types.Money `json:"grandTotal"`
	Paid        types.Money `json:"paid"`
	Outstanding types.Money `json:"outstanding"`
	Status      string      `json:"status"`
	DueDate     *string     `json:"dueDate,omitempty"`
}

// FromBalance maps a balance row to its response.
func FromBalance(b *payment.Balance) OutstandingResponse {
	return OutstandingResponse{
		DocumentID:  b.DocumentID.String(),
		Kind:        string(b.Kind),
		GrandTotal:  b.GrandTotal,
		Paid:        b.Paid,
		Outstanding: b.Outstanding,
		Status:      string(b.Status),
		DueDate:     formatDatePtr(b.DueDate),
	}
}
