package dto

import (
	"time"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/registers/stock"
)

// AdjustmentRequest is the body of POST /stock/adjustments.
// Quantity is signed: positive adds stock, negative removes it.
type AdjustmentRequest struct {
	ProductID string         `json:"productId" binding:"required,uuid"`
	Date      string         `json:"date" binding:"required,date"`
	Quantity  types.Quantity `json:"quantity"`
	UnitValue types.Money    `json:"unitValue"`
}

// ToMovement converts the body to a manual ADJUST movement.
func (r AdjustmentRequest) ToMovement() (stock.Movement, error) {
	pid, err := ParseID("productId", r.ProductID)
	if err != nil {
		return stock.Movement{}, err
	}
	on, err := ParseDate("date", r.Date)
	if err != nil {
		return stock.Movement{}, err
	}
	return stock.Movement{
		ProductID:     pid,
		OccurredOn:    on,
		EntryType:     stock.EntryAdjust,
		Quantity:      r.Quantity,
		UnitValue:     r.UnitValue,
		ReferenceType: stock.RefManual,
	}, nil
}

// VoidEntryRequest is the body of POST /stock/entries/:id/void.
type VoidEntryRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// BalanceQuery holds GET /stock/:productId/balance parameters.
type BalanceQuery struct {
	AsOf string `form:"asOf" binding:"omitempty,date"`
}

// StockEntryResponse is one stock ledger entry.
type StockEntryResponse struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"productId"`
	OccurredOn     string         `json:"occurredOn"`
	Sequence       int64          `json:"sequence"`
	EntryType      string         `json:"entryType"`
	Quantity       types.Quantity `json:"quantity"`
	UnitValue      types.Money    `json:"unitValue"`
	ReferenceType  string         `json:"referenceType"`
	ReferenceID    *string        `json:"referenceId,omitempty"`
	RunningBalance types.Quantity `json:"runningBalance"`
	Voided         bool           `json:"voided"`
	VoidReason     string         `json:"voidReason,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// FromStockEntry maps an entry to its response.
func FromStockEntry(e *stock.Entry) StockEntryResponse {
	return StockEntryResponse{
		ID:             e.ID.String(),
		ProductID:      e.ProductID.String(),
		OccurredOn:     types.FormatDate(e.OccurredOn),
		Sequence:       e.Sequence,
		EntryType:      string(e.EntryType),
		Quantity:       e.Quantity,
		UnitValue:      e.UnitValue,
		ReferenceType:  string(e.ReferenceType),
		ReferenceID:    idPtrString(e.ReferenceID),
		RunningBalance: e.RunningBalance,
		Voided:         e.IsVoided(),
		VoidReason:     e.VoidReason,
		CreatedAt:      e.CreatedAt,
	}
}

// FromStockEntries maps a product history.
func FromStockEntries(entries []stock.Entry) []StockEntryResponse {
	out := make([]StockEntryResponse, len(entries))
	for i := range entries {
		out[i] = FromStockEntry(&entries[i])
	}
	return out
}

// StockBalanceResponse is a product's balance on a date.
type StockBalanceResponse struct {
	ProductID       string         `json:"productId"`
	AsOf            string         `json:"asOf"`
	Balance         types.Quantity `json:"balance"`
	LastInwardValue *types.Money   `json:"lastInwardValue,omitempty"`
}

// FromPosition maps a stock position to its response.
func FromPosition(p stock.Position, asOf time.Time) StockBalanceResponse {
	return StockBalanceResponse{
		ProductID:       p.ProductID.String(),
		AsOf:            types.FormatDate(asOf),
		Balance:         p.Balance,
		LastInwardValue: p.LastInwardValue,
	}
}
