// Package stock provides the per-product stock ledger: an append-only
// sequence of movements with running balances that stay correct under
// backdated inserts and voids.
package stock

import (
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
)

// EntryType is the kind of stock movement.
type EntryType string

const (
	EntryIn     EntryType = "IN"
	EntryOut    EntryType = "OUT"
	EntryAdjust EntryType = "ADJUST"
)

// ReferenceType names what produced an entry.
type ReferenceType string

const (
	RefPurchase ReferenceType = "purchase"
	RefInvoice  ReferenceType = "invoice"
	RefManual   ReferenceType = "manual"
)

// Valid reports whether r is a known reference type.
func (r ReferenceType) Valid() bool {
	switch r {
	case RefPurchase, RefInvoice, RefManual:
		return true
	}
	return false
}

// Entry is one stock movement. Entries are never deleted; a voided entry
// keeps its quantity but contributes nothing to balances.
type Entry struct {
	ID         id.ID     `db:"id" json:"id"`
	ProductID  id.ID     `db:"product_id" json:"productId"`
	OccurredOn time.Time `db:"occurred_on" json:"occurredOn"`
	// Sequence orders entries within a product; same-day entries keep
	// insertion order.
	Sequence  int64          `db:"sequence" json:"sequence"`
	EntryType EntryType      `db:"entry_type" json:"entryType"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	// UnitValue is the cost per unit for inward entries, the sale rate for OUT.
	UnitValue     types.Money   `db:"unit_value" json:"unitValue"`
	ReferenceType ReferenceType `db:"reference_type" json:"referenceType"`
	ReferenceID   *id.ID        `db:"reference_id" json:"referenceId,omitempty"`

	RunningBalance types.Quantity `db:"running_balance" json:"runningBalance"`

	VoidedAt   *time.Time `db:"voided_at" json:"voidedAt,omitempty"`
	VoidReason string     `db:"void_reason" json:"voidReason,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// IsVoided reports whether the entry has been voided.
func (e *Entry) IsVoided() bool {
	return e.VoidedAt != nil
}

// EffectiveQuantity is the entry's contribution to the running balance.
func (e *Entry) EffectiveQuantity() types.Quantity {
	if e.IsVoided() {
		return 0
	}
	return e.Quantity
}

// IsInward reports whether the entry brought goods in at a known value.
func (e *Entry) IsInward() bool {
	switch e.EntryType {
	case EntryIn:
		return true
	case EntryAdjust:
		return e.Quantity.IsPositive() && e.UnitValue.IsPositive()
	}
	return false
}

// before orders entries by (occurred_on, sequence).
func before(a, b *Entry) bool {
	if !a.OccurredOn.Equal(b.OccurredOn) {
		return a.OccurredOn.Before(b.OccurredOn)
	}
	return a.Sequence < b.Sequence
}

// Movement is a request to append one entry.
type Movement struct {
	ProductID     id.ID
	OccurredOn    time.Time
	EntryType     EntryType
	Quantity      types.Quantity
	UnitValue     types.Money
	ReferenceType ReferenceType
	ReferenceID   *id.ID
}

// Validate checks the sign rules for the entry type.
func (m *Movement) Validate() error {
	if id.IsNil(m.ProductID) {
		return apperror.NewValidation("product_id is required").WithDetail("field", "productId")
	}
	if m.OccurredOn.IsZero() {
		return apperror.NewValidation("occurred_on is required").WithDetail("field", "occurredOn")
	}
	switch m.EntryType {
	case EntryIn:
		if !m.Quantity.IsPositive() {
			return apperror.NewValidation("IN quantity must be positive").WithDetail("field", "quantity")
		}
	case EntryOut:
		if !m.Quantity.IsNegative() {
			return apperror.NewValidation("OUT quantity must be negative").WithDetail("field", "quantity")
		}
	case EntryAdjust:
		if m.Quantity.IsZero() {
			return apperror.NewValidation("ADJUST quantity must be non-zero").WithDetail("field", "quantity")
		}
	default:
		return apperror.NewValidation("unknown entry type").
			WithDetail("field", "entryType").
			WithDetail("value", string(m.EntryType))
	}
	if !m.ReferenceType.Valid() {
		return apperror.NewValidation("unknown reference type").
			WithDetail("field", "referenceType").
			WithDetail("value", string(m.ReferenceType))
	}
	if m.ReferenceType != RefManual && (m.ReferenceID == nil || id.IsNil(*m.ReferenceID)) {
		return apperror.NewValidation("reference_id is required for document entries").
			WithDetail("field", "referenceId")
	}
	if m.UnitValue.IsNegative() {
		return apperror.NewValidation("unit value cannot be negative").WithDetail("field", "unitValue")
	}
	return nil
}

// Position is a product's stock as of a date.
type Position struct {
	ProductID id.ID          `json:"productId"`
	Balance   types.Quantity `json:"balance"`
	// LastInwardValue is the unit value of the latest inward entry on or
	// before the date, nil if there is none.
	LastInwardValue *types.Money `json:"lastInwardValue,omitempty"`
}

// Drift is an entry whose stored running balance disagrees with a re-walk.
type Drift struct {
	EntryID  id.ID          `json:"entryId"`
	Stored   types.Quantity `json:"stored"`
	Expected types.Quantity `json:"expected"`
}
