package tax

import (
	"github.com/shopspring/decimal"

	"gstledger/internal/core/types"
)

// SupplyKind classifies how a line is taxed.
type SupplyKind string

const (
	SupplyIntraState SupplyKind = "intra_state"
	SupplyInterState SupplyKind = "inter_state"
	SupplyNoTax      SupplyKind = "no_tax"
)

var hundred = decimal.NewFromInt(100)
var two = decimal.NewFromInt(2)

// Split is the per-line tax outcome.
type Split struct {
	Kind SupplyKind  `json:"kind"`
	CGST types.Money `json:"cgst"`
	SGST types.Money `json:"sgst"`
	IGST types.Money `json:"igst"`
}

// Total returns cgst + sgst + igst.
func (s Split) Total() types.Money {
	return s.CGST.Add(s.SGST).Add(s.IGST)
}

func noTax() Split {
	return Split{Kind: SupplyNoTax, CGST: decimal.Zero, SGST: decimal.Zero, IGST: decimal.Zero}
}

// DetermineTax computes the GST split for one line.
//
// Rounding is half-up to paise and happens once per line. For intra-state
// supply the combined tax is rounded first and halved, with SGST taking the
// remainder, so cgst+sgst always equals round(value*rate/100, 2). The halves
// are therefore not always equal: when the combined tax has an odd number of
// paise, CGST is one paisa higher than SGST (e.g. 34.65 splits 17.33/17.32).
// Rounding each half separately would keep them equal but let the line total
// drift a paisa from the combined tax.
func DetermineTax(
	lineTaxableValue types.Money,
	gstRatePercent decimal.Decimal,
	sellerStateCode string,
	placeOfSupplyStateCode string,
	counterpartyStatus Status,
) Split {
	if !counterpartyStatus.TaxableCounterparty() || gstRatePercent.IsZero() {
		return noTax()
	}

	combined := types.RoundMoney(lineTaxableValue.Mul(gstRatePercent).Div(hundred))

	if sellerStateCode == placeOfSupplyStateCode {
		cgst := types.RoundMoney(combined.Div(two))
		return Split{
			Kind: SupplyIntraState,
			CGST: cgst,
			SGST: combined.Sub(cgst),
			IGST: decimal.Zero,
		}
	}

	return Split{
		Kind: SupplyInterState,
		CGST: decimal.Zero,
		SGST: decimal.Zero,
		IGST: combined,
	}
}

// Seller describes the party that charges tax on a document.
type Seller struct {
	StateCode string
	Status    Status
}

// DetermineForSeller applies the seller-side rule before DetermineTax:
// a seller that is not GST-registered levies nothing.
func DetermineForSeller(
	seller Seller,
	lineTaxableValue types.Money,
	gstRatePercent decimal.Decimal,
	placeOfSupplyStateCode string,
	counterpartyStatus Status,
) Split {
	if !seller.Status.ChargesTax() {
		return noTax()
	}
	return DetermineTax(lineTaxableValue, gstRatePercent, seller.StateCode, placeOfSupplyStateCode, counterpartyStatus)
}
