package transaction

import (
	"fmt"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/tax"
)

// validateLine checks the commercial fields of one line.
func validateLine(l *Line) error {
	field := func(name string) string { return fmt.Sprintf("lines[%d].%s", l.LineNo, name) }

	if !l.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", field("quantity"))
	}
	if l.Rate.IsNegative() {
		return apperror.NewValidation("rate cannot be negative").WithDetail("field", field("rate"))
	}
	if l.Discount.IsNegative() {
		return apperror.NewValidation("discount cannot be negative").WithDetail("field", field("discount"))
	}
	if l.Discount.GreaterThan(l.Quantity.Decimal().Mul(l.Rate)) {
		return apperror.NewValidation("discount exceeds line value").WithDetail("field", field("discount"))
	}
	if !tax.ValidRate(l.GSTRatePercent) {
		return apperror.NewValidation("gst rate is not a notified slab").
			WithDetail("field", field("gstRatePercent")).
			WithDetail("value", l.GSTRatePercent.String())
	}
	return nil
}

// computeLine fills the derived amounts of l. Taxable value is rounded to
// paise before tax is determined, so tax is computed on what is printed.
func computeLine(l *Line, seller tax.Seller, placeOfSupply string, counterparty tax.Status) {
	gross := l.Quantity.Decimal().Mul(l.Rate)
	l.TaxableValue = types.RoundMoney(gross.Sub(l.Discount))

	split := tax.DetermineForSeller(seller, l.TaxableValue, l.GSTRatePercent, placeOfSupply, counterparty)
	l.CGST = split.CGST
	l.SGST = split.SGST
	l.IGST = split.IGST
	l.LineTotal = l.TaxableValue.Add(split.Total())
}

// sumLines totals computed lines.
func sumLines(lines []Line) Totals {
	t := Totals{
		TaxableValue: decimal.Zero,
		CGST:         decimal.Zero,
		SGST:         decimal.Zero,
		IGST:         decimal.Zero,
	}
	for _, l := range lines {
		t.TaxableValue = t.TaxableValue.Add(l.TaxableValue)
		t.CGST = t.CGST.Add(l.CGST)
		t.SGST = t.SGST.Add(l.SGST)
		t.IGST = t.IGST.Add(l.IGST)
	}
	t.TotalTax = t.CGST.Add(t.SGST).Add(t.IGST)
	t.GrandTotal = t.TaxableValue.Add(t.TotalTax)
	return t
}

// Compute validates every line, fills derived amounts and totals.
func (d *Document) Compute() error {
	for i := range d.Lines {
		l := &d.Lines[i]
		l.LineNo = i + 1
		if err := validateLine(l); err != nil {
			return err
		}
		computeLine(l, d.Seller(), d.PlaceOfSupply, d.Counterparty.GSTStatus)
	}
	d.Totals = sumLines(d.Lines)
	return nil
}

// Recompute derives lines and totals from the stored inputs without
// touching d, and reports whether they match what is stored.
func (d *Document) Recompute() (Totals, bool) {
	lines := make([]Line, len(d.Lines))
	copy(lines, d.Lines)

	match := true
	for i := range lines {
		computeLine(&lines[i], d.Seller(), d.PlaceOfSupply, d.Counterparty.GSTStatus)
		stored := d.Lines[i]
		if !lines[i].TaxableValue.Equal(stored.TaxableValue) ||
			!lines[i].CGST.Equal(stored.CGST) ||
			!lines[i].SGST.Equal(stored.SGST) ||
			!lines[i].IGST.Equal(stored.IGST) ||
			!lines[i].LineTotal.Equal(stored.LineTotal) {
			match = false
		}
	}
	totals := sumLines(lines)
	return totals, match && totals.Equal(d.Totals)
}
