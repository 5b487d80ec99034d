// Package transaction provides the Invoice and Purchase documents and the
// engine that creates, posts, cancels and amends them.
package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/domain/tax"
)

// DocType distinguishes sales from purchases.
type DocType string

const (
	DocInvoice  DocType = "invoice"
	DocPurchase DocType = "purchase"
)

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool {
	return t == DocInvoice || t == DocPurchase
}

// NumberPrefix is the series prefix: INV/2024-25/00001, PUR/2024-25/00001.
func (t DocType) NumberPrefix() string {
	if t == DocPurchase {
		return "PUR"
	}
	return "INV"
}

func (t DocType) stockEntry() (stock.EntryType, stock.ReferenceType) {
	if t == DocPurchase {
		return stock.EntryIn, stock.RefPurchase
	}
	return stock.EntryOut, stock.RefInvoice
}

func (t DocType) balanceKind() payment.Kind {
	if t == DocPurchase {
		return payment.KindPayable
	}
	return payment.KindReceivable
}

// Counterparty is the party snapshot frozen on the document.
type Counterparty struct {
	Name      string     `db:"counterparty_name" json:"name"`
	GSTStatus tax.Status `db:"counterparty_gst_status" json:"gstStatus"`
	GSTIN     string     `db:"counterparty_gstin" json:"gstin,omitempty"`
	StateCode string     `db:"counterparty_state_code" json:"stateCode"`
}

// Line is one goods line. Discount is an absolute amount off qty*rate.
type Line struct {
	LineNo         int             `db:"line_no" json:"lineNo"`
	ProductID      id.ID           `db:"product_id" json:"productId"`
	HSNCode        string          `db:"hsn_code" json:"hsnCode"`
	Quantity       types.Quantity  `db:"quantity" json:"quantity"`
	Rate           types.Money     `db:"rate" json:"rate"`
	Discount       types.Money     `db:"discount" json:"discount"`
	GSTRatePercent decimal.Decimal `db:"gst_rate_percent" json:"gstRatePercent"`

	TaxableValue types.Money `db:"taxable_value" json:"taxableValue"`
	CGST         types.Money `db:"cgst" json:"cgst"`
	SGST         types.Money `db:"sgst" json:"sgst"`
	IGST         types.Money `db:"igst" json:"igst"`
	LineTotal    types.Money `db:"line_total" json:"lineTotal"`
}

// Totals are the document sums of its lines.
type Totals struct {
	TaxableValue types.Money `db:"taxable_value" json:"taxableValue"`
	CGST         types.Money `db:"cgst" json:"cgst"`
	SGST         types.Money `db:"sgst" json:"sgst"`
	IGST         types.Money `db:"igst" json:"igst"`
	TotalTax     types.Money `db:"total_tax" json:"totalTax"`
	GrandTotal   types.Money `db:"grand_total" json:"grandTotal"`
}

// Equal compares totals by value.
func (t Totals) Equal(o Totals) bool {
	return t.TaxableValue.Equal(o.TaxableValue) &&
		t.CGST.Equal(o.CGST) &&
		t.SGST.Equal(o.SGST) &&
		t.IGST.Equal(o.IGST) &&
		t.TotalTax.Equal(o.TotalTax) &&
		t.GrandTotal.Equal(o.GrandTotal)
}

// Document is an Invoice or Purchase.
type Document struct {
	entity.Document

	DocType       DocType    `db:"doc_type" json:"docType"`
	FinancialYear string     `db:"financial_year" json:"financialYear"`
	DueDate       *time.Time `db:"due_date" json:"dueDate,omitempty"`

	CounterpartyID id.ID        `db:"counterparty_id" json:"counterpartyId"`
	Counterparty   Counterparty `json:"counterparty"`

	// PlaceOfSupply is the state where supply is consumed.
	PlaceOfSupply string `db:"place_of_supply" json:"placeOfSupply"`
	// SellerStateCode and SellerStatus snapshot whoever charges tax: our
	// profile on invoices, the vendor on purchases.
	SellerStateCode string     `db:"seller_state_code" json:"sellerStateCode"`
	SellerStatus    tax.Status `db:"seller_gst_status" json:"sellerGstStatus"`

	// VendorRef is the supplier's own bill number on purchases.
	VendorRef string `db:"vendor_ref" json:"vendorRef,omitempty"`

	AmendsID     *id.ID `db:"amends_id" json:"amendsId,omitempty"`
	CancelReason string `db:"cancel_reason" json:"cancelReason,omitempty"`

	Totals

	Lines []Line `db:"-" json:"lines"`
}

// Seller returns the tax-charging side recorded on the document.
func (d *Document) Seller() tax.Seller {
	return tax.Seller{StateCode: d.SellerStateCode, Status: d.SellerStatus}
}

// Validate implements entity.Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}
	if !d.DocType.Valid() {
		return apperror.NewValidation("unknown document type").
			WithDetail("field", "docType").
			WithDetail("value", string(d.DocType))
	}
	if id.IsNil(d.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").WithDetail("field", "counterpartyId")
	}
	if !tax.ValidStateCode(d.PlaceOfSupply) {
		return apperror.NewValidation("unknown place of supply").
			WithDetail("field", "placeOfSupply").
			WithDetail("value", d.PlaceOfSupply)
	}
	if d.DueDate != nil && d.DueDate.Before(d.Date) {
		return apperror.NewValidation("due date is before document date").WithDetail("field", "dueDate")
	}
	if len(d.Lines) == 0 {
		return apperror.NewValidation("document has no lines").WithDetail("field", "lines")
	}
	return nil
}

// ProductIDs returns the distinct products on the document, sorted.
func (d *Document) ProductIDs() []id.ID {
	ids := make([]id.ID, 0, len(d.Lines))
	for _, l := range d.Lines {
		ids = append(ids, l.ProductID)
	}
	return id.SortedUnique(ids)
}
