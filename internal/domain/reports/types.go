// Package reports builds GST returns, stock valuation and financial
// statements from committed documents and ledgers. Every report is a pure
// projection: the same committed state yields byte-identical output.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
)

// Kind names a report.
type Kind string

const (
	KindGSTR1          Kind = "gstr1"
	KindGSTR3B         Kind = "gstr3b"
	KindStockValuation Kind = "stock-valuation"
	KindProfitLoss     Kind = "pnl"
	KindBalanceSheet   Kind = "balance-sheet"
	KindOutstanding    Kind = "outstanding"
)

// ParseKind validates a report name.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	switch k {
	case KindGSTR1, KindGSTR3B, KindStockValuation, KindProfitLoss, KindBalanceSheet, KindOutstanding:
		return k, true
	}
	return "", false
}

// Filters narrow reports that support them.
type Filters struct {
	// Category limits stock valuation to one product category.
	Category string
	// ZeroStockOnly keeps only products with no stock.
	ZeroStockOnly bool
}

// Request is one report run over an inclusive date range.
type Request struct {
	Kind    Kind
	From    time.Time
	To      time.Time
	Filters Filters
}

// Result is a generated report. Exactly one body is set.
// Empty marks a range with no matching data, which is not an error.
type Result struct {
	Kind  Kind   `json:"kind"`
	From  string `json:"from"`
	To    string `json:"to"`
	Empty bool   `json:"empty"`

	GSTR1          *GSTR1          `json:"gstr1,omitempty"`
	GSTR3B         *GSTR3B         `json:"gstr3b,omitempty"`
	StockValuation *StockValuation `json:"stockValuation,omitempty"`
	ProfitLoss     *ProfitLoss     `json:"profitLoss,omitempty"`
	BalanceSheet   *BalanceSheet   `json:"balanceSheet,omitempty"`
	Outstanding    *Outstanding    `json:"outstanding,omitempty"`
}

// TaxAmounts is a taxable value with its tax heads.
type TaxAmounts struct {
	TaxableValue types.Money `json:"taxableValue"`
	CGST         types.Money `json:"cgst"`
	SGST         types.Money `json:"sgst"`
	IGST         types.Money `json:"igst"`
}

func zeroTax() TaxAmounts {
	return TaxAmounts{
		TaxableValue: decimal.Zero,
		CGST:         decimal.Zero,
		SGST:         decimal.Zero,
		IGST:         decimal.Zero,
	}
}

func (t *TaxAmounts) add(taxable, cgst, sgst, igst types.Money) {
	t.TaxableValue = t.TaxableValue.Add(taxable)
	t.CGST = t.CGST.Add(cgst)
	t.SGST = t.SGST.Add(sgst)
	t.IGST = t.IGST.Add(igst)
}

// Tax is the sum of the three heads.
func (t TaxAmounts) Tax() types.Money {
	return t.CGST.Add(t.SGST).Add(t.IGST)
}

func (t TaxAmounts) equal(o TaxAmounts) bool {
	return t.TaxableValue.Equal(o.TaxableValue) &&
		t.CGST.Equal(o.CGST) &&
		t.SGST.Equal(o.SGST) &&
		t.IGST.Equal(o.IGST)
}

// --- GSTR-1 ---

// RateRow is a per-rate subtotal inside a bucket.
type RateRow struct {
	Rate     decimal.Decimal `json:"rate"`
	Invoices int             `json:"invoices"`
	TaxAmounts
}

// Bucket groups invoices of one supply class by rate.
type Bucket struct {
	Rows  []RateRow  `json:"rows"`
	Total TaxAmounts `json:"total"`
}

// HSNRow is one line of the HSN summary.
type HSNRow struct {
	HSNCode  string          `json:"hsnCode"`
	Rate     decimal.Decimal `json:"rate"`
	Quantity types.Quantity  `json:"quantity"`
	TaxAmounts
}

// InvoiceRow is one invoice at one rate, the statutory filing row.
type InvoiceRow struct {
	GSTIN         string          `json:"gstin"`
	InvoiceNo     string          `json:"invoiceNo"`
	InvoiceDate   string          `json:"invoiceDate"`
	PlaceOfSupply string          `json:"placeOfSupply"`
	Rate          decimal.Decimal `json:"rate"`
	TaxAmounts
}

// GSTR1 is the outward supplies return.
type GSTR1 struct {
	B2B      Bucket       `json:"b2b"`
	B2C      Bucket       `json:"b2c"`
	HSN      []HSNRow     `json:"hsn"`
	Invoices []InvoiceRow `json:"invoices"`
	Total    TaxAmounts   `json:"total"`
}

// --- GSTR-3B ---

// HeadSettlement is the payable position of one tax head.
type HeadSettlement struct {
	Head         string      `json:"head"`
	Output       types.Money `json:"output"`
	Credit       types.Money `json:"credit"`
	Payable      types.Money `json:"payable"`
	CarryForward types.Money `json:"carryForward"`
}

// GSTR3B is the monthly summary return.
type GSTR3B struct {
	// OutwardTaxable is 3.1(a): taxed outward supplies.
	OutwardTaxable TaxAmounts `json:"outwardTaxable"`
	// OutwardNilExempt is 3.1(c): nil rated and exempted supplies.
	OutwardNilExempt types.Money `json:"outwardNilExempt"`
	// EligibleITC is section 4 credit from posted purchases.
	EligibleITC TaxAmounts       `json:"eligibleItc"`
	Settlement  []HeadSettlement `json:"settlement"`
	NetPayable  types.Money      `json:"netPayable"`
}

// --- Stock valuation ---

// ValuationRow values one product.
type ValuationRow struct {
	ProductID id.ID          `json:"productId"`
	SKU       string         `json:"sku"`
	Name      string         `json:"name"`
	Category  string         `json:"category,omitempty"`
	Quantity  types.Quantity `json:"quantity"`
	UnitValue types.Money    `json:"unitValue"`
	Value     types.Money    `json:"value"`
}

// StockValuation values stock as of the range end.
type StockValuation struct {
	AsOf  string         `json:"asOf"`
	Rows  []ValuationRow `json:"rows"`
	Total types.Money    `json:"total"`
}

// --- Financial statements ---

// HeadAmount is an amount booked to an account head.
type HeadAmount struct {
	Head   string      `json:"head"`
	Amount types.Money `json:"amount"`
}

// PeriodPL is one month of the profit and loss statement.
type PeriodPL struct {
	Period       string       `json:"period"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	Revenue      types.Money  `json:"revenue"`
	Purchases    types.Money  `json:"purchases"`
	OpeningStock types.Money  `json:"openingStock"`
	ClosingStock types.Money  `json:"closingStock"`
	COGS         types.Money  `json:"cogs"`
	GrossProfit  types.Money  `json:"grossProfit"`
	Expenses     []HeadAmount `json:"expenses"`
	TotalExpense types.Money  `json:"totalExpense"`
	NetProfit    types.Money  `json:"netProfit"`
}

// ProfitLoss is the statement over the whole range plus monthly buckets.
type ProfitLoss struct {
	Total   PeriodPL   `json:"total"`
	Periods []PeriodPL `json:"periods"`
}

// BalanceSheet is the position as of the range end.
type BalanceSheet struct {
	AsOf string `json:"asOf"`

	StockValue  types.Money  `json:"stockValue"`
	Receivables types.Money  `json:"receivables"`
	CashBank    []HeadAmount `json:"cashBank"`
	ITCCredit   types.Money  `json:"itcCredit"`
	TotalAssets types.Money  `json:"totalAssets"`

	Payables         types.Money `json:"payables"`
	GSTPayable       types.Money `json:"gstPayable"`
	TotalLiabilities types.Money `json:"totalLiabilities"`

	// Equity balances assets against liabilities.
	Equity types.Money `json:"equity"`
}

// --- Outstanding ---

// Ageing buckets by days overdue.
const (
	AgeCurrent = "current"
	Age1To30   = "1-30"
	Age31To60  = "31-60"
	Age61To90  = "61-90"
	AgeOver90  = "90+"
)

// OutstandingRow is one open document.
type OutstandingRow struct {
	DocumentID   id.ID       `json:"documentId"`
	Kind         string      `json:"kind"`
	Number       string      `json:"number"`
	Date         string      `json:"date"`
	DueDate      string      `json:"dueDate"`
	Counterparty string      `json:"counterparty"`
	GrandTotal   types.Money `json:"grandTotal"`
	Paid         types.Money `json:"paid"`
	Outstanding  types.Money `json:"outstanding"`
	DaysOverdue  int         `json:"daysOverdue"`
	Bucket       string      `json:"bucket"`
}

// Outstanding lists open receivables and payables as of the range end.
type Outstanding struct {
	AsOf       string           `json:"asOf"`
	Rows       []OutstandingRow `json:"rows"`
	Receivable types.Money      `json:"receivable"`
	Payable    types.Money      `json:"payable"`

	ReceivableAgeing []HeadAmount `json:"receivableAgeing"`
	PayableAgeing    []HeadAmount `json:"payableAgeing"`
}
