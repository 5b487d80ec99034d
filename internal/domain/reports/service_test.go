package reports_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gstledger/internal/app"
	"gstledger/internal/app/apptest"
	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/expense"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/domain/reports"
)

func money(m types.Money) string { return types.FormatMoney(m) }

type january struct {
	*apptest.Fixture
	A, B, C *product.Product
}

// newJanuary books two B2B and three B2C invoices at mixed rates in
// January 2024, plus documents the returns must ignore.
func newJanuary(t *testing.T) *january {
	t.Helper()
	ctx := context.Background()
	f := apptest.New(t)
	j := &january{
		Fixture: f,
		A:       f.Product(t, apptest.ProductSpec{SKU: "SKU-A", HSN: "8471", Rate: "18", Category: "electronics", Opening: 1000, PurchasePrice: "50"}),
		B:       f.Product(t, apptest.ProductSpec{SKU: "SKU-B", HSN: "8544", Rate: "12", Category: "electronics", Opening: 1000, PurchasePrice: "100"}),
		C:       f.Product(t, apptest.ProductSpec{SKU: "SKU-C", HSN: "4901", Rate: "5", Category: "books", Opening: 1000, PurchasePrice: "60"}),
	}
	line := apptest.Line

	p1 := f.Posted(t, transaction.DocPurchase, "2024-01-03", f.Vendor.ID, line(j.A.ID, 10, "50"))
	f.Posted(t, transaction.DocPurchase, "2024-01-04", f.LocalVendor.ID, line(j.B.ID, 10, "100"))

	b2b1 := f.Posted(t, transaction.DocInvoice, "2024-01-05", f.LocalB2B.ID, line(j.A.ID, 2, "1000"), line(j.B.ID, 5, "200"))
	f.Posted(t, transaction.DocInvoice, "2024-01-08", f.Walkin.ID, line(j.B.ID, 3, "333.33"))
	f.Posted(t, transaction.DocInvoice, "2024-01-12", f.InterB2B.ID, line(j.A.ID, 1, "1500"), line(j.C.ID, 10, "95.50"))
	cancelled := f.Posted(t, transaction.DocInvoice, "2024-01-15", f.LocalB2B.ID, line(j.A.ID, 1, "100"))
	f.Posted(t, transaction.DocInvoice, "2024-01-20", f.Walkin.ID, line(j.C.ID, 7, "99"))
	f.Posted(t, transaction.DocInvoice, "2024-01-31", f.Walkin.ID, line(j.A.ID, 1, "499"))
	f.Posted(t, transaction.DocInvoice, "2024-02-01", f.LocalB2B.ID, line(j.A.ID, 1, "700"))
	f.Draft(t, transaction.DocInvoice, "2024-01-25", f.LocalB2B.ID, line(j.A.ID, 9, "900"))

	_, err := f.Documents.Cancel(ctx, cancelled.ID, "wrong customer")
	require.NoError(t, err)

	_, err = f.Payments.Apply(ctx, payment.ApplyRequest{
		DocumentID: b2b1.ID, Amount: types.MustMoney("2000"), Method: payment.MethodBank, PaidOn: apptest.Date("2024-01-20"),
	})
	require.NoError(t, err)
	_, err = f.Payments.Apply(ctx, payment.ApplyRequest{
		DocumentID: p1.ID, Amount: types.MustMoney("590"), Method: payment.MethodBank, PaidOn: apptest.Date("2024-01-25"),
	})
	require.NoError(t, err)

	_, err = f.Expenses.Record(ctx, expense.RecordRequest{
		Date: apptest.Date("2024-01-02"), AccountHead: "Rent", Amount: types.MustMoney("5000"), PaidFrom: expense.PaidFromBank,
	})
	require.NoError(t, err)
	_, err = f.Expenses.Record(ctx, expense.RecordRequest{
		Date: apptest.Date("2024-01-15"), AccountHead: "Staff welfare", Amount: types.MustMoney("120"),
	})
	require.NoError(t, err)
	return j
}

func (j *january) generate(t *testing.T, kind reports.Kind) *reports.Result {
	t.Helper()
	res, err := j.Reports.Generate(context.Background(), reports.Request{
		Kind: kind,
		From: apptest.Date("2024-01-01"),
		To:   apptest.Date("2024-01-31"),
	})
	require.NoError(t, err)
	require.Equal(t, kind, res.Kind)
	return res
}

type rateRow struct {
	rate, taxable, cgst, sgst, igst string
	invoices                        int
}

func assertBucket(t *testing.T, b reports.Bucket, want []rateRow) {
	t.Helper()
	require.Len(t, b.Rows, len(want))
	for i, w := range want {
		got := b.Rows[i]
		assert.Equal(t, w, rateRow{
			rate:     got.Rate.String(),
			taxable:  money(got.TaxableValue),
			cgst:     money(got.CGST),
			sgst:     money(got.SGST),
			igst:     money(got.IGST),
			invoices: got.Invoices,
		}, "row %d", i)
	}
}

func TestGenerate_GSTR1(t *testing.T) {
	j := newJanuary(t)
	res := j.generate(t, reports.KindGSTR1)
	assert.False(t, res.Empty)
	assert.Equal(t, "2024-01-01", res.From)
	assert.Equal(t, "2024-01-31", res.To)

	g := res.GSTR1
	require.NotNil(t, g)

	assertBucket(t, g.B2B, []rateRow{
		{"5", "955.00", "0.00", "0.00", "47.75", 1},
		{"12", "1000.00", "60.00", "60.00", "0.00", 1},
		{"18", "3500.00", "180.00", "180.00", "270.00", 2},
	})
	assert.Equal(t, "5455.00", money(g.B2B.Total.TaxableValue))
	assert.Equal(t, "317.75", money(g.B2B.Total.IGST))

	assertBucket(t, g.B2C, []rateRow{
		{"5", "693.00", "17.33", "17.32", "0.00", 1},
		{"12", "999.99", "60.00", "60.00", "0.00", 1},
		{"18", "499.00", "44.91", "44.91", "0.00", 1},
	})
	assert.Equal(t, "2191.99", money(g.B2C.Total.TaxableValue))

	assert.Equal(t, "7646.99", money(g.Total.TaxableValue))
	assert.Equal(t, "362.24", money(g.Total.CGST))
	assert.Equal(t, "362.23", money(g.Total.SGST))
	assert.Equal(t, "317.75", money(g.Total.IGST))

	// Totals reconcile to the invoices themselves.
	invoices, err := j.Documents.ListPosted(context.Background(), transaction.DocInvoice, apptest.Date("2024-01-01"), apptest.Date("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, invoices, 5)
	tax := types.Zero()
	for _, inv := range invoices {
		tax = tax.Add(inv.TotalTax)
	}
	assert.Equal(t, money(tax), money(g.Total.Tax()))

	require.Len(t, g.HSN, 3)
	assert.Equal(t, "4901", g.HSN[0].HSNCode)
	assert.Equal(t, types.NewQuantity(17), g.HSN[0].Quantity)
	assert.Equal(t, "1648.00", money(g.HSN[0].TaxableValue))
	assert.Equal(t, "8471", g.HSN[1].HSNCode)
	assert.Equal(t, "3999.00", money(g.HSN[1].TaxableValue))
	assert.Equal(t, "8544", g.HSN[2].HSNCode)
	assert.Equal(t, "1999.99", money(g.HSN[2].TaxableValue))

	require.Len(t, g.Invoices, 7)
	assert.Equal(t, "INV/2023-24/00001", g.Invoices[0].InvoiceNo)
	assert.Equal(t, "12", g.Invoices[0].Rate.String())
	assert.Equal(t, "18", g.Invoices[1].Rate.String())
	assert.Empty(t, g.Invoices[2].GSTIN)
}

func TestGenerate_GSTR1IsDeterministic(t *testing.T) {
	j := newJanuary(t)
	first, err := json.Marshal(j.generate(t, reports.KindGSTR1))
	require.NoError(t, err)
	second, err := json.Marshal(j.generate(t, reports.KindGSTR1))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestWriteCSV_GSTR1(t *testing.T) {
	j := newJanuary(t)
	var buf bytes.Buffer
	require.NoError(t, reports.WriteCSV(&buf, j.generate(t, reports.KindGSTR1)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, []string{"GSTIN", "Invoice No", "Invoice Date", "Taxable Value", "Rate", "CGST", "SGST", "IGST"}, rows[0])
	assert.Equal(t, []string{"27AABCU9603R1ZN", "INV/2023-24/00001", "2024-01-05", "1000.00", "12", "60.00", "60.00", "0.00"}, rows[1])
	assert.Equal(t, []string{"29ABCDE1234F1ZW", "INV/2023-24/00003", "2024-01-12", "955.00", "5", "0.00", "0.00", "47.75"}, rows[4])
	assert.Equal(t, []string{"", "INV/2023-24/00006", "2024-01-31", "499.00", "18", "44.91", "44.91", "0.00"}, rows[7])
}

func TestGenerate_GSTR3B(t *testing.T) {
	j := newJanuary(t)
	g := j.generate(t, reports.KindGSTR3B).GSTR3B
	require.NotNil(t, g)

	assert.Equal(t, "7646.99", money(g.OutwardTaxable.TaxableValue))
	assert.Equal(t, "0.00", money(g.OutwardNilExempt))
	assert.Equal(t, "1500.00", money(g.EligibleITC.TaxableValue))
	assert.Equal(t, "90.00", money(g.EligibleITC.IGST))
	assert.Equal(t, "60.00", money(g.EligibleITC.CGST))

	require.Len(t, g.Settlement, 3)
	assert.Equal(t, "IGST", g.Settlement[0].Head)
	assert.Equal(t, "227.75", money(g.Settlement[0].Payable))
	assert.Equal(t, "302.24", money(g.Settlement[1].Payable))
	assert.Equal(t, "302.23", money(g.Settlement[2].Payable))
	assert.Equal(t, "832.22", money(g.NetPayable))

	var buf bytes.Buffer
	require.NoError(t, reports.WriteCSV(&buf, &reports.Result{Kind: reports.KindGSTR3B, GSTR3B: g}))
	assert.Contains(t, buf.String(), "6.1,Net payable,,,,832.22,")
}

func TestGenerate_GSTR3BNilRatedAndCarryForward(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t)
	books := f.Product(t, apptest.ProductSpec{SKU: "BK", HSN: "4901", Rate: "0", Opening: 10})
	pen := f.Product(t, apptest.ProductSpec{SKU: "PN", HSN: "9608", Rate: "18"})

	f.Posted(t, transaction.DocPurchase, "2024-01-02", f.LocalVendor.ID, apptest.Line(pen.ID, 100, "10"))
	f.Posted(t, transaction.DocInvoice, "2024-01-05", f.LocalB2B.ID, apptest.Line(books.ID, 2, "150"), apptest.Line(pen.ID, 5, "20"))

	res, err := f.Reports.Generate(ctx, reports.Request{Kind: reports.KindGSTR3B, From: apptest.Date("2024-01-01"), To: apptest.Date("2024-01-31")})
	require.NoError(t, err)
	g := res.GSTR3B

	assert.Equal(t, "300.00", money(g.OutwardNilExempt))
	assert.Equal(t, "100.00", money(g.OutwardTaxable.TaxableValue))
	// Output 9.00 per head against 90.00 credit per head.
	assert.Equal(t, "0.00", money(g.Settlement[1].Payable))
	assert.Equal(t, "81.00", money(g.Settlement[1].CarryForward))
	assert.Equal(t, "0.00", money(g.NetPayable))
}

func TestGenerate_StockValuation(t *testing.T) {
	j := newJanuary(t)
	v := j.generate(t, reports.KindStockValuation).StockValuation
	require.NotNil(t, v)
	require.Len(t, v.Rows, 3)

	assert.Equal(t, "SKU-A", v.Rows[0].SKU)
	assert.Equal(t, types.NewQuantity(1006), v.Rows[0].Quantity)
	assert.Equal(t, "50.00", money(v.Rows[0].UnitValue))
	assert.Equal(t, "50300.00", money(v.Rows[0].Value))
	assert.Equal(t, types.NewQuantity(1002), v.Rows[1].Quantity)
	assert.Equal(t, "100200.00", money(v.Rows[1].Value))
	assert.Equal(t, types.NewQuantity(983), v.Rows[2].Quantity)
	assert.Equal(t, "58980.00", money(v.Rows[2].Value))
	assert.Equal(t, "209480.00", money(v.Total))

	res, err := j.Reports.Generate(context.Background(), reports.Request{
		Kind:    reports.KindStockValuation,
		From:    apptest.Date("2024-01-01"),
		To:      apptest.Date("2024-01-31"),
		Filters: reports.Filters{Category: "books"},
	})
	require.NoError(t, err)
	require.Len(t, res.StockValuation.Rows, 1)
	assert.Equal(t, "SKU-C", res.StockValuation.Rows[0].SKU)

	res, err = j.Reports.Generate(context.Background(), reports.Request{
		Kind:    reports.KindStockValuation,
		From:    apptest.Date("2024-01-01"),
		To:      apptest.Date("2024-01-31"),
		Filters: reports.Filters{ZeroStockOnly: true},
	})
	require.NoError(t, err)
	assert.True(t, res.Empty)
}

func TestGenerate_ProfitLoss(t *testing.T) {
	j := newJanuary(t)
	pl := j.generate(t, reports.KindProfitLoss).ProfitLoss
	require.NotNil(t, pl)
	require.Len(t, pl.Periods, 1)
	assert.Equal(t, "2024-01", pl.Periods[0].Period)

	total := pl.Total
	assert.Equal(t, "7646.99", money(total.Revenue))
	assert.Equal(t, "1500.00", money(total.Purchases))
	assert.Equal(t, "210000.00", money(total.OpeningStock))
	assert.Equal(t, "209480.00", money(total.ClosingStock))
	assert.Equal(t, "2020.00", money(total.COGS))
	assert.Equal(t, "5626.99", money(total.GrossProfit))
	assert.Equal(t, "5120.00", money(total.TotalExpense))
	assert.Equal(t, "506.99", money(total.NetProfit))
	require.Len(t, total.Expenses, 2)
	assert.Equal(t, "Rent", total.Expenses[0].Head)

	assert.Equal(t, money(total.NetProfit), money(pl.Periods[0].NetProfit))
}

func TestGenerate_ProfitLossSplitsMonths(t *testing.T) {
	j := newJanuary(t)
	res, err := j.Reports.Generate(context.Background(), reports.Request{
		Kind: reports.KindProfitLoss,
		From: apptest.Date("2024-01-15"),
		To:   apptest.Date("2024-02-10"),
	})
	require.NoError(t, err)
	pl := res.ProfitLoss
	require.Len(t, pl.Periods, 2)
	assert.Equal(t, "2024-01-15", pl.Periods[0].From)
	assert.Equal(t, "2024-01-31", pl.Periods[0].To)
	assert.Equal(t, "2024-02-01", pl.Periods[1].From)
	assert.Equal(t, "2024-02-10", pl.Periods[1].To)
	assert.Equal(t, "700.00", money(pl.Periods[1].Revenue))

	sum := pl.Periods[0].NetProfit.Add(pl.Periods[1].NetProfit)
	assert.Equal(t, money(pl.Total.NetProfit), money(sum))
}

func TestGenerate_BalanceSheet(t *testing.T) {
	j := newJanuary(t)
	bs := j.generate(t, reports.KindBalanceSheet).BalanceSheet
	require.NotNil(t, bs)

	assert.Equal(t, "209480.00", money(bs.StockValue))
	assert.Equal(t, "6689.21", money(bs.Receivables))
	assert.Equal(t, "1120.00", money(bs.Payables))
	assert.Equal(t, "832.22", money(bs.GSTPayable))
	assert.Equal(t, "0.00", money(bs.ITCCredit))
	require.Len(t, bs.CashBank, 2)
	assert.Equal(t, "Bank", bs.CashBank[0].Head)
	assert.Equal(t, "-3590.00", money(bs.CashBank[0].Amount))
	assert.Equal(t, "-120.00", money(bs.CashBank[1].Amount))
	assert.Equal(t, "212459.21", money(bs.TotalAssets))
	assert.Equal(t, "1952.22", money(bs.TotalLiabilities))
	// Opening stock at cost plus January's profit.
	assert.Equal(t, "210506.99", money(bs.Equity))
}

func TestGenerate_Outstanding(t *testing.T) {
	j := newJanuary(t)
	o := j.generate(t, reports.KindOutstanding).Outstanding
	require.NotNil(t, o)

	assert.Equal(t, "6689.21", money(o.Receivable))
	assert.Equal(t, "1120.00", money(o.Payable))
	require.Len(t, o.Rows, 6)

	first := o.Rows[0]
	assert.Equal(t, "receivable", first.Kind)
	assert.Equal(t, "INV/2023-24/00001", first.Number)
	assert.Equal(t, "1480.00", money(first.Outstanding))
	assert.Equal(t, 26, first.DaysOverdue)
	assert.Equal(t, reports.Age1To30, first.Bucket)

	last := o.Rows[5]
	assert.Equal(t, "payable", last.Kind)
	assert.Equal(t, 27, last.DaysOverdue)

	require.Len(t, o.ReceivableAgeing, 5)
	assert.Equal(t, "588.82", money(o.ReceivableAgeing[0].Amount))
	assert.Equal(t, "6100.39", money(o.ReceivableAgeing[1].Amount))
	assert.Equal(t, "0.00", money(o.ReceivableAgeing[4].Amount))

	var buf bytes.Buffer
	require.NoError(t, reports.WriteCSV(&buf, &reports.Result{Kind: reports.KindOutstanding, Outstanding: o}))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 7)
}

func TestGenerate_EmptyAndInvalid(t *testing.T) {
	ctx := context.Background()
	j := newJanuary(t)

	res, err := j.Reports.Generate(ctx, reports.Request{
		Kind: reports.KindGSTR1,
		From: apptest.Date("2025-06-01"),
		To:   apptest.Date("2025-06-30"),
	})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Empty(t, res.GSTR1.B2B.Rows)
	assert.Equal(t, "0.00", money(res.GSTR1.Total.TaxableValue))

	_, err = j.Reports.Generate(ctx, reports.Request{
		Kind: reports.KindGSTR1,
		From: apptest.Date("2024-02-01"),
		To:   apptest.Date("2024-01-01"),
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidRange))

	_, err = j.Reports.Generate(ctx, reports.Request{Kind: reports.KindGSTR1, To: apptest.Date("2024-01-01")})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidRange))

	_, err = j.Reports.Generate(ctx, reports.Request{
		Kind: "gstr-9",
		From: apptest.Date("2024-01-01"),
		To:   apptest.Date("2024-01-31"),
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	err = reports.WriteCSV(&bytes.Buffer{}, j.generate(t, reports.KindProfitLoss))
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestGenerate_ReconciliationFailure(t *testing.T) {
	ctx := context.Background()
	j := newJanuary(t)

	docs, err := j.Documents.ListPosted(ctx, transaction.DocInvoice, apptest.Date("2024-01-05"), apptest.Date("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	tampered := docs[0]
	tampered.Lines[0].SGST = tampered.Lines[0].SGST.Add(types.MustMoney("1"))
	require.NoError(t, j.Backend.Documents.Update(ctx, tampered))

	_, err = j.Reports.Generate(ctx, reports.Request{
		Kind: reports.KindGSTR1,
		From: apptest.Date("2024-01-01"),
		To:   apptest.Date("2024-01-31"),
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeReconciliation), "got %v", err)
}

type MockPositions struct {
	mock.Mock
}

func (m *MockPositions) PositionsAsOf(ctx context.Context, date time.Time) (map[id.ID]stock.Position, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[id.ID]stock.Position), args.Error(1)
}

func TestGenerate_StockValuationReadsPositionsOnce(t *testing.T) {
	positions := new(MockPositions)
	f := apptest.NewWith(t, func(b *app.Backend) { b.StockPositions = positions })
	held := f.Product(t, apptest.ProductSpec{SKU: "SKU-H", HSN: "8471", Rate: "18", PurchasePrice: "20"})
	empty := f.Product(t, apptest.ProductSpec{SKU: "SKU-E", HSN: "8471", Rate: "18", PurchasePrice: "30"})

	last := types.MustMoney("25")
	asOf := apptest.Date("2024-01-31")
	positions.On("PositionsAsOf", mock.Anything, mock.MatchedBy(func(d time.Time) bool { return d.Equal(asOf) })).
		Return(map[id.ID]stock.Position{
			held.ID: {ProductID: held.ID, Balance: types.NewQuantity(7), LastInwardValue: &last},
		}, nil).Once()

	res, err := f.Reports.Generate(context.Background(), reports.Request{
		Kind: reports.KindStockValuation,
		From: apptest.Date("2024-01-01"),
		To:   asOf,
	})
	require.NoError(t, err)
	v := res.StockValuation
	require.Len(t, v.Rows, 2)

	assert.Equal(t, empty.ID, v.Rows[0].ProductID)
	assert.True(t, v.Rows[0].Quantity.IsZero())
	assert.Equal(t, "30.00", money(v.Rows[0].UnitValue))
	assert.Equal(t, "0.00", money(v.Rows[0].Value))

	assert.Equal(t, held.ID, v.Rows[1].ProductID)
	assert.Equal(t, "25.00", money(v.Rows[1].UnitValue))
	assert.Equal(t, "175.00", money(v.Rows[1].Value))
	assert.Equal(t, "175.00", money(v.Total))
	positions.AssertExpectations(t)

	positions.On("PositionsAsOf", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()
	_, err = f.Reports.Generate(context.Background(), reports.Request{
		Kind: reports.KindStockValuation,
		From: apptest.Date("2024-01-01"),
		To:   asOf,
	})
	assert.ErrorContains(t, err, "connection reset")
}
