package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/tx"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/expense"
	"gstledger/internal/domain/registers/payment"
	"gstledger/pkg/logger"
)

var tracer = otel.Tracer("gstledger/reports")

// Engine generates reports inside one read-only snapshot, so a report never
// observes half of a concurrent post and never blocks writers.
type Engine struct {
	src Sources
	txm tx.ReadOnlyManager
}

// NewEngine creates a report engine.
func NewEngine(src Sources, txm tx.ReadOnlyManager) *Engine {
	return &Engine{src: src, txm: txm}
}

// Generate runs one report over the inclusive range [From, To].
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "reports.generate",
		trace.WithAttributes(
			attribute.String("report.kind", string(req.Kind)),
			attribute.String("report.from", types.FormatDate(req.From)),
			attribute.String("report.to", types.FormatDate(req.To)),
		))
	defer span.End()

	if _, ok := ParseKind(string(req.Kind)); !ok {
		return nil, apperror.NewValidation("unknown report type").
			WithDetail("field", "type").
			WithDetail("value", string(req.Kind))
	}
	if req.From.IsZero() || req.To.IsZero() || req.From.After(req.To) {
		return nil, apperror.NewInvalidRange(types.FormatDate(req.From), types.FormatDate(req.To))
	}
	from, to := types.DateOf(req.From), types.DateOf(req.To)

	res := &Result{
		Kind: req.Kind,
		From: types.FormatDate(from),
		To:   types.FormatDate(to),
	}
	err := e.txm.ReadOnly(ctx, func(ctx context.Context) error {
		switch req.Kind {
		case KindGSTR1:
			return e.gstr1(ctx, res, from, to)
		case KindGSTR3B:
			return e.gstr3b(ctx, res, from, to)
		case KindStockValuation:
			v, err := e.valuation(ctx, to, req.Filters)
			if err != nil {
				return err
			}
			res.StockValuation = v
			res.Empty = len(v.Rows) == 0
			return nil
		case KindProfitLoss:
			return e.profitLoss(ctx, res, from, to)
		case KindBalanceSheet:
			return e.balanceSheet(ctx, res, to)
		case KindOutstanding:
			return e.outstanding(ctx, res, from, to)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.Debug(ctx, "report generated",
		"kind", req.Kind,
		"from", res.From,
		"to", res.To,
		"empty", res.Empty)

	return res, nil
}

// reconcile fails the report when a stored document total no longer matches
// its lines.
func reconcile(ctx context.Context, report string, docs []*transaction.Document) error {
	for _, d := range docs {
		if _, ok := d.Recompute(); !ok {
			logger.Error(ctx, "report reconciliation failed",
				"report", report,
				"check", "document totals",
				"document_id", d.ID,
				"number", d.Number)
			return apperror.NewReconciliation(report, "document totals").
				WithDetail("document_id", d.ID.String()).
				WithDetail("number", d.Number)
		}
	}
	return nil
}

func rateKey(r decimal.Decimal) string {
	return r.String()
}

// bucketBuilder accumulates a GSTR-1 bucket.
type bucketBuilder struct {
	rows     map[string]*RateRow
	invoices map[string]map[id.ID]struct{}
}

func newBucketBuilder() *bucketBuilder {
	return &bucketBuilder{
		rows:     make(map[string]*RateRow),
		invoices: make(map[string]map[id.ID]struct{}),
	}
}

func (b *bucketBuilder) add(docID id.ID, l transaction.Line) {
	k := rateKey(l.GSTRatePercent)
	row, ok := b.rows[k]
	if !ok {
		row = &RateRow{Rate: l.GSTRatePercent, TaxAmounts: zeroTax()}
		b.rows[k] = row
		b.invoices[k] = make(map[id.ID]struct{})
	}
	row.add(l.TaxableValue, l.CGST, l.SGST, l.IGST)
	b.invoices[k][docID] = struct{}{}
}

func (b *bucketBuilder) build() Bucket {
	out := Bucket{Rows: make([]RateRow, 0, len(b.rows)), Total: zeroTax()}
	for k, row := range b.rows {
		row.Invoices = len(b.invoices[k])
		out.Rows = append(out.Rows, *row)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Rate.LessThan(out.Rows[j].Rate) })
	for _, row := range out.Rows {
		out.Total.add(row.TaxableValue, row.CGST, row.SGST, row.IGST)
	}
	return out
}

func (e *Engine) gstr1(ctx context.Context, res *Result, from, to time.Time) error {
	invoices, err := e.src.Documents.ListPosted(ctx, transaction.DocInvoice, from, to)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	if err := reconcile(ctx, string(KindGSTR1), invoices); err != nil {
		return err
	}

	b2b, b2c := newBucketBuilder(), newBucketBuilder()
	hsn := make(map[string]*HSNRow)
	lineSum, storedSum := zeroTax(), zeroTax()
	rows := make([]InvoiceRow, 0, len(invoices))

	for _, d := range invoices {
		storedSum.add(d.TaxableValue, d.CGST, d.SGST, d.IGST)

		bucket := b2c
		if d.Counterparty.GSTStatus.IsB2B() {
			bucket = b2b
		}
		perRate := make(map[string]*InvoiceRow)
		for _, l := range d.Lines {
			lineSum.add(l.TaxableValue, l.CGST, l.SGST, l.IGST)
			bucket.add(d.ID, l)

			hk := l.HSNCode + "|" + rateKey(l.GSTRatePercent)
			h, ok := hsn[hk]
			if !ok {
				h = &HSNRow{HSNCode: l.HSNCode, Rate: l.GSTRatePercent, TaxAmounts: zeroTax()}
				hsn[hk] = h
			}
			h.Quantity += l.Quantity
			h.add(l.TaxableValue, l.CGST, l.SGST, l.IGST)

			rk := rateKey(l.GSTRatePercent)
			r, ok := perRate[rk]
			if !ok {
				r = &InvoiceRow{
					GSTIN:         d.Counterparty.GSTIN,
					InvoiceNo:     d.Number,
					InvoiceDate:   types.FormatDate(d.Date),
					PlaceOfSupply: d.PlaceOfSupply,
					Rate:          l.GSTRatePercent,
					TaxAmounts:    zeroTax(),
				}
				perRate[rk] = r
			}
			r.add(l.TaxableValue, l.CGST, l.SGST, l.IGST)
		}
		docRows := make([]InvoiceRow, 0, len(perRate))
		for _, r := range perRate {
			docRows = append(docRows, *r)
		}
		sort.Slice(docRows, func(i, j int) bool { return docRows[i].Rate.LessThan(docRows[j].Rate) })
		rows = append(rows, docRows...)
	}

	out := &GSTR1{
		B2B:      b2b.build(),
		B2C:      b2c.build(),
		HSN:      make([]HSNRow, 0, len(hsn)),
		Invoices: rows,
		Total:    zeroTax(),
	}
	for _, h := range hsn {
		out.HSN = append(out.HSN, *h)
	}
	sort.Slice(out.HSN, func(i, j int) bool {
		if out.HSN[i].HSNCode != out.HSN[j].HSNCode {
			return out.HSN[i].HSNCode < out.HSN[j].HSNCode
		}
		return out.HSN[i].Rate.LessThan(out.HSN[j].Rate)
	})
	out.Total.add(out.B2B.Total.TaxableValue, out.B2B.Total.CGST, out.B2B.Total.SGST, out.B2B.Total.IGST)
	out.Total.add(out.B2C.Total.TaxableValue, out.B2C.Total.CGST, out.B2C.Total.SGST, out.B2C.Total.IGST)

	if !out.Total.equal(lineSum) || !out.Total.equal(storedSum) {
		logger.Error(ctx, "report reconciliation failed",
			"report", KindGSTR1,
			"check", "bucket totals",
			"buckets_tax", types.FormatMoney(out.Total.Tax()),
			"lines_tax", types.FormatMoney(lineSum.Tax()),
			"invoices_tax", types.FormatMoney(storedSum.Tax()))
		return apperror.NewReconciliation(string(KindGSTR1), "bucket totals")
	}

	res.GSTR1 = out
	res.Empty = len(invoices) == 0
	return nil
}

func (e *Engine) gstr3b(ctx context.Context, res *Result, from, to time.Time) error {
	invoices, err := e.src.Documents.ListPosted(ctx, transaction.DocInvoice, from, to)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	purchases, err := e.src.Documents.ListPosted(ctx, transaction.DocPurchase, from, to)
	if err != nil {
		return fmt.Errorf("list purchases: %w", err)
	}
	if err := reconcile(ctx, string(KindGSTR3B), invoices); err != nil {
		return err
	}
	if err := reconcile(ctx, string(KindGSTR3B), purchases); err != nil {
		return err
	}

	out := &GSTR3B{
		OutwardTaxable:   zeroTax(),
		OutwardNilExempt: decimal.Zero,
		EligibleITC:      zeroTax(),
		NetPayable:       decimal.Zero,
	}
	for _, d := range invoices {
		for _, l := range d.Lines {
			if l.CGST.IsZero() && l.SGST.IsZero() && l.IGST.IsZero() {
				out.OutwardNilExempt = out.OutwardNilExempt.Add(l.TaxableValue)
				continue
			}
			out.OutwardTaxable.add(l.TaxableValue, l.CGST, l.SGST, l.IGST)
		}
	}
	for _, d := range purchases {
		out.EligibleITC.add(d.TaxableValue, d.CGST, d.SGST, d.IGST)
	}

	heads := []struct {
		name           string
		output, credit types.Money
	}{
		{"IGST", out.OutwardTaxable.IGST, out.EligibleITC.IGST},
		{"CGST", out.OutwardTaxable.CGST, out.EligibleITC.CGST},
		{"SGST", out.OutwardTaxable.SGST, out.EligibleITC.SGST},
	}
	for _, h := range heads {
		net := h.output.Sub(h.credit)
		s := HeadSettlement{
			Head:         h.name,
			Output:       h.output,
			Credit:       h.credit,
			Payable:      decimal.Zero,
			CarryForward: decimal.Zero,
		}
		if net.IsPositive() {
			s.Payable = net
		} else {
			s.CarryForward = net.Neg()
		}
		out.Settlement = append(out.Settlement, s)
		out.NetPayable = out.NetPayable.Add(s.Payable)
	}

	res.GSTR3B = out
	res.Empty = len(invoices) == 0 && len(purchases) == 0
	return nil
}

// valuation values stock as of asOf at the latest inward unit value,
// falling back to the product's purchase price.
func (e *Engine) valuation(ctx context.Context, asOf time.Time, f Filters) (*StockValuation, error) {
	products, err := e.src.Products.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	positions, err := e.src.Stock.PositionsAsOf(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("stock positions: %w", err)
	}

	out := &StockValuation{
		AsOf:  types.FormatDate(asOf),
		Rows:  make([]ValuationRow, 0, len(products)),
		Total: decimal.Zero,
	}
	for _, p := range products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		pos := positions[p.ID]
		if f.ZeroStockOnly && !pos.Balance.IsZero() {
			continue
		}
		unit := p.PurchasePrice
		if pos.LastInwardValue != nil {
			unit = *pos.LastInwardValue
		}
		value := types.RoundMoney(pos.Balance.Decimal().Mul(unit))
		out.Rows = append(out.Rows, ValuationRow{
			ProductID: p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Category:  p.Category,
			Quantity:  pos.Balance,
			UnitValue: unit,
			Value:     value,
		})
		out.Total = out.Total.Add(value)
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if out.Rows[i].SKU != out.Rows[j].SKU {
			return out.Rows[i].SKU < out.Rows[j].SKU
		}
		return id.Less(out.Rows[i].ProductID, out.Rows[j].ProductID)
	})
	return out, nil
}

// stockValues memoizes total stock value per date within one report.
type stockValues struct {
	e     *Engine
	cache map[string]types.Money
}

func (s *stockValues) at(ctx context.Context, date time.Time) (types.Money, error) {
	k := types.FormatDate(date)
	if v, ok := s.cache[k]; ok {
		return v, nil
	}
	v, err := s.e.valuation(ctx, date, Filters{})
	if err != nil {
		return decimal.Zero, err
	}
	s.cache[k] = v.Total
	return v.Total, nil
}

type period struct {
	label    string
	from, to time.Time
}

// months splits [from, to] at calendar month boundaries.
func months(from, to time.Time) []period {
	var out []period
	for start := from; !start.After(to); {
		monthEnd := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		end := monthEnd
		if end.After(to) {
			end = to
		}
		out = append(out, period{label: start.Format("2006-01"), from: start, to: end})
		start = monthEnd.AddDate(0, 0, 1)
	}
	return out
}

func within(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

func (e *Engine) periodPL(ctx context.Context, sv *stockValues, p period, invoices, purchases []*transaction.Document, expenses []*expense.Expense) (PeriodPL, error) {
	out := PeriodPL{
		Period:       p.label,
		From:         types.FormatDate(p.from),
		To:           types.FormatDate(p.to),
		Revenue:      decimal.Zero,
		Purchases:    decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for _, d := range invoices {
		if within(d.Date, p.from, p.to) {
			out.Revenue = out.Revenue.Add(d.TaxableValue)
		}
	}
	for _, d := range purchases {
		if within(d.Date, p.from, p.to) {
			out.Purchases = out.Purchases.Add(d.TaxableValue)
		}
	}
	heads := make(map[string]types.Money)
	for _, x := range expenses {
		if within(x.Date, p.from, p.to) {
			heads[x.AccountHead] = heads[x.AccountHead].Add(x.Amount)
			out.TotalExpense = out.TotalExpense.Add(x.Amount)
		}
	}
	out.Expenses = sortedHeads(heads)

	var err error
	if out.OpeningStock, err = sv.at(ctx, p.from.AddDate(0, 0, -1)); err != nil {
		return out, err
	}
	if out.ClosingStock, err = sv.at(ctx, p.to); err != nil {
		return out, err
	}
	out.COGS = out.OpeningStock.Add(out.Purchases).Sub(out.ClosingStock)
	out.GrossProfit = out.Revenue.Sub(out.COGS)
	out.NetProfit = out.GrossProfit.Sub(out.TotalExpense)
	return out, nil
}

func sortedHeads(m map[string]types.Money) []HeadAmount {
	out := make([]HeadAmount, 0, len(m))
	for h, v := range m {
		out = append(out, HeadAmount{Head: h, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Head < out[j].Head })
	return out
}

func (e *Engine) profitLoss(ctx context.Context, res *Result, from, to time.Time) error {
	invoices, err := e.src.Documents.ListPosted(ctx, transaction.DocInvoice, from, to)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	purchases, err := e.src.Documents.ListPosted(ctx, transaction.DocPurchase, from, to)
	if err != nil {
		return fmt.Errorf("list purchases: %w", err)
	}
	expenses, err := e.src.Expenses.ListRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}

	sv := &stockValues{e: e, cache: make(map[string]types.Money)}
	out := &ProfitLoss{}
	for _, p := range months(from, to) {
		pl, err := e.periodPL(ctx, sv, p, invoices, purchases, expenses)
		if err != nil {
			return err
		}
		out.Periods = append(out.Periods, pl)
	}
	total, err := e.periodPL(ctx, sv, period{label: "total", from: from, to: to}, invoices, purchases, expenses)
	if err != nil {
		return err
	}
	out.Total = total

	res.ProfitLoss = out
	res.Empty = len(invoices) == 0 && len(purchases) == 0 && len(expenses) == 0
	return nil
}

// openBalances returns open balances of documents dated on or before to,
// with the amount paid on or before to.
func (e *Engine) openBalances(ctx context.Context, to time.Time) ([]payment.Balance, map[id.ID]types.Money, []payment.Record, error) {
	status := payment.BalanceOpen
	balances, err := e.src.Payments.Balances(ctx, payment.BalanceFilter{Status: &status, DocumentDateTo: &to})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list balances: %w", err)
	}
	records, err := e.src.Payments.Records(ctx, payment.RecordFilter{PaidOnTo: &to})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list payments: %w", err)
	}
	open := make(map[id.ID]struct{}, len(balances))
	for _, b := range balances {
		open[b.DocumentID] = struct{}{}
	}
	paid := make(map[id.ID]types.Money, len(balances))
	kept := records[:0:0]
	for _, r := range records {
		if _, ok := open[r.DocumentID]; !ok {
			continue
		}
		paid[r.DocumentID] = paid[r.DocumentID].Add(r.Amount)
		kept = append(kept, r)
	}
	return balances, paid, kept, nil
}

func (e *Engine) balanceSheet(ctx context.Context, res *Result, to time.Time) error {
	var origin time.Time
	invoices, err := e.src.Documents.ListPosted(ctx, transaction.DocInvoice, origin, to)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	purchases, err := e.src.Documents.ListPosted(ctx, transaction.DocPurchase, origin, to)
	if err != nil {
		return fmt.Errorf("list purchases: %w", err)
	}
	expenses, err := e.src.Expenses.ListRange(ctx, origin, to)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	balances, paid, records, err := e.openBalances(ctx, to)
	if err != nil {
		return err
	}
	stockValue, err := e.valuation(ctx, to, Filters{})
	if err != nil {
		return err
	}

	out := &BalanceSheet{
		AsOf:        types.FormatDate(to),
		StockValue:  stockValue.Total,
		Receivables: decimal.Zero,
		ITCCredit:   decimal.Zero,
		Payables:    decimal.Zero,
		GSTPayable:  decimal.Zero,
	}

	kinds := make(map[id.ID]payment.Kind, len(balances))
	for _, b := range balances {
		kinds[b.DocumentID] = b.Kind
		due := b.GrandTotal.Sub(paid[b.DocumentID])
		if b.Kind == payment.KindReceivable {
			out.Receivables = out.Receivables.Add(due)
		} else {
			out.Payables = out.Payables.Add(due)
		}
	}

	cash := make(map[string]types.Money)
	for _, r := range records {
		if kinds[r.DocumentID] == payment.KindReceivable {
			cash[r.AccountHead] = cash[r.AccountHead].Add(r.Amount)
		} else {
			cash[r.AccountHead] = cash[r.AccountHead].Sub(r.Amount)
		}
	}
	for _, x := range expenses {
		cash[x.PaidFrom] = cash[x.PaidFrom].Sub(x.Amount)
	}
	out.CashBank = sortedHeads(cash)

	output, input := decimal.Zero, decimal.Zero
	for _, d := range invoices {
		output = output.Add(d.TotalTax)
	}
	for _, d := range purchases {
		input = input.Add(d.TotalTax)
	}
	if net := output.Sub(input); net.IsNegative() {
		out.ITCCredit = net.Neg()
	} else {
		out.GSTPayable = net
	}

	out.TotalAssets = out.StockValue.Add(out.Receivables).Add(out.ITCCredit)
	for _, c := range out.CashBank {
		out.TotalAssets = out.TotalAssets.Add(c.Amount)
	}
	out.TotalLiabilities = out.Payables.Add(out.GSTPayable)
	out.Equity = out.TotalAssets.Sub(out.TotalLiabilities)

	res.BalanceSheet = out
	res.Empty = len(invoices) == 0 && len(purchases) == 0 && len(expenses) == 0 && stockValue.Total.IsZero()
	return nil
}

func ageBucket(days int) string {
	switch {
	case days <= 0:
		return AgeCurrent
	case days <= 30:
		return Age1To30
	case days <= 60:
		return Age31To60
	case days <= 90:
		return Age61To90
	default:
		return AgeOver90
	}
}

var ageOrder = []string{AgeCurrent, Age1To30, Age31To60, Age61To90, AgeOver90}

func ageing(m map[string]types.Money) []HeadAmount {
	out := make([]HeadAmount, 0, len(ageOrder))
	for _, b := range ageOrder {
		out = append(out, HeadAmount{Head: b, Amount: m[b]})
	}
	return out
}

func (e *Engine) outstanding(ctx context.Context, res *Result, from, to time.Time) error {
	invoices, err := e.src.Documents.ListPosted(ctx, transaction.DocInvoice, from, to)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}
	purchases, err := e.src.Documents.ListPosted(ctx, transaction.DocPurchase, from, to)
	if err != nil {
		return fmt.Errorf("list purchases: %w", err)
	}
	balances, paid, _, err := e.openBalances(ctx, to)
	if err != nil {
		return err
	}
	docs := make(map[id.ID]*transaction.Document, len(invoices)+len(purchases))
	for _, d := range invoices {
		docs[d.ID] = d
	}
	for _, d := range purchases {
		docs[d.ID] = d
	}

	out := &Outstanding{
		AsOf:       types.FormatDate(to),
		Rows:       make([]OutstandingRow, 0),
		Receivable: decimal.Zero,
		Payable:    decimal.Zero,
	}
	recv, pay := make(map[string]types.Money), make(map[string]types.Money)
	for _, b := range balances {
		d, ok := docs[b.DocumentID]
		if !ok {
			continue
		}
		amountPaid := paid[b.DocumentID]
		due := b.GrandTotal.Sub(amountPaid)
		if !due.IsPositive() {
			continue
		}
		dueDate := d.Date
		if d.DueDate != nil {
			dueDate = *d.DueDate
		}
		days := int(to.Sub(dueDate).Hours() / 24)
		if days < 0 {
			days = 0
		}
		bucket := ageBucket(days)
		out.Rows = append(out.Rows, OutstandingRow{
			DocumentID:   d.ID,
			Kind:         string(b.Kind),
			Number:       d.Number,
			Date:         types.FormatDate(d.Date),
			DueDate:      types.FormatDate(dueDate),
			Counterparty: d.Counterparty.Name,
			GrandTotal:   b.GrandTotal,
			Paid:         amountPaid,
			Outstanding:  due,
			DaysOverdue:  days,
			Bucket:       bucket,
		})
		if b.Kind == payment.KindReceivable {
			out.Receivable = out.Receivable.Add(due)
			recv[bucket] = recv[bucket].Add(due)
		} else {
			out.Payable = out.Payable.Add(due)
			pay[bucket] = pay[bucket].Add(due)
		}
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i], out.Rows[j]
		if a.Kind != b.Kind {
			return a.Kind > b.Kind
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Number < b.Number
	})
	out.ReceivableAgeing = ageing(recv)
	out.PayableAgeing = ageing(pay)

	res.Outstanding = out
	res.Empty = len(out.Rows) == 0
	return nil
}
