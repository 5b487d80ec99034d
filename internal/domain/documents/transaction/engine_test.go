package transaction_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/app/apptest"
	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
	"gstledger/internal/domain/audit"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/infrastructure/storage/memory"
)

func money(m types.Money) string { return types.FormatMoney(m) }

func widget(t *testing.T, f *apptest.Fixture) *product.Product {
	return f.Product(t, apptest.ProductSpec{SKU: "WID-1", HSN: "8471", Rate: "18", PurchasePrice: "50"})
}

// stocked buys 100 widgets on 2024-01-05.
func stocked(t *testing.T) (*apptest.Fixture, *product.Product) {
	t.Helper()
	f := apptest.New(t)
	p := widget(t, f)
	f.Posted(t, transaction.DocPurchase, "2024-01-05", f.Vendor.ID, apptest.Line(p.ID, 100, "50"))
	return f, p
}

func eventTypes(ctx context.Context, f *apptest.Fixture) []string {
	var out []string
	for _, m := range memory.NewOutboxStore(f.Store).Messages(ctx) {
		out = append(out, m.EventType)
	}
	return out
}

func TestEngine_CreateComputesTax(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t)
	p := widget(t, f)

	t.Run("intra-state invoice", func(t *testing.T) {
		doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 1, "1000"))
		assert.Equal(t, entity.StatusDraft, doc.Status)
		assert.Equal(t, "27", doc.PlaceOfSupply)
		assert.Equal(t, "2023-24", doc.FinancialYear)
		assert.Equal(t, "1000.00", money(doc.TaxableValue))
		assert.Equal(t, "90.00", money(doc.CGST))
		assert.Equal(t, "90.00", money(doc.SGST))
		assert.Equal(t, "0.00", money(doc.IGST))
		assert.Equal(t, "1180.00", money(doc.GrandTotal))
		assert.Equal(t, "8471", doc.Lines[0].HSNCode)
		assert.Equal(t, "27AABCU9603R1ZN", doc.Counterparty.GSTIN)
	})

	t.Run("inter-state invoice", func(t *testing.T) {
		doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.InterB2B.ID, apptest.Line(p.ID, 1, "1000"))
		assert.Equal(t, "29", doc.PlaceOfSupply)
		assert.Equal(t, "0.00", money(doc.CGST))
		assert.Equal(t, "0.00", money(doc.SGST))
		assert.Equal(t, "180.00", money(doc.IGST))
		assert.Equal(t, "1180.00", money(doc.GrandTotal))
	})

	t.Run("place of supply override", func(t *testing.T) {
		doc, err := f.Documents.Create(ctx, transaction.DocInvoice, transaction.Header{
			Date:           apptest.Date("2024-01-10"),
			CounterpartyID: f.LocalB2B.ID,
			PlaceOfSupply:  "33",
		}, []transaction.LineInput{apptest.Line(p.ID, 1, "1000")})
		require.NoError(t, err)
		assert.Equal(t, "180.00", money(doc.IGST))
	})

	t.Run("unregistered buyer is still taxed", func(t *testing.T) {
		doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.Walkin.ID, apptest.Line(p.ID, 2, "250"))
		assert.Equal(t, "45.00", money(doc.CGST))
		assert.Equal(t, "45.00", money(doc.SGST))
		assert.Empty(t, doc.Counterparty.GSTIN)
	})

	t.Run("purchase from another state", func(t *testing.T) {
		doc := f.Draft(t, transaction.DocPurchase, "2024-01-05", f.Vendor.ID, apptest.Line(p.ID, 100, "50"))
		assert.Equal(t, "27", doc.PlaceOfSupply)
		assert.Equal(t, "29", doc.SellerStateCode)
		assert.Equal(t, "900.00", money(doc.IGST))
		assert.Equal(t, "5900.00", money(doc.GrandTotal))
	})

	t.Run("discount and rate override", func(t *testing.T) {
		five := decimal.NewFromInt(5)
		line := apptest.Line(p.ID, 3, "333.33")
		line.Discount = types.MustMoney("99.99")
		line.GSTRatePercent = &five
		doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, line)
		assert.Equal(t, "900.00", money(doc.TaxableValue))
		assert.Equal(t, "22.50", money(doc.CGST))
		assert.Equal(t, "22.50", money(doc.SGST))
	})
}

func TestEngine_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t)
	p := widget(t, f)

	inactive := f.Product(t, apptest.ProductSpec{SKU: "OLD-1", HSN: "8471", Rate: "18"})
	inactive.IsActive = false
	require.NoError(t, f.Products.Update(ctx, inactive))

	badRate := decimal.NewFromInt(7)
	tests := []struct {
		name    string
		docType transaction.DocType
		party   id.ID
		lines   []transaction.LineInput
	}{
		{"vendor on invoice", transaction.DocInvoice, f.Vendor.ID, []transaction.LineInput{apptest.Line(p.ID, 1, "10")}},
		{"customer on purchase", transaction.DocPurchase, f.LocalB2B.ID, []transaction.LineInput{apptest.Line(p.ID, 1, "10")}},
		{"unknown party", transaction.DocInvoice, id.New(), []transaction.LineInput{apptest.Line(p.ID, 1, "10")}},
		{"no lines", transaction.DocInvoice, f.LocalB2B.ID, nil},
		{"unknown product", transaction.DocInvoice, f.LocalB2B.ID, []transaction.LineInput{apptest.Line(id.New(), 1, "10")}},
		{"inactive product", transaction.DocInvoice, f.LocalB2B.ID, []transaction.LineInput{apptest.Line(inactive.ID, 1, "10")}},
		{"zero quantity", transaction.DocInvoice, f.LocalB2B.ID, []transaction.LineInput{apptest.Line(p.ID, 0, "10")}},
		{"negative rate", transaction.DocInvoice, f.LocalB2B.ID, []transaction.LineInput{apptest.Line(p.ID, 1, "-1")}},
		{"unknown slab", transaction.DocInvoice, f.LocalB2B.ID, []transaction.LineInput{{
			ProductID: p.ID, Quantity: types.NewQuantity(1), Rate: types.MustMoney("10"), GSTRatePercent: &badRate,
		}}},
		{"unknown type", "credit-note", f.LocalB2B.ID, []transaction.LineInput{apptest.Line(p.ID, 1, "10")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Documents.Create(ctx, tt.docType, transaction.Header{
				Date:           apptest.Date("2024-01-10"),
				CounterpartyID: tt.party,
			}, tt.lines)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
		})
	}

	// Rejected drafts do not consume numbers.
	doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 1, "10"))
	assert.Equal(t, "INV/2023-24/00001", doc.Number)
}

func TestEngine_Numbering(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t)
	p := widget(t, f)

	a := f.Draft(t, transaction.DocInvoice, "2024-03-30", f.LocalB2B.ID, apptest.Line(p.ID, 1, "10"))
	b := f.Draft(t, transaction.DocInvoice, "2024-03-31", f.LocalB2B.ID, apptest.Line(p.ID, 1, "10"))
	c := f.Draft(t, transaction.DocInvoice, "2024-04-01", f.LocalB2B.ID, apptest.Line(p.ID, 1, "10"))
	d := f.Draft(t, transaction.DocPurchase, "2024-03-31", f.Vendor.ID, apptest.Line(p.ID, 1, "10"))

	assert.Equal(t, "INV/2023-24/00001", a.Number)
	assert.Equal(t, "INV/2023-24/00002", b.Number)
	assert.Equal(t, "INV/2024-25/00001", c.Number)
	assert.Equal(t, "PUR/2023-24/00001", d.Number)

	const workers = 20
	var wg sync.WaitGroup
	numbers := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := f.Documents.Create(ctx, transaction.DocInvoice, transaction.Header{
				Date:           apptest.Date("2024-05-01"),
				CounterpartyID: f.LocalB2B.ID,
			}, []transaction.LineInput{apptest.Line(p.ID, 1, "10")})
			if assert.NoError(t, err) {
				numbers <- doc.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for n := range numbers {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
	assert.True(t, seen["INV/2024-25/00021"])
}

func TestEngine_PostMovesStockAndOpensBalance(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)

	bal, err := f.Stock.CurrentBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), bal)

	inv := f.Posted(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 30, "100"))
	assert.Equal(t, entity.StatusPosted, inv.Status)
	assert.NotNil(t, inv.PostedAt)

	bal, err = f.Stock.CurrentBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(70), bal)

	history, err := f.Stock.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "50.00", money(history[0].UnitValue))
	assert.Equal(t, "100.00", money(history[1].UnitValue))
	require.NotNil(t, history[1].ReferenceID)
	assert.Equal(t, inv.ID, *history[1].ReferenceID)

	outstanding, err := f.Payments.Outstanding(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "3540.00", money(outstanding))

	assert.Equal(t, []string{domain.EventDocumentPosted, domain.EventDocumentPosted}, eventTypes(ctx, f))

	entries, err := f.Audit.History(ctx, "document", inv.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionPost, entries[0].Action)

	_, err = f.Documents.Post(ctx, inv.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDocumentState))
}

func TestEngine_BackdatedAdjustmentThroughDocuments(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)
	f.Posted(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 30, "100"))

	_, err := f.Stock.Append(ctx, stock.Movement{
		ProductID:     p.ID,
		OccurredOn:    apptest.Date("2024-01-03"),
		EntryType:     stock.EntryAdjust,
		Quantity:      types.NewQuantity(-10),
		ReferenceType: stock.RefManual,
	})
	require.NoError(t, err)

	history, err := f.Stock.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, types.NewQuantity(-10), history[0].RunningBalance)
	assert.Equal(t, types.NewQuantity(90), history[1].RunningBalance)
	assert.Equal(t, types.NewQuantity(60), history[2].RunningBalance)
}

func TestEngine_PostRejectsShortStockAtomically(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)
	f.Posted(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 30, "100"))
	before := eventTypes(ctx, f)

	doc := f.Draft(t, transaction.DocInvoice, "2024-01-12", f.LocalB2B.ID, apptest.Line(p.ID, 200, "100"))
	_, err := f.Documents.Post(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	got, err := f.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, got.Status)

	history, err := f.Stock.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = f.Payments.Balance(ctx, doc.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDocumentState))

	records, err := f.Payments.List(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.Equal(t, before, eventTypes(ctx, f))

	bal, err := f.Stock.CurrentBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(70), bal)
}

func TestEngine_PostRejectsDrift(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)
	doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 1, "1000"))

	stored, err := f.Backend.Documents.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	stored.Lines[0].CGST = stored.Lines[0].CGST.Add(types.MustMoney("0.01"))
	require.NoError(t, f.Backend.Documents.Update(ctx, stored))

	_, err = f.Documents.Post(ctx, doc.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeReconciliation), "got %v", err)

	bal, err := f.Stock.CurrentBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), bal)
}

func TestEngine_Cancel(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)
	inv := f.Posted(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 30, "100"))

	rec, err := f.Payments.Apply(ctx, payment.ApplyRequest{
		DocumentID: inv.ID,
		Amount:     types.MustMoney("500"),
		Method:     payment.MethodUPI,
		PaidOn:     apptest.Date("2024-01-11"),
	})
	require.NoError(t, err)

	_, err = f.Documents.Cancel(ctx, inv.ID, "")
	assert.True(t, apperror.IsCode(err, apperror.CodePaymentsExist))

	_, err = f.Payments.Reverse(ctx, rec.ID, "refunded")
	require.NoError(t, err)

	cancelled, err := f.Documents.Cancel(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, cancelled.Status)
	assert.Equal(t, "document cancelled", cancelled.CancelReason)

	bal, err := f.Stock.CurrentBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), bal)

	history, err := f.Stock.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[1].IsVoided())

	outstanding, err := f.Payments.Outstanding(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, outstanding.IsZero())

	t.Run("twice", func(t *testing.T) {
		_, err := f.Documents.Cancel(ctx, inv.ID, "")
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDocumentState))
	})

	t.Run("draft", func(t *testing.T) {
		draft := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 1, "100"))
		_, err := f.Documents.Cancel(ctx, draft.ID, "")
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDocumentState))
	})

	t.Run("payment after cancel", func(t *testing.T) {
		_, err := f.Payments.Apply(ctx, payment.ApplyRequest{
			DocumentID: inv.ID,
			Amount:     types.MustMoney("1"),
			Method:     payment.MethodCash,
			PaidOn:     apptest.Date("2024-01-12"),
		})
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDocumentState))
	})

	t.Run("purchase whose stock was sold", func(t *testing.T) {
		f, p := stocked(t)
		purchases, err := f.Documents.ListPosted(ctx, transaction.DocPurchase, apptest.Date("2024-01-01"), apptest.Date("2024-01-31"))
		require.NoError(t, err)
		require.Len(t, purchases, 1)
		f.Posted(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 30, "100"))

		_, err = f.Documents.Cancel(ctx, purchases[0].ID, "")
		assert.True(t, apperror.IsInsufficientStock(err))

		got, err := f.Documents.Get(ctx, purchases[0].ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPosted, got.Status)
	})
}

func TestEngine_Edit(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)

	doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 1, "1000"))

	edited, err := f.Documents.Edit(ctx, doc.ID, transaction.Header{
		Date:           apptest.Date("2024-01-15"),
		CounterpartyID: f.InterB2B.ID,
		Notes:          "  ship by road ",
	}, []transaction.LineInput{apptest.Line(p.ID, 2, "1000")})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, edited.ID)
	assert.Equal(t, doc.Number, edited.Number)
	assert.Equal(t, "ship by road", edited.Notes)
	assert.Equal(t, "360.00", money(edited.IGST))
	assert.Equal(t, doc.Version+1, edited.Version)

	t.Run("financial year change", func(t *testing.T) {
		_, err := f.Documents.Edit(ctx, doc.ID, transaction.Header{
			Date:           apptest.Date("2024-04-02"),
			CounterpartyID: f.LocalB2B.ID,
		}, []transaction.LineInput{apptest.Line(p.ID, 1, "1000")})
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	})

	t.Run("cancelled", func(t *testing.T) {
		posted := f.Posted(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 1, "100"))
		_, err := f.Documents.Cancel(ctx, posted.ID, "typo")
		require.NoError(t, err)

		_, err = f.Documents.Edit(ctx, posted.ID, transaction.Header{
			Date:           apptest.Date("2024-01-10"),
			CounterpartyID: f.LocalB2B.ID,
		}, []transaction.LineInput{apptest.Line(p.ID, 1, "100")})
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDocumentState))
	})
}

func TestEngine_PostLocksProductsOfConcurrentEdit(t *testing.T) {
	f, a := stocked(t)
	b := f.Product(t, apptest.ProductSpec{SKU: "GAD-1", HSN: "8517", Rate: "18", PurchasePrice: "40"})
	f.Posted(t, transaction.DocPurchase, "2024-01-05", f.Vendor.ID, apptest.Line(b.ID, 20, "40"))

	doc := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(a.ID, 5, "100"))

	editing := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.Documents.Hooks().OnBeforeUpdate(func(ctx context.Context, d *transaction.Document) error {
		if d.ID == doc.ID {
			once.Do(func() {
				close(editing)
				<-release
			})
		}
		return nil
	})
	var heldB bool
	f.Documents.Hooks().OnAfterPost(func(ctx context.Context, d *transaction.Document) error {
		if d.ID == doc.ID {
			heldB = f.Locks.Holds(ctx, stock.LockKey(b.ID))
		}
		return nil
	})

	editErr := make(chan error, 1)
	go func() {
		_, err := f.Documents.Edit(context.Background(), doc.ID, transaction.Header{
			Date:           apptest.Date("2024-01-10"),
			CounterpartyID: f.LocalB2B.ID,
		}, []transaction.LineInput{apptest.Line(b.ID, 5, "100")})
		editErr <- err
	}()
	<-editing

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	type result struct {
		doc *transaction.Document
		err error
	}
	posted := make(chan result, 1)
	go func() {
		d, err := f.Documents.Post(ctx, doc.ID)
		posted <- result{d, err}
	}()

	// Let Post reach the document lock while the edit is still open.
	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, <-editErr)

	res := <-posted
	require.NoError(t, res.err)
	assert.Equal(t, entity.StatusPosted, res.doc.Status)
	assert.True(t, heldB, "post must hold the lock of the product the edit switched to")

	balA, err := f.Stock.CurrentBalance(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), balA)
	balB, err := f.Stock.CurrentBalance(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(15), balB)
}

func TestEngine_AmendPosted(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)
	inv := f.Posted(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 30, "100"))

	replacement, err := f.Documents.Edit(ctx, inv.ID, transaction.Header{
		Date:           apptest.Date("2024-01-10"),
		CounterpartyID: f.LocalB2B.ID,
	}, []transaction.LineInput{apptest.Line(p.ID, 25, "100")})
	require.NoError(t, err)

	assert.NotEqual(t, inv.ID, replacement.ID)
	assert.Equal(t, entity.StatusDraft, replacement.Status)
	require.NotNil(t, replacement.AmendsID)
	assert.Equal(t, inv.ID, *replacement.AmendsID)
	assert.Equal(t, "INV/2023-24/00002", replacement.Number)

	original, err := f.Documents.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, original.Status)
	assert.Equal(t, "amended", original.CancelReason)

	bal, err := f.Stock.CurrentBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(100), bal)

	_, err = f.Documents.Post(ctx, replacement.ID)
	require.NoError(t, err)
	bal, err = f.Stock.CurrentBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(75), bal)

	t.Run("amend with payments", func(t *testing.T) {
		_, err := f.Payments.Apply(ctx, payment.ApplyRequest{
			DocumentID: replacement.ID,
			Amount:     types.MustMoney("10"),
			Method:     payment.MethodCash,
			PaidOn:     apptest.Date("2024-01-11"),
		})
		require.NoError(t, err)

		_, err = f.Documents.Amend(ctx, replacement.ID, transaction.Header{
			Date:           apptest.Date("2024-01-10"),
			CounterpartyID: f.LocalB2B.ID,
		}, []transaction.LineInput{apptest.Line(p.ID, 20, "100")})
		assert.True(t, apperror.IsCode(err, apperror.CodePaymentsExist))

		got, err := f.Documents.Get(ctx, replacement.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPosted, got.Status)
	})

	t.Run("amend a draft", func(t *testing.T) {
		draft := f.Draft(t, transaction.DocInvoice, "2024-01-10", f.LocalB2B.ID, apptest.Line(p.ID, 1, "100"))
		_, err := f.Documents.Amend(ctx, draft.ID, transaction.Header{
			Date:           apptest.Date("2024-01-10"),
			CounterpartyID: f.LocalB2B.ID,
		}, []transaction.LineInput{apptest.Line(p.ID, 1, "100")})
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidDocumentState))
	})
}

func TestEngine_List(t *testing.T) {
	ctx := context.Background()
	f, p := stocked(t)
	f.Posted(t, transaction.DocInvoice, "2024-01-20", f.LocalB2B.ID, apptest.Line(p.ID, 1, "100"))
	f.Draft(t, transaction.DocInvoice, "2024-01-15", f.InterB2B.ID, apptest.Line(p.ID, 1, "100"))

	invoice := transaction.DocInvoice
	res, err := f.Documents.List(ctx, transaction.ListFilter{DocType: &invoice})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.True(t, res.Items[0].Date.Before(res.Items[1].Date))

	posted := entity.StatusPosted
	res, err = f.Documents.List(ctx, transaction.ListFilter{DocType: &invoice, Status: &posted})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	docs, err := f.Documents.ListPosted(ctx, transaction.DocInvoice, apptest.Date("2024-01-01"), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Len(t, docs[0].Lines, 1)
}
