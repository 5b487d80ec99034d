// Package apptest builds a wired in-memory container with parties and
// products for engine and handler tests.
package apptest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gstledger/internal/app"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/tax"
	"gstledger/internal/infrastructure/storage/memory"
)

// Seller is the profile every fixture invoices from (Maharashtra).
var Seller = transaction.SellerProfile{
	Name:      "Shree Ganesh Traders",
	GSTIN:     "27AAPFU0939F1ZV",
	StateCode: "27",
	Status:    tax.StatusGST,
}

// BooksStart dates opening stock.
var BooksStart = Date("2023-04-01")

// Fixture is a container with a standard set of parties.
type Fixture struct {
	*app.Container
	Store *memory.Store

	// LocalB2B is a registered customer in the seller's state.
	LocalB2B *party.Party
	// InterB2B is a registered customer in Karnataka.
	InterB2B *party.Party
	// Walkin is an unregistered customer in the seller's state.
	Walkin *party.Party
	// Vendor is a registered supplier in Karnataka.
	Vendor *party.Party
	// LocalVendor is a registered supplier in the seller's state.
	LocalVendor *party.Party
}

// New creates a fixture over a fresh memory store.
func New(t testing.TB) *Fixture {
	t.Helper()
	return NewWith(t, nil)
}

// NewWith is New with a hook to swap backend parts before wiring.
func NewWith(t testing.TB, override func(b *app.Backend)) *Fixture {
	t.Helper()
	store := memory.New()
	b := app.MemoryBackend(store)
	if override != nil {
		override(&b)
	}
	c, err := app.New(b, app.Options{
		Seller:     Seller,
		BooksStart: BooksStart,
	})
	require.NoError(t, err)

	f := &Fixture{Container: c, Store: store}
	f.LocalB2B = f.Party(t, "Mumbai Retail LLP", party.RoleCustomer, tax.StatusGST, "27AABCU9603R1ZN", "27")
	f.InterB2B = f.Party(t, "Bengaluru Stores", party.RoleCustomer, tax.StatusGST, "29ABCDE1234F1ZW", "29")
	f.Walkin = f.Party(t, "Walk-in Customer", party.RoleCustomer, tax.StatusNonGST, "", "27")
	f.Vendor = f.Party(t, "Karnataka Components", party.RoleVendor, tax.StatusGST, "29AAGCB7383J1Z4", "29")
	f.LocalVendor = f.Party(t, "Pune Distributors", party.RoleBoth, tax.StatusGST, "27AAACR5055K1Z7", "27")
	return f
}

// Date parses a YYYY-MM-DD literal.
func Date(s string) time.Time {
	return types.MustDate(s)
}

// Party creates and stores a party.
func (f *Fixture) Party(t testing.TB, name string, role party.Role, status tax.Status, gstin, state string) *party.Party {
	t.Helper()
	p := party.NewParty(name, role, status, gstin, state)
	require.NoError(t, f.Parties.Create(context.Background(), p))
	return p
}

// ProductSpec describes a product to create.
type ProductSpec struct {
	SKU           string
	HSN           string
	Rate          string
	Category      string
	Opening       int64
	PurchasePrice string
}

// Product creates and stores a product.
func (f *Fixture) Product(t testing.TB, ps ProductSpec) *product.Product {
	t.Helper()
	p := product.NewProduct(ps.SKU+" item", ps.SKU, ps.HSN, decimal.RequireFromString(ps.Rate))
	p.Category = ps.Category
	p.OpeningStock = types.NewQuantity(ps.Opening)
	if ps.PurchasePrice != "" {
		p.PurchasePrice = types.MustMoney(ps.PurchasePrice)
	}
	require.NoError(t, f.Products.Create(context.Background(), p))
	return p
}

// Line builds a line input with whole-unit quantity.
func Line(productID id.ID, qty int64, rate string) transaction.LineInput {
	return transaction.LineInput{
		ProductID: productID,
		Quantity:  types.NewQuantity(qty),
		Rate:      types.MustMoney(rate),
	}
}

// Draft creates a draft document.
func (f *Fixture) Draft(t testing.TB, docType transaction.DocType, date string, partyID id.ID, lines ...transaction.LineInput) *transaction.Document {
	t.Helper()
	doc, err := f.Documents.Create(context.Background(), docType, transaction.Header{
		Date:           Date(date),
		CounterpartyID: partyID,
	}, lines)
	require.NoError(t, err)
	return doc
}

// Posted creates and posts a document.
func (f *Fixture) Posted(t testing.TB, docType transaction.DocType, date string, partyID id.ID, lines ...transaction.LineInput) *transaction.Document {
	t.Helper()
	doc := f.Draft(t, docType, date, partyID, lines...)
	posted, err := f.Documents.Post(context.Background(), doc.ID)
	require.NoError(t, err)
	return posted
}
