package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/tax"
)

func TestExtractDBColumns_WalksEmbeddedCatalog(t *testing.T) {
	cols := ExtractDBColumns[product.Product]()

	for _, expected := range []string{
		"id", "version", "created_at", "updated_at", "name",
		"sku", "hsn_code", "gst_rate_percent", "opening_stock", "is_active",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.Equal(t, "id", cols[0])
}

func TestStructToMap_Product(t *testing.T) {
	p := product.NewProduct("Laptop bag", "SKU-7", "4202", decimal.NewFromInt(18))
	p.OpeningStock = types.NewQuantity(12)

	m := StructToMap(p)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, "Laptop bag", m["name"])
	assert.Equal(t, "SKU-7", m["sku"])
	assert.Equal(t, types.NewQuantity(12), m["opening_stock"])
	assert.Equal(t, true, m["is_active"])
}

func TestStructToMap_NestedAddressStaysWhole(t *testing.T) {
	p := party.NewParty("Acme", party.RoleCustomer, tax.StatusGST, "27AABCU9603R1ZN", "27")
	p.Shipping = party.Address{City: "Pune", StateCode: "27"}

	m := StructToMap(p)
	require.Contains(t, m, "shipping")
	assert.Equal(t, p.Shipping, m["shipping"])
	assert.Nil(t, StructToMap((*party.Party)(nil)))
	assert.Nil(t, StructToMap(42))
}
