// Package product provides the Product catalog (goods with HSN and GST rate).
package product

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/tax"
)

var hsnRE = regexp.MustCompile(`^([0-9]{4}|[0-9]{6}|[0-9]{8})$`)

// Product is a stocked good.
type Product struct {
	entity.Catalog

	SKU      string `db:"sku" json:"sku"`
	HSNCode  string `db:"hsn_code" json:"hsnCode"`
	UOM      string `db:"uom" json:"uom"`
	Category string `db:"category" json:"category,omitempty"`

	GSTRatePercent decimal.Decimal `db:"gst_rate_percent" json:"gstRatePercent"`

	// OpeningStock is posted once to the stock ledger on create.
	OpeningStock types.Quantity `db:"opening_stock" json:"openingStock"`

	PurchasePrice types.Money `db:"purchase_price" json:"purchasePrice"`
	SalePrice     types.Money `db:"sale_price" json:"salePrice"`

	IsActive bool `db:"is_active" json:"isActive"`
}

// NewProduct creates an active product.
func NewProduct(name, sku, hsn string, rate decimal.Decimal) *Product {
	return &Product{
		Catalog:        entity.NewCatalog(name),
		SKU:            strings.TrimSpace(sku),
		HSNCode:        strings.TrimSpace(hsn),
		UOM:            "NOS",
		GSTRatePercent: rate,
		PurchasePrice:  decimal.Zero,
		SalePrice:      decimal.Zero,
		IsActive:       true,
	}
}

// Normalize canonicalizes free-text fields.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	p.HSNCode = strings.TrimSpace(p.HSNCode)
	p.UOM = strings.ToUpper(strings.TrimSpace(p.UOM))
	p.Category = strings.TrimSpace(p.Category)
	if p.UOM == "" {
		p.UOM = "NOS"
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if !hsnRE.MatchString(p.HSNCode) {
		return apperror.NewValidation("hsn code must be 4, 6 or 8 digits").
			WithDetail("field", "hsnCode").
			WithDetail("value", p.HSNCode)
	}
	if !tax.ValidRate(p.GSTRatePercent) {
		return apperror.NewValidation("gst rate is not a notified slab").
			WithDetail("field", "gstRatePercent").
			WithDetail("value", p.GSTRatePercent.String())
	}
	if p.OpeningStock.IsNegative() {
		return apperror.NewValidation("opening stock cannot be negative").
			WithDetail("field", "openingStock")
	}
	if p.PurchasePrice.IsNegative() {
		return apperror.NewValidation("purchase price cannot be negative").
			WithDetail("field", "purchasePrice")
	}
	if p.SalePrice.IsNegative() {
		return apperror.NewValidation("sale price cannot be negative").
			WithDetail("field", "salePrice")
	}
	return nil
}
