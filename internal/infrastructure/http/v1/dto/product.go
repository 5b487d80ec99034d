package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/catalogs/product"
)

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	Name           string          `json:"name" binding:"required"`
	SKU            string          `json:"sku" binding:"required"`
	HSNCode        string          `json:"hsnCode" binding:"required,numeric"`
	UOM            string          `json:"uom"`
	Category       string          `json:"category"`
	GSTRatePercent decimal.Decimal `json:"gstRatePercent"`
	OpeningStock   types.Quantity  `json:"openingStock"`
	PurchasePrice  types.Money     `json:"purchasePrice"`
	SalePrice      types.Money     `json:"salePrice"`
}

// ToProduct maps the request to a new product.
func (r CreateProductRequest) ToProduct() *product.Product {
	p := product.NewProduct(r.Name, r.SKU, r.HSNCode, r.GSTRatePercent)
	p.UOM = r.UOM
	p.Category = r.Category
	p.OpeningStock = r.OpeningStock
	p.PurchasePrice = r.PurchasePrice
	p.SalePrice = r.SalePrice
	p.Normalize()
	return p
}

// UpdateProductRequest is the body of PUT /products/:id. Nil fields are
// left unchanged; opening stock cannot be changed here.
type UpdateProductRequest struct {
	Name           *string          `json:"name" binding:"omitempty,min=1"`
	SKU            *string          `json:"sku" binding:"omitempty,min=1"`
	HSNCode        *string          `json:"hsnCode" binding:"omitempty,numeric"`
	UOM            *string          `json:"uom"`
	Category       *string          `json:"category"`
	GSTRatePercent *decimal.Decimal `json:"gstRatePercent"`
	PurchasePrice  *types.Money     `json:"purchasePrice"`
	SalePrice      *types.Money     `json:"salePrice"`
	IsActive       *bool            `json:"isActive"`
	Version        int              `json:"version" binding:"required,min=1"`
}

// Apply copies the set fields onto p.
func (r UpdateProductRequest) Apply(p *product.Product) *product.Product {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.SKU != nil {
		p.SKU = *r.SKU
	}
	if r.HSNCode != nil {
		p.HSNCode = *r.HSNCode
	}
	if r.UOM != nil {
		p.UOM = *r.UOM
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.GSTRatePercent != nil {
		p.GSTRatePercent = *r.GSTRatePercent
	}
	if r.PurchasePrice != nil {
		p.PurchasePrice = *r.PurchasePrice
	}
	if r.SalePrice != nil {
		p.SalePrice = *r.SalePrice
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	p.Version = r.Version
	p.Normalize()
	return p
}

// ProductResponse is a product in API responses.
type ProductResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	HSNCode        string          `json:"hsnCode"`
	UOM            string          `json:"uom"`
	Category       string          `json:"category,omitempty"`
	GSTRatePercent decimal.Decimal `json:"gstRatePercent"`
	OpeningStock   types.Quantity  `json:"openingStock"`
	PurchasePrice  types.Money     `json:"purchasePrice"`
	SalePrice      types.Money     `json:"salePrice"`
	IsActive       bool            `json:"isActive"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// FromProduct maps a product to its response.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		SKU:            p.SKU,
		HSNCode:        p.HSNCode,
		UOM:            p.UOM,
		Category:       p.Category,
		GSTRatePercent: p.GSTRatePercent,
		OpeningStock:   p.OpeningStock,
		PurchasePrice:  p.PurchasePrice,
		SalePrice:      p.SalePrice,
		IsActive:       p.IsActive,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
