package product

import (
	"context"

	"gstledger/internal/core/id"
	"gstledger/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// FindBySKU retrieves a product by its unique SKU.
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// All returns every product ordered by name, then id.
	All(ctx context.Context) ([]*Product, error)
}

// Directory is the read-only view of products used by the ledger engines.
type Directory interface {
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	All(ctx context.Context) ([]*Product, error)
}
