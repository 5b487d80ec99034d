package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"gstledger/internal/core/apperror"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*product.Product](
			txManager,
			productTable,
			"product",
			postgres.ExtractDBColumns[product.Product](),
			[]string{"name", "sku"},
			map[string]string{"ux_cat_products_sku": "sku"},
			func() *product.Product { return &product.Product{} },
		),
	}
}

var _ product.Repository = (*ProductRepo)(nil)

// FindBySKU retrieves a product by its unique SKU.
func (r *ProductRepo) FindBySKU(ctx context.Context, sku string) (*product.Product, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"sku": sku}).
		Limit(1)

	p, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", sku)
		}
		return nil, err
	}
	return p, nil
}

// All returns every product ordered by name, then id.
func (r *ProductRepo) All(ctx context.Context) ([]*product.Product, error) {
	return r.FindAll(ctx, r.baseSelect().OrderBy("name ASC", "id ASC"))
}
