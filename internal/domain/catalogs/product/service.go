package product

import (
	"context"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/tx"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
)

// OpeningStockRecorder posts a product's opening balance to the stock ledger.
type OpeningStockRecorder interface {
	RecordOpening(ctx context.Context, productID id.ID, on time.Time, qty types.Quantity, unitValue types.Money) error
}

// Service provides business logic for the Product catalog.
type Service struct {
	*domain.CatalogService[*Product]
	repo       Repository
	opening    OpeningStockRecorder
	booksStart time.Time
}

// NewService creates a new Product service. Opening stock is dated booksStart.
func NewService(repo Repository, txManager tx.Manager, opening OpeningStockRecorder, booksStart time.Time) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "product",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		opening:        opening,
		booksStart:     booksStart,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)
	base.Hooks().OnBeforeUpdate(svc.prepareForUpdate)

	return svc
}

// prepareForCreate checks SKU uniqueness and records opening stock in the
// same transaction as the product row.
func (s *Service) prepareForCreate(ctx context.Context, p *Product) error {
	if err := s.checkSKUUnique(ctx, p); err != nil {
		return err
	}
	if p.OpeningStock.IsPositive() && s.opening != nil {
		return s.opening.RecordOpening(ctx, p.ID, s.booksStart, p.OpeningStock, p.PurchasePrice)
	}
	return nil
}

func (s *Service) prepareForUpdate(ctx context.Context, p *Product) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.OpeningStock != p.OpeningStock {
		return apperror.NewValidation("opening stock is fixed once recorded; post a stock adjustment instead").
			WithDetail("field", "openingStock")
	}
	return s.checkSKUUnique(ctx, p)
}

func (s *Service) checkSKUUnique(ctx context.Context, p *Product) error {
	existing, err := s.repo.FindBySKU(ctx, p.SKU)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != p.ID {
		return apperror.NewDuplicate("product", "sku", p.SKU)
	}
	return nil
}

// Create normalizes and stores a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	p.Normalize()
	return s.CatalogService.Create(ctx, p)
}

// Update normalizes and saves a product.
func (s *Service) Update(ctx context.Context, p *Product) error {
	p.Normalize()
	return s.CatalogService.Update(ctx, p)
}
