package party

import (
	"context"
	"fmt"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/tx"
	"gstledger/internal/domain"
)

// Service provides business logic for the Party catalog.
type Service struct {
	*domain.CatalogService[*Party]
	repo Repository
}

// NewService creates a new Party service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Party]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "party",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)
	base.Hooks().OnBeforeUpdate(svc.prepareForUpdate)

	return svc
}

func (s *Service) prepareForCreate(ctx context.Context, p *Party) error {
	return s.checkGSTINUnique(ctx, p)
}

// prepareForUpdate rejects changes to the tax identity of a party that
// posted documents already snapshot.
func (s *Service) prepareForUpdate(ctx context.Context, p *Party) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}

	if !current.TaxIdentityEqual(p) {
		referenced, err := s.repo.IsReferenced(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("check party references: %w", err)
		}
		if referenced {
			return apperror.NewValidation("party is referenced by posted documents; only contact fields may change").
				WithDetail("party_id", p.ID.String())
		}
	}

	return s.checkGSTINUnique(ctx, p)
}

func (s *Service) checkGSTINUnique(ctx context.Context, p *Party) error {
	if p.GSTIN == "" {
		return nil
	}
	existing, err := s.repo.FindByGSTIN(ctx, p.GSTIN)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != p.ID {
		return apperror.NewDuplicate("party", "gstin", p.GSTIN)
	}
	return nil
}

// Create normalizes and stores a new party.
func (s *Service) Create(ctx context.Context, p *Party) error {
	p.Normalize()
	return s.CatalogService.Create(ctx, p)
}

// Update normalizes and saves a party.
func (s *Service) Update(ctx context.Context, p *Party) error {
	p.Normalize()
	return s.CatalogService.Update(ctx, p)
}
