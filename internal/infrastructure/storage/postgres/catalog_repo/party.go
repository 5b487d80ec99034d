package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/infrastructure/storage/postgres"
)

const partyTable = "cat_parties"

// PartyRepo implements party.Repository.
type PartyRepo struct {
	*BaseCatalogRepo[*party.Party]
}

// NewPartyRepo creates a new party repository.
func NewPartyRepo(txManager *postgres.TxManager) *PartyRepo {
	return &PartyRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*party.Party](
			txManager,
			partyTable,
			"party",
			postgres.ExtractDBColumns[party.Party](),
			[]string{"name", "gstin"},
			map[string]string{"ux_cat_parties_gstin": "gstin"},
			func() *party.Party { return &party.Party{} },
		),
	}
}

var _ party.Repository = (*PartyRepo)(nil)

// FindByGSTIN retrieves a party by GSTIN.
func (r *PartyRepo) FindByGSTIN(ctx context.Context, gstin string) (*party.Party, error) {
	if gstin == "" {
		return nil, apperror.NewNotFound("party", gstin)
	}
	q := r.baseSelect().
		Where(squirrel.Eq{"gstin": gstin}).
		Limit(1)

	p, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("party", gstin)
		}
		return nil, err
	}
	return p, nil
}

// IsReferenced reports whether a posted or cancelled document names the party.
func (r *PartyRepo) IsReferenced(ctx context.Context, partyID id.ID) (bool, error) {
	var referenced bool
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doc_transactions
			WHERE counterparty_id = $1 AND status <> $2
		)
	`, partyID, entity.StatusDraft).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("party references: %w", err)
	}
	return referenced, nil
}
