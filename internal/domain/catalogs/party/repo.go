package party

import (
	"context"

	"gstledger/internal/core/id"
	"gstledger/internal/domain"
)

// Repository defines the interface for Party persistence.
type Repository interface {
	domain.CatalogRepository[*Party]

	// FindByGSTIN retrieves a party by GSTIN.
	FindByGSTIN(ctx context.Context, gstin string) (*Party, error)

	// IsReferenced reports whether any non-draft document points at the party.
	IsReferenced(ctx context.Context, partyID id.ID) (bool, error)
}

// Directory is the read-only view of parties used by the ledger engines.
type Directory interface {
	GetByID(ctx context.Context, partyID id.ID) (*Party, error)
}
