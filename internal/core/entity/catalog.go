package entity

import (
	"context"
	"strings"
	"time"

	"gstledger/internal/core/apperror"
)

// Catalog is the base type for reference data (parties, products).
type Catalog struct {
	BaseEntity
	Timestamps

	// Name is the display name
	Name string `db:"name" json:"name"`
}

// NewCatalog creates a new Catalog with generated ID.
func NewCatalog(name string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Timestamps: NewTimestamps(),
		Name:       strings.TrimSpace(name),
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}

// CatalogFields returns the embedded catalog header. Generic repositories
// use it to manage version and timestamps.
func (c *Catalog) CatalogFields() *Catalog {
	return c
}

// Touch bumps the version and UpdatedAt.
func (c *Catalog) Touch() {
	c.UpdatedAt = time.Now().UTC()
	c.BaseEntity.Touch()
}
