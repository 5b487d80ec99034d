package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers.
// This is the domain contract - implementations live in infrastructure layer.
type Generator interface {
	// GetNextNumber generates the next document number for the period containing date.
	// Pattern: PREFIX/FY/NNNNN (e.g., INV/2024-25/00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, date time.Time) (string, error)

	// SetNextNumber sets the last issued value (for migrating an existing series).
	SetNextNumber(ctx context.Context, cfg Config, date time.Time, value int64) error
}
