package memory

import (
	"context"
	"fmt"
	"time"

	"gstledger/internal/core/numerator"
	pkgnumerator "gstledger/pkg/numerator"
)

// Sequences implements numerator.Generator over the store. Both strategies
// take the next value in the caller's transaction, so a rolled back
// document returns its number.
type Sequences struct {
	store *Store
}

// NewSequences creates the sequence generator.
func NewSequences(store *Store) *Sequences {
	return &Sequences{store: store}
}

var _ numerator.Generator = (*Sequences)(nil)

// GetNextNumber implements numerator.Generator.
func (g *Sequences) GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, date time.Time) (string, error) {
	if cfg.Prefix == "" {
		return "", fmt.Errorf("numerator prefix is required")
	}
	key := pkgnumerator.Key(cfg, date)
	var next int64
	err := g.store.write(ctx, func(st *state) error {
		cur, _ := st.sequences.get(key)
		next = cur + 1
		st.sequences.put(key, next)
		return nil
	})
	if err != nil {
		return "", err
	}
	return pkgnumerator.Format(cfg, date, next), nil
}

// SetNextNumber implements numerator.Generator.
func (g *Sequences) SetNextNumber(ctx context.Context, cfg numerator.Config, date time.Time, value int64) error {
	if value < 0 {
		return fmt.Errorf("sequence value cannot be negative")
	}
	key := pkgnumerator.Key(cfg, date)
	return g.store.write(ctx, func(st *state) error {
		st.sequences.put(key, value)
		return nil
	})
}
