package memory

import (
	"context"
	"sort"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/domain/registers/stock"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	store *Store
}

// NewStockRepo creates the stock entry repository.
func NewStockRepo(store *Store) *StockRepo {
	return &StockRepo{store: store}
}

var _ stock.Repository = (*StockRepo)(nil)

// LockProducts is a no-op: write transactions are serialized.
func (r *StockRepo) LockProducts(ctx context.Context, productIDs []id.ID) error {
	return nil
}

func (r *StockRepo) Insert(ctx context.Context, e *stock.Entry) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.entries.get(e.ID); ok {
			return apperror.NewDuplicate("stock entry", "id", e.ID.String())
		}
		st.entries.put(e.ID, *e)
		return nil
	})
}

func (r *StockRepo) UpdateRunningBalances(ctx context.Context, updates []stock.BalanceUpdate) error {
	return r.store.write(ctx, func(st *state) error {
		for _, u := range updates {
			e, ok := st.entries.get(u.EntryID)
			if !ok {
				return apperror.NewNotFound("stock entry", u.EntryID.String())
			}
			e.RunningBalance = u.RunningBalance
			st.entries.put(e.ID, e)
		}
		return nil
	})
}

func (r *StockRepo) MarkVoided(ctx context.Context, entryID id.ID, at time.Time, reason string) error {
	return r.store.write(ctx, func(st *state) error {
		e, ok := st.entries.get(entryID)
		if !ok {
			return apperror.NewNotFound("stock entry", entryID.String())
		}
		if e.VoidedAt != nil {
			return apperror.NewValidation("stock entry is already voided").
				WithDetail("entry_id", entryID.String())
		}
		e.VoidedAt = &at
		e.VoidReason = reason
		st.entries.put(e.ID, e)
		return nil
	})
}

func (r *StockRepo) GetByID(ctx context.Context, entryID id.ID) (*stock.Entry, error) {
	e, ok := r.store.read(ctx).entries.get(entryID)
	if !ok {
		return nil, apperror.NewNotFound("stock entry", entryID.String())
	}
	return &e, nil
}

func sortEntries(entries []stock.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if !a.OccurredOn.Equal(b.OccurredOn) {
			return a.OccurredOn.Before(b.OccurredOn)
		}
		if a.ProductID != b.ProductID {
			return id.Less(a.ProductID, b.ProductID)
		}
		return a.Sequence < b.Sequence
	})
}

func (r *StockRepo) ListByProduct(ctx context.Context, productID id.ID) ([]stock.Entry, error) {
	st := r.store.read(ctx)
	out := make([]stock.Entry, 0)
	for _, e := range st.entries.rows {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *StockRepo) ListByReference(ctx context.Context, refType stock.ReferenceType, refID id.ID) ([]stock.Entry, error) {
	st := r.store.read(ctx)
	out := make([]stock.Entry, 0)
	for _, e := range st.entries.rows {
		if e.ReferenceType == refType && e.ReferenceID != nil && *e.ReferenceID == refID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *StockRepo) Revision(ctx context.Context, productID id.ID) (stock.Revision, error) {
	var rev stock.Revision
	for _, e := range r.store.read(ctx).entries.rows {
		if e.ProductID != productID {
			continue
		}
		rev.Entries++
		if e.VoidedAt != nil {
			rev.Voided++
		}
	}
	return rev, nil
}

func (r *StockRepo) ProductIDs(ctx context.Context) ([]id.ID, error) {
	st := r.store.read(ctx)
	ids := make([]id.ID, 0)
	for _, e := range st.entries.rows {
		ids = append(ids, e.ProductID)
	}
	return id.SortedUnique(ids), nil
}
