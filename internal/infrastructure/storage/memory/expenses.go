package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/domain"
	"gstledger/internal/domain/expense"
)

// ExpenseRepo implements expense.Repository.
type ExpenseRepo struct {
	store *Store
}

// NewExpenseRepo creates the expense repository.
func NewExpenseRepo(store *Store) *ExpenseRepo {
	return &ExpenseRepo{store: store}
}

var _ expense.Repository = (*ExpenseRepo)(nil)

func (r *ExpenseRepo) Create(ctx context.Context, e *expense.Expense) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.expenses.get(e.ID); ok {
			return apperror.NewDuplicate("expense", "id", e.ID.String())
		}
		st.expenses.put(e.ID, *e)
		return nil
	})
}

func sortExpenses(items []*expense.Expense) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return id.Less(a.ID, b.ID)
	})
}

func (r *ExpenseRepo) List(ctx context.Context, filter expense.ListFilter) (domain.ListResult[*expense.Expense], error) {
	st := r.store.read(ctx)
	items := make([]*expense.Expense, 0)
	for _, e := range st.expenses.rows {
		if !matchIDs(filter.ListFilter, e.ID) {
			continue
		}
		if filter.AccountHead != "" && !strings.EqualFold(e.AccountHead, filter.AccountHead) {
			continue
		}
		if filter.DateFrom != nil && e.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && e.Date.After(*filter.DateTo) {
			continue
		}
		if filter.Search != "" && !containsFold(e.Description, filter.Search) && !containsFold(e.AccountHead, filter.Search) {
			continue
		}
		e := e
		items = append(items, &e)
	}
	sortExpenses(items)
	return domain.Page(items, filter.ListFilter), nil
}

func (r *ExpenseRepo) ListRange(ctx context.Context, from, to time.Time) ([]*expense.Expense, error) {
	st := r.store.read(ctx)
	items := make([]*expense.Expense, 0)
	for _, e := range st.expenses.rows {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		e := e
		items = append(items, &e)
	}
	sortExpenses(items)
	return items, nil
}
