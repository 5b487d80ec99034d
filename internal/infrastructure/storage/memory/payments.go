package memory

import (
	"context"
	"sort"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/domain/registers/payment"
)

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	store *Store
}

// NewPaymentRepo creates the payment repository.
func NewPaymentRepo(store *Store) *PaymentRepo {
	return &PaymentRepo{store: store}
}

var _ payment.Repository = (*PaymentRepo)(nil)

// LockDocument is a no-op: write transactions are serialized.
func (r *PaymentRepo) LockDocument(ctx context.Context, documentID id.ID) error {
	return nil
}

func (r *PaymentRepo) InsertRecord(ctx context.Context, rec *payment.Record) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.records.get(rec.ID); ok {
			return apperror.NewDuplicate("payment", "id", rec.ID.String())
		}
		st.records.put(rec.ID, *rec)
		return nil
	})
}

func (r *PaymentRepo) GetRecord(ctx context.Context, recordID id.ID) (*payment.Record, error) {
	rec, ok := r.store.read(ctx).records.get(recordID)
	if !ok {
		return nil, apperror.NewNotFound("payment", recordID.String())
	}
	return &rec, nil
}

func (r *PaymentRepo) SetReversedBy(ctx context.Context, recordID, reversalID id.ID) error {
	return r.store.write(ctx, func(st *state) error {
		rec, ok := st.records.get(recordID)
		if !ok {
			return apperror.NewNotFound("payment", recordID.String())
		}
		if rec.ReversedByID != nil {
			return apperror.NewValidation("payment is already reversed").
				WithDetail("payment_id", recordID.String())
		}
		rev := reversalID
		rec.ReversedByID = &rev
		st.records.put(rec.ID, rec)
		return nil
	})
}

func (r *PaymentRepo) ListRecords(ctx context.Context, filter payment.RecordFilter) ([]payment.Record, error) {
	st := r.store.read(ctx)
	out := make([]payment.Record, 0)
	for _, rec := range st.records.rows {
		if filter.DocumentID != nil && rec.DocumentID != *filter.DocumentID {
			continue
		}
		if filter.PaidOnTo != nil && rec.PaidOn.After(*filter.PaidOnTo) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if !a.PaidOn.Equal(b.PaidOn) {
			return a.PaidOn.Before(b.PaidOn)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return id.Less(a.ID, b.ID)
	})
	return out, nil
}

func (r *PaymentRepo) CreateBalance(ctx context.Context, b *payment.Balance) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.balances.get(b.DocumentID); ok {
			return apperror.NewDuplicate("payment balance", "document_id", b.DocumentID.String())
		}
		st.balances.put(b.DocumentID, *b)
		return nil
	})
}

func (r *PaymentRepo) GetBalance(ctx context.Context, documentID id.ID) (*payment.Balance, error) {
	b, ok := r.store.read(ctx).balances.get(documentID)
	if !ok {
		return nil, apperror.NewNotFound("payment balance", documentID.String())
	}
	return &b, nil
}

func (r *PaymentRepo) UpdateBalance(ctx context.Context, b *payment.Balance, expectedVersion int) error {
	return r.store.write(ctx, func(st *state) error {
		current, ok := st.balances.get(b.DocumentID)
		if !ok {
			return apperror.NewNotFound("payment balance", b.DocumentID.String())
		}
		if current.Version != expectedVersion {
			return apperror.NewConcurrentModification("payment balance", b.DocumentID.String())
		}
		st.balances.put(b.DocumentID, *b)
		return nil
	})
}

func (r *PaymentRepo) ListBalances(ctx context.Context, filter payment.BalanceFilter) ([]payment.Balance, error) {
	st := r.store.read(ctx)
	out := make([]payment.Balance, 0)
	for _, b := range st.balances.rows {
		if filter.Kind != nil && b.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.CounterpartyID != nil && b.CounterpartyID != *filter.CounterpartyID {
			continue
		}
		if filter.DocumentDateTo != nil && b.DocumentDate.After(*filter.DocumentDateTo) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if !a.DocumentDate.Equal(b.DocumentDate) {
			return a.DocumentDate.Before(b.DocumentDate)
		}
		return id.Less(a.DocumentID, b.DocumentID)
	})
	return out, nil
}
