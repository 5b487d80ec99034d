package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/domain"
	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/registers/payment"
)

func cloneDocument(d transaction.Document) *transaction.Document {
	out := d
	out.Lines = append([]transaction.Line(nil), d.Lines...)
	if d.DueDate != nil {
		due := *d.DueDate
		out.DueDate = &due
	}
	if d.AmendsID != nil {
		amends := *d.AmendsID
		out.AmendsID = &amends
	}
	return &out
}

// DocumentRepo implements transaction.Repository.
type DocumentRepo struct {
	store *Store
}

// NewDocumentRepo creates the document repository.
func NewDocumentRepo(store *Store) *DocumentRepo {
	return &DocumentRepo{store: store}
}

var (
	_ transaction.Repository = (*DocumentRepo)(nil)
	_ payment.DocumentStates = (*DocumentRepo)(nil)
)

func (r *DocumentRepo) Create(ctx context.Context, doc *transaction.Document) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.documents.get(doc.ID); ok {
			return apperror.NewDuplicate("document", "id", doc.ID.String())
		}
		for _, d := range st.documents.rows {
			if d.DocType == doc.DocType && d.FinancialYear == doc.FinancialYear && d.Number == doc.Number {
				return apperror.NewDuplicate("document", "number", doc.Number)
			}
		}
		st.documents.put(doc.ID, *cloneDocument(*doc))
		return nil
	})
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*transaction.Document, error) {
	d, ok := r.store.read(ctx).documents.get(docID)
	if !ok {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	return cloneDocument(d), nil
}

// GetForUpdate needs no row lock: write transactions are serialized.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*transaction.Document, error) {
	return r.GetByID(ctx, docID)
}

func (r *DocumentRepo) Update(ctx context.Context, doc *transaction.Document) error {
	return r.store.write(ctx, func(st *state) error {
		current, ok := st.documents.get(doc.ID)
		if !ok {
			return apperror.NewNotFound("document", doc.ID.String())
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}
		doc.Version++
		doc.UpdatedAt = time.Now().UTC()
		st.documents.put(doc.ID, *cloneDocument(*doc))
		return nil
	})
}

func matchDocument(d *transaction.Document, f transaction.ListFilter) bool {
	if !matchIDs(f.ListFilter, d.ID) {
		return false
	}
	if f.DocType != nil && d.DocType != *f.DocType {
		return false
	}
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.CounterpartyID != nil && d.CounterpartyID != *f.CounterpartyID {
		return false
	}
	if f.DateFrom != nil && d.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && d.Date.After(*f.DateTo) {
		return false
	}
	if f.Search != "" && !containsFold(d.Number, f.Search) && !containsFold(d.Counterparty.Name, f.Search) {
		return false
	}
	return true
}

// sortDocuments orders by (date, number, id), reversed for "-date".
func sortDocuments(docs []*transaction.Document, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if desc {
			a, b = b, a
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return id.Less(a.ID, b.ID)
	})
}

func (r *DocumentRepo) List(ctx context.Context, filter transaction.ListFilter) (domain.ListResult[*transaction.Document], error) {
	st := r.store.read(ctx)
	items := make([]*transaction.Document, 0)
	for _, d := range st.documents.rows {
		if !matchDocument(&d, filter) {
			continue
		}
		header := cloneDocument(d)
		header.Lines = nil
		items = append(items, header)
	}
	sortDocuments(items, filter.OrderBy)
	return domain.Page(items, filter.ListFilter), nil
}

func (r *DocumentRepo) ListPosted(ctx context.Context, docType transaction.DocType, from, to time.Time) ([]*transaction.Document, error) {
	st := r.store.read(ctx)
	items := make([]*transaction.Document, 0)
	for _, d := range st.documents.rows {
		if d.DocType != docType || d.Status != entity.StatusPosted {
			continue
		}
		if d.Date.Before(from) || d.Date.After(to) {
			continue
		}
		items = append(items, cloneDocument(d))
	}
	sortDocuments(items, "date")
	return items, nil
}

func (r *DocumentRepo) DocumentStatus(ctx context.Context, docID id.ID) (entity.DocumentStatus, error) {
	d, ok := r.store.read(ctx).documents.get(docID)
	if !ok {
		return "", apperror.NewNotFound("document", docID.String())
	}
	return d.Status, nil
}
