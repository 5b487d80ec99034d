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
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
)

// matchIDs reports whether rowID passes the filter's id list.
func matchIDs(f domain.ListFilter, rowID id.ID) bool {
	if len(f.IDs) == 0 {
		return true
	}
	for _, v := range f.IDs {
		if v == rowID {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// sortCatalog orders by name (or created_at), then id.
func sortCatalog[T any](items []T, orderBy string, name func(T) string, created func(T) time.Time, rowID func(T) id.ID) {
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if desc {
			a, b = b, a
		}
		switch field {
		case "created_at":
			if !created(a).Equal(created(b)) {
				return created(a).Before(created(b))
			}
		default:
			if name(a) != name(b) {
				return name(a) < name(b)
			}
		}
		return id.Less(rowID(a), rowID(b))
	})
}

// PartyRepo implements party.Repository.
type PartyRepo struct {
	store *Store
}

// NewPartyRepo creates the party repository.
func NewPartyRepo(store *Store) *PartyRepo {
	return &PartyRepo{store: store}
}

var _ party.Repository = (*PartyRepo)(nil)

func (r *PartyRepo) Create(ctx context.Context, p *party.Party) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.parties.get(p.ID); ok {
			return apperror.NewDuplicate("party", "id", p.ID.String())
		}
		st.parties.put(p.ID, *p)
		return nil
	})
}

func (r *PartyRepo) GetByID(ctx context.Context, partyID id.ID) (*party.Party, error) {
	p, ok := r.store.read(ctx).parties.get(partyID)
	if !ok {
		return nil, apperror.NewNotFound("party", partyID.String())
	}
	return &p, nil
}

func (r *PartyRepo) Update(ctx context.Context, p *party.Party) error {
	return r.store.write(ctx, func(st *state) error {
		current, ok := st.parties.get(p.ID)
		if !ok {
			return apperror.NewNotFound("party", p.ID.String())
		}
		if current.Version != p.Version {
			return apperror.NewConcurrentModification("party", p.ID.String())
		}
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		st.parties.put(p.ID, *p)
		return nil
	})
}

func (r *PartyRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*party.Party], error) {
	st := r.store.read(ctx)
	items := make([]*party.Party, 0, len(st.parties.rows))
	for _, p := range st.parties.rows {
		if !matchIDs(filter, p.ID) {
			continue
		}
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.GSTIN, filter.Search) {
			continue
		}
		p := p
		items = append(items, &p)
	}
	sortCatalog(items, filter.OrderBy,
		func(p *party.Party) string { return p.Name },
		func(p *party.Party) time.Time { return p.CreatedAt },
		func(p *party.Party) id.ID { return p.ID })
	return domain.Page(items, filter), nil
}

func (r *PartyRepo) Exists(ctx context.Context, partyID id.ID) (bool, error) {
	_, ok := r.store.read(ctx).parties.get(partyID)
	return ok, nil
}

func (r *PartyRepo) FindByGSTIN(ctx context.Context, gstin string) (*party.Party, error) {
	for _, p := range r.store.read(ctx).parties.rows {
		if p.GSTIN != "" && p.GSTIN == gstin {
			p := p
			return &p, nil
		}
	}
	return nil, apperror.NewNotFound("party", gstin)
}

func (r *PartyRepo) IsReferenced(ctx context.Context, partyID id.ID) (bool, error) {
	for _, d := range r.store.read(ctx).documents.rows {
		if d.CounterpartyID == partyID && d.Status != entity.StatusDraft {
			return true, nil
		}
	}
	return false, nil
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	store *Store
}

// NewProductRepo creates the product repository.
func NewProductRepo(store *Store) *ProductRepo {
	return &ProductRepo{store: store}
}

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.products.get(p.ID); ok {
			return apperror.NewDuplicate("product", "id", p.ID.String())
		}
		st.products.put(p.ID, *p)
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := r.store.read(ctx).products.get(productID)
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return &p, nil
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.store.write(ctx, func(st *state) error {
		current, ok := st.products.get(p.ID)
		if !ok {
			return apperror.NewNotFound("product", p.ID.String())
		}
		if current.Version != p.Version {
			return apperror.NewConcurrentModification("product", p.ID.String())
		}
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		st.products.put(p.ID, *p)
		return nil
	})
}

func (r *ProductRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	st := r.store.read(ctx)
	items := make([]*product.Product, 0, len(st.products.rows))
	for _, p := range st.products.rows {
		if !matchIDs(filter, p.ID) {
			continue
		}
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.SKU, filter.Search) {
			continue
		}
		p := p
		items = append(items, &p)
	}
	sortCatalog(items, filter.OrderBy,
		func(p *product.Product) string { return p.Name },
		func(p *product.Product) time.Time { return p.CreatedAt },
		func(p *product.Product) id.ID { return p.ID })
	return domain.Page(items, filter), nil
}

func (r *ProductRepo) Exists(ctx context.Context, productID id.ID) (bool, error) {
	_, ok := r.store.read(ctx).products.get(productID)
	return ok, nil
}

func (r *ProductRepo) FindBySKU(ctx context.Context, sku string) (*product.Product, error) {
	for _, p := range r.store.read(ctx).products.rows {
		if p.SKU == sku {
			p := p
			return &p, nil
		}
	}
	return nil, apperror.NewNotFound("product", sku)
}

func (r *ProductRepo) All(ctx context.Context) ([]*product.Product, error) {
	st := r.store.read(ctx)
	items := make([]*product.Product, 0, len(st.products.rows))
	for _, p := range st.products.rows {
		p := p
		items = append(items, &p)
	}
	sortCatalog(items, "name",
		func(p *product.Product) string { return p.Name },
		func(p *product.Product) time.Time { return p.CreatedAt },
		func(p *product.Product) id.ID { return p.ID })
	return items, nil
}
