package memory

import (
	"context"
	"sort"

	"gstledger/internal/core/id"
	"gstledger/internal/domain/audit"
)

// AuditStore implements audit.Store.
type AuditStore struct {
	store *Store
}

// NewAuditStore creates the audit store.
func NewAuditStore(store *Store) *AuditStore {
	return &AuditStore{store: store}
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Insert(ctx context.Context, entry *audit.Entry) error {
	return s.store.write(ctx, func(st *state) error {
		e := *entry
		e.Changes = append([]byte(nil), entry.Changes...)
		e.ChangesCompressed = append([]byte(nil), entry.ChangesCompressed...)
		st.audit.put(e.ID, e)
		return nil
	})
}

func (s *AuditStore) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	st := s.store.read(ctx)
	out := make([]audit.Entry, 0)
	for _, e := range st.audit.rows {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return id.Less(out[j].ID, out[i].ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
