package audit

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "gstledger/internal/core/context"
	"gstledger/internal/core/id"
)

type sliceStore struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *sliceStore) Insert(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *sliceStore) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRecorder_SmallPayloadStaysPlain(t *testing.T) {
	store := &sliceStore{}
	rec, err := NewRecorder(store, 64)
	require.NoError(t, err)

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "asha", Source: "cli"})
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext("req-42", ""))
	docID := id.New()
	require.NoError(t, rec.Record(ctx, "document", docID, ActionPost, map[string]any{"number": "INV/2024-25/00001"}))

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, CompressionNone, e.CompressionAlgo)
	assert.Equal(t, "asha", e.UserID)
	assert.Equal(t, "cli", e.Source)
	assert.Equal(t, "req-42", e.RequestID)
	assert.JSONEq(t, `{"number":"INV/2024-25/00001"}`, string(e.Changes))
}

func TestRecorder_LargePayloadRoundTrip(t *testing.T) {
	store := &sliceStore{}
	rec, err := NewRecorder(store, 64)
	require.NoError(t, err)

	docID := id.New()
	notes := strings.Repeat("line item narrative ", 50)
	require.NoError(t, rec.Record(context.Background(), "document", docID, ActionUpdate, map[string]any{"notes": notes}))

	stored := store.entries[0]
	assert.Equal(t, CompressionZstd, stored.CompressionAlgo)
	assert.Nil(t, stored.Changes)
	assert.NotEmpty(t, stored.ChangesCompressed)

	history, err := rec.History(context.Background(), "document", docID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Contains(t, string(history[0].Changes), "line item narrative")
}

func TestDiff(t *testing.T) {
	changes := Diff(
		map[string]any{"name": "Acme", "phone": "1", "gone": true},
		map[string]any{"name": "Acme", "phone": "2", "email": "a@b.in"},
	)
	assert.NotContains(t, changes, "name")
	assert.Equal(t, map[string]any{"old": "1", "new": "2"}, changes["phone"])
	assert.Equal(t, map[string]any{"old": nil, "new": "a@b.in"}, changes["email"])
	assert.Equal(t, map[string]any{"old": true, "new": nil}, changes["gone"])
}

type stamped struct{ created, updated string }

func (s *stamped) SetCreatedBy(v string) { s.created = v }
func (s *stamped) SetUpdatedBy(v string) { s.updated = v }

func TestEnrichCreatedBy(t *testing.T) {
	s := &stamped{}
	require.NoError(t, EnrichCreatedBy(context.Background(), s))
	assert.Empty(t, s.created)

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "ravi"})
	require.NoError(t, EnrichCreatedBy(ctx, s))
	assert.Equal(t, "ravi", s.created)
	assert.Equal(t, "ravi", s.updated)

	require.NoError(t, EnrichUpdatedBy(appctx.WithActor(context.Background(), &appctx.Actor{UserID: "meera"}), s))
	assert.Equal(t, "ravi", s.created)
	assert.Equal(t, "meera", s.updated)
}
