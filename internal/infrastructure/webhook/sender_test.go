package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/core/id"
	"gstledger/internal/domain/outbox"
)

func testMessage() *outbox.Message {
	return &outbox.Message{
		ID:            id.New(),
		AggregateType: "document",
		AggregateID:   id.New(),
		EventType:     "document.posted",
		Payload:       []byte(`{"number":"INV/2024-25/00001"}`),
		RetryCount:    2,
		CreatedAt:     time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestSender_Delivers(t *testing.T) {
	msg := testMessage()

	var got Envelope
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewSender(srv.URL, time.Second).Handle(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, msg.ID.String(), headers.Get(HeaderMessageID))
	assert.Equal(t, "document.posted", headers.Get(HeaderEventType))
	assert.Equal(t, "document.posted", got.EventType)
	assert.Equal(t, 3, got.Attempt)
	assert.JSONEq(t, `{"number":"INV/2024-25/00001"}`, string(got.Payload))
}

func TestSender_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewSender(srv.URL, time.Second).Handle(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSender_WithRelayRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{pending: []*outbox.Message{testMessage()}}
	relay := outbox.NewRelay(store, NewSender(srv.URL, time.Second), outbox.RelayConfig{MaxRetries: 3, Backoff: time.Nanosecond})

	n, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, store.failed)

	n, err = relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.published)
}

type fakeStore struct {
	pending   []*outbox.Message
	failed    int
	published int
}

func (s *fakeStore) Append(context.Context, *outbox.Message) error { return nil }

func (s *fakeStore) FetchPending(context.Context, int, time.Time) ([]*outbox.Message, error) {
	return s.pending, nil
}

func (s *fakeStore) MarkPublished(context.Context, id.ID, time.Time) error {
	s.published++
	s.pending = nil
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, _ id.ID, _ string, _ time.Time, _ bool) error {
	s.failed++
	return nil
}

func (s *fakeStore) MoveToDLQ(context.Context) (int64, error) { return 0, nil }
