package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "gstledger/internal/core/numerator"
)

// mockQuerier emulates the sys_sequences upserts.
type mockQuerier struct {
	mu      sync.Mutex
	values  map[string]int64
	queries int
	fail    error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

type mockRow struct {
	val int64
	err error
}

func (r mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.val
	return nil
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.fail != nil {
		return mockRow{err: m.fail}
	}

	key := args[0].(string)
	switch {
	case len(args) == 1:
		m.values[key]++
	case strings.Contains(sql, "current_val + $2"):
		m.values[key] += args[1].(int64)
	default:
		m.values[key] = args[1].(int64)
	}
	return mockRow{val: m.values[key]}
}

func newService(q *mockQuerier) *Service {
	return New(func(context.Context) Querier { return q }, q)
}

func TestGetNextNumber_StrictPerFinancialYear(t *testing.T) {
	q := newMockQuerier()
	s := newService(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("INV")

	march := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	n1, err := s.GetNextNumber(ctx, cfg, nil, march)
	require.NoError(t, err)
	n2, err := s.GetNextNumber(ctx, cfg, nil, march)
	require.NoError(t, err)
	n3, err := s.GetNextNumber(ctx, cfg, nil, april)
	require.NoError(t, err)

	assert.Equal(t, "INV/2023-24/00001", n1)
	assert.Equal(t, "INV/2023-24/00002", n2)
	assert.Equal(t, "INV/2024-25/00001", n3)
	assert.Equal(t, int64(2), q.values["INV_2023-24"])
}

func TestGetNextNumber_CachedReservesRanges(t *testing.T) {
	q := newMockQuerier()
	s := newService(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("PUR")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 3}
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var got []string
	for i := 0; i < 4; i++ {
		n, err := s.GetNextNumber(ctx, cfg, opts, date)
		require.NoError(t, err)
		got = append(got, n)
	}

	assert.Equal(t, []string{
		"PUR/2024-25/00001", "PUR/2024-25/00002", "PUR/2024-25/00003", "PUR/2024-25/00004",
	}, got)
	assert.Equal(t, 2, q.queries, "one reservation per range")
	assert.Equal(t, int64(6), q.values["PUR_2024-25"])
}

func TestSetNextNumber_ResetsCache(t *testing.T) {
	q := newMockQuerier()
	s := newService(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("INV")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.GetNextNumber(ctx, cfg, opts, date)
	require.NoError(t, err)

	require.NoError(t, s.SetNextNumber(ctx, cfg, date, 500))
	n, err := s.GetNextNumber(ctx, cfg, opts, date)
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/00501", n)

	assert.Error(t, s.SetNextNumber(ctx, cfg, date, -1))
}

func TestGetNextNumber_Errors(t *testing.T) {
	q := newMockQuerier()
	s := newService(q)
	ctx := context.Background()

	_, err := s.GetNextNumber(ctx, corenumerator.Config{}, nil, time.Now())
	assert.Error(t, err)

	q.fail = errors.New("connection refused")
	_, err = s.GetNextNumber(ctx, corenumerator.DefaultConfig("INV"), nil, time.Now())
	assert.ErrorContains(t, err, "strict next")

	var nilService *Service
	_, err = nilService.GetNextNumber(ctx, corenumerator.DefaultConfig("INV"), nil, time.Now())
	assert.Error(t, err)
}
