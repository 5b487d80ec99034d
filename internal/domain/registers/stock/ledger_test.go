package stock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/keylock"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/infrastructure/storage/memory"
)

func newLedger(t *testing.T) (*stock.Ledger, *memory.Store) {
	t.Helper()
	store := memory.New()
	return stock.NewLedger(memory.NewStockRepo(store), store, keylock.New()), store
}

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func day(d int) time.Time { return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC) }

func purchase(productID id.ID, on time.Time, n int64, unit string) stock.Movement {
	ref := id.New()
	return stock.Movement{
		ProductID:     productID,
		OccurredOn:    on,
		EntryType:     stock.EntryIn,
		Quantity:      qty(n),
		UnitValue:     types.MustMoney(unit),
		ReferenceType: stock.RefPurchase,
		ReferenceID:   &ref,
	}
}

func sale(productID id.ID, on time.Time, n int64) stock.Movement {
	ref := id.New()
	return stock.Movement{
		ProductID:     productID,
		OccurredOn:    on,
		EntryType:     stock.EntryOut,
		Quantity:      qty(-n),
		UnitValue:     types.MustMoney("10"),
		ReferenceType: stock.RefInvoice,
		ReferenceID:   &ref,
	}
}

func adjust(productID id.ID, on time.Time, n int64) stock.Movement {
	return stock.Movement{
		ProductID:     productID,
		OccurredOn:    on,
		EntryType:     stock.EntryAdjust,
		Quantity:      qty(n),
		ReferenceType: stock.RefManual,
	}
}

func balances(entries []stock.Entry) []types.Quantity {
	out := make([]types.Quantity, len(entries))
	for i, e := range entries {
		out[i] = e.RunningBalance
	}
	return out
}

func TestLedger_BackdatedAdjustment(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	p := id.New()

	_, err := ledger.Append(ctx, purchase(p, day(5), 100, "50"))
	require.NoError(t, err)
	bal, err := ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(100), bal)

	_, err = ledger.Append(ctx, sale(p, day(10), 30))
	require.NoError(t, err)
	bal, err = ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(70), bal)

	_, err = ledger.Append(ctx, adjust(p, day(3), -10))
	require.NoError(t, err)

	history, err := ledger.History(ctx, p)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []types.Quantity{qty(-10), qty(90), qty(60)}, balances(history))
	assert.Equal(t, stock.EntryAdjust, history[0].EntryType)

	bal, err = ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(60), bal)

	drift, err := ledger.Verify(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestLedger_BalanceAsOf(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	p := id.New()

	_, err := ledger.AppendBatch(ctx, []stock.Movement{
		purchase(p, day(5), 100, "50"),
		sale(p, day(10), 30),
		purchase(p, day(20), 10, "55"),
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		date time.Time
		want types.Quantity
	}{
		{"before first entry", day(4), 0},
		{"on purchase day", day(5), qty(100)},
		{"between entries", day(9), qty(100)},
		{"after sale", day(15), qty(70)},
		{"after last entry", day(31), qty(80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ledger.BalanceAsOf(ctx, p, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	pos, err := ledger.PositionAsOf(ctx, p, day(15))
	require.NoError(t, err)
	require.NotNil(t, pos.LastInwardValue)
	assert.True(t, pos.LastInwardValue.Equal(decimal.RequireFromString("50")))

	pos, err = ledger.PositionAsOf(ctx, p, day(31))
	require.NoError(t, err)
	assert.True(t, pos.LastInwardValue.Equal(decimal.RequireFromString("55")))

	pos, err = ledger.PositionAsOf(ctx, p, day(1))
	require.NoError(t, err)
	assert.Nil(t, pos.LastInwardValue)
}

func TestLedger_PositionsAsOf(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	early, late := id.New(), id.New()

	_, err := ledger.AppendBatch(ctx, []stock.Movement{
		purchase(early, day(5), 100, "50"),
		sale(early, day(10), 30),
		purchase(late, day(20), 10, "55"),
	})
	require.NoError(t, err)

	positions, err := ledger.PositionsAsOf(ctx, day(15))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, qty(70), positions[early].Balance)
	require.NotNil(t, positions[early].LastInwardValue)
	assert.True(t, positions[early].LastInwardValue.Equal(decimal.RequireFromString("50")))

	positions, err = ledger.PositionsAsOf(ctx, day(31))
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, qty(10), positions[late].Balance)

	positions, err = ledger.PositionsAsOf(ctx, day(1))
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestLedger_SameDayKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	p := id.New()

	_, err := ledger.Append(ctx, purchase(p, day(5), 10, "5"))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, sale(p, day(5), 4))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, purchase(p, day(5), 1, "5"))
	require.NoError(t, err)

	history, err := ledger.History(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []types.Quantity{qty(10), qty(6), qty(7)}, balances(history))
	assert.Less(t, history[0].Sequence, history[1].Sequence)
	assert.Less(t, history[1].Sequence, history[2].Sequence)
}

func TestLedger_InsufficientStock(t *testing.T) {
	ctx := context.Background()

	t.Run("sale beyond balance", func(t *testing.T) {
		ledger, _ := newLedger(t)
		p := id.New()
		_, err := ledger.AppendBatch(ctx, []stock.Movement{
			purchase(p, day(5), 100, "50"),
			sale(p, day(10), 30),
		})
		require.NoError(t, err)

		_, err = ledger.Append(ctx, sale(p, day(12), 200))
		require.Error(t, err)
		assert.True(t, apperror.IsInsufficientStock(err))

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "-130.0000", appErr.Details["balance"])
		assert.Equal(t, "2024-01-12", appErr.Details["occurred_on"])

		history, err := ledger.History(ctx, p)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("backdated sale breaks a later sale", func(t *testing.T) {
		ledger, _ := newLedger(t)
		p := id.New()
		_, err := ledger.AppendBatch(ctx, []stock.Movement{
			purchase(p, day(5), 100, "50"),
			sale(p, day(10), 80),
		})
		require.NoError(t, err)

		_, err = ledger.Append(ctx, sale(p, day(6), 30))
		assert.True(t, apperror.IsInsufficientStock(err))

		bal, err := ledger.CurrentBalance(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, qty(20), bal)
	})

	t.Run("adjustment may go negative", func(t *testing.T) {
		ledger, _ := newLedger(t)
		p := id.New()
		_, err := ledger.Append(ctx, adjust(p, day(3), -5))
		require.NoError(t, err)

		bal, err := ledger.CurrentBalance(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, qty(-5), bal)
	})
}

func TestLedger_Void(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	p := id.New()

	entries, err := ledger.AppendBatch(ctx, []stock.Movement{
		purchase(p, day(5), 100, "50"),
		sale(p, day(10), 30),
	})
	require.NoError(t, err)

	voided, err := ledger.Void(ctx, entries[1].ID, "invoice cancelled")
	require.NoError(t, err)
	assert.True(t, voided.IsVoided())
	assert.Equal(t, qty(-30), voided.Quantity)
	assert.Equal(t, types.Quantity(0), voided.EffectiveQuantity())

	bal, err := ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(100), bal)

	history, err := ledger.History(ctx, p)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = ledger.Void(ctx, entries[1].ID, "again")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	t.Run("void of inward stock that later sales depend on", func(t *testing.T) {
		ledger, _ := newLedger(t)
		p := id.New()
		entries, err := ledger.AppendBatch(ctx, []stock.Movement{
			purchase(p, day(5), 100, "50"),
			sale(p, day(10), 30),
		})
		require.NoError(t, err)

		_, err = ledger.Void(ctx, entries[0].ID, "purchase cancelled")
		assert.True(t, apperror.IsInsufficientStock(err))

		got, err := ledger.Entry(ctx, entries[0].ID)
		require.NoError(t, err)
		assert.False(t, got.IsVoided())
	})
}

func TestLedger_VoidByReference(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	p1, p2 := id.New(), id.New()

	_, err := ledger.AppendBatch(ctx, []stock.Movement{
		purchase(p1, day(2), 10, "1"),
		purchase(p2, day(2), 10, "1"),
	})
	require.NoError(t, err)

	ref := id.New()
	out1, out2 := sale(p1, day(8), 4), sale(p2, day(8), 6)
	out1.ReferenceID, out2.ReferenceID = &ref, &ref
	_, err = ledger.AppendBatch(ctx, []stock.Movement{out1, out2})
	require.NoError(t, err)

	n, err := ledger.VoidByReference(ctx, stock.RefInvoice, ref, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, p := range []id.ID{p1, p2} {
		bal, err := ledger.CurrentBalance(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, qty(10), bal)
	}

	n, err = ledger.VoidByReference(ctx, stock.RefInvoice, ref, "cancelled")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedger_CacheIgnoresRolledBackWrites(t *testing.T) {
	ctx := context.Background()
	ledger, store := newLedger(t)
	p := id.New()

	_, err := ledger.Append(ctx, purchase(p, day(5), 100, "50"))
	require.NoError(t, err)
	bal, err := ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	require.Equal(t, qty(100), bal)

	boom := errors.New("boom")
	err = store.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := ledger.Append(ctx, sale(p, day(6), 40)); err != nil {
			return err
		}
		inTx, err := ledger.CurrentBalance(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, qty(60), inTx)
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err = ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(100), bal)

	ledger.ResetCache()
	bal, err = ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(100), bal)
}

func TestLedger_CacheSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := memory.NewStockRepo(store)
	a := stock.NewLedger(repo, store, keylock.New())
	b := stock.NewLedger(repo, store, keylock.New())
	p := id.New()

	_, err := a.Append(ctx, purchase(p, day(5), 100, "50"))
	require.NoError(t, err)
	bal, err := a.CurrentBalance(ctx, p)
	require.NoError(t, err)
	require.Equal(t, qty(100), bal)

	sold, err := b.Append(ctx, sale(p, day(6), 30))
	require.NoError(t, err)

	bal, err = a.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(70), bal)
	bal, err = b.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(70), bal)

	_, err = b.Void(ctx, sold.ID, "returned")
	require.NoError(t, err)

	bal, err = a.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, qty(100), bal)
	asOf, err := a.BalanceAsOf(ctx, p, day(6))
	require.NoError(t, err)
	assert.Equal(t, qty(100), asOf)
}

func TestLedger_ConcurrentSales(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger(t)
	p := id.New()

	_, err := ledger.Append(ctx, purchase(p, day(1), 50, "10"))
	require.NoError(t, err)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Append(ctx, sale(p, day(2), 10))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperror.IsInsufficientStock(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, rejected)

	bal, err := ledger.CurrentBalance(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), bal)

	all, err := ledger.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMovement_Validate(t *testing.T) {
	p := id.New()
	tests := []struct {
		name string
		m    stock.Movement
	}{
		{"IN with negative quantity", stock.Movement{ProductID: p, OccurredOn: day(1), EntryType: stock.EntryIn, Quantity: qty(-1), ReferenceType: stock.RefManual}},
		{"OUT with positive quantity", stock.Movement{ProductID: p, OccurredOn: day(1), EntryType: stock.EntryOut, Quantity: qty(1), ReferenceType: stock.RefManual}},
		{"zero adjustment", stock.Movement{ProductID: p, OccurredOn: day(1), EntryType: stock.EntryAdjust, ReferenceType: stock.RefManual}},
		{"document entry without reference", stock.Movement{ProductID: p, OccurredOn: day(1), EntryType: stock.EntryIn, Quantity: qty(1), ReferenceType: stock.RefPurchase}},
		{"missing date", stock.Movement{ProductID: p, EntryType: stock.EntryIn, Quantity: qty(1), ReferenceType: stock.RefManual}},
		{"unknown type", stock.Movement{ProductID: p, OccurredOn: day(1), EntryType: "MOVE", Quantity: qty(1), ReferenceType: stock.RefManual}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}
