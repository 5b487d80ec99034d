package expense_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/core/apperror"
	appctx "gstledger/internal/core/context"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/audit"
	"gstledger/internal/domain/expense"
	"gstledger/internal/infrastructure/storage/memory"
)

func newService(t *testing.T) (*expense.Service, *audit.Recorder) {
	t.Helper()
	store := memory.New()
	rec, err := audit.NewRecorder(memory.NewAuditStore(store), audit.DefaultCompressThreshold)
	require.NoError(t, err)
	return expense.NewService(memory.NewExpenseRepo(store), store, rec), rec
}

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestRecord(t *testing.T) {
	svc, rec := newService(t)
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "accounts", Source: "cli"})

	e, err := svc.Record(ctx, expense.RecordRequest{
		Date:        time.Date(2024, 1, 5, 15, 30, 0, 0, time.UTC),
		AccountHead: "  Rent ",
		Amount:      types.MustMoney("5000"),
		PaidFrom:    expense.PaidFromBank,
	})
	require.NoError(t, err)
	assert.Equal(t, day(5), e.Date)
	assert.Equal(t, "Rent", e.AccountHead)
	assert.Equal(t, "accounts", e.CreatedBy)

	history, err := rec.History(ctx, "expense", e.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, audit.ActionCreate, history[0].Action)

	cash, err := svc.Record(ctx, expense.RecordRequest{Date: day(6), AccountHead: "Tea", Amount: types.MustMoney("40")})
	require.NoError(t, err)
	assert.Equal(t, expense.PaidFromCash, cash.PaidFrom)
}

func TestRecord_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  expense.RecordRequest
	}{
		{"missing date", expense.RecordRequest{AccountHead: "Rent", Amount: types.MustMoney("1")}},
		{"missing head", expense.RecordRequest{Date: day(1), Amount: types.MustMoney("1")}},
		{"zero amount", expense.RecordRequest{Date: day(1), AccountHead: "Rent"}},
		{"negative amount", expense.RecordRequest{Date: day(1), AccountHead: "Rent", Amount: types.MustMoney("-5")}},
		{"sub-paise amount", expense.RecordRequest{Date: day(1), AccountHead: "Rent", Amount: types.MustMoney("1.005")}},
		{"unknown source", expense.RecordRequest{Date: day(1), AccountHead: "Rent", Amount: types.MustMoney("1"), PaidFrom: "Wallet"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, apperror.CodeValidation), err.Error())
		})
	}
}

func TestListRange(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, d := range []int{20, 3, 11} {
		_, err := svc.Record(ctx, expense.RecordRequest{Date: day(d), AccountHead: "Rent", Amount: types.MustMoney("100")})
		require.NoError(t, err)
	}
	_, err := svc.Record(ctx, expense.RecordRequest{Date: day(12), AccountHead: "Power", Amount: types.MustMoney("100")})
	require.NoError(t, err)

	got, err := svc.ListRange(ctx, day(3), day(12))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day(3), got[0].Date)
	assert.Equal(t, day(12), got[2].Date)

	res, err := svc.List(ctx, expense.ListFilter{AccountHead: "rent"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)
}
