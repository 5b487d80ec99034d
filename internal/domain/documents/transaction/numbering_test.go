package transaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/app"
	"gstledger/internal/app/apptest"
	"gstledger/internal/core/numerator"
	"gstledger/internal/domain/documents/transaction"
)

func TestEngine_NumberingFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	failing := true
	gen := &numerator.MockGenerator{}
	gen.GetNextNumberFunc = func(ctx context.Context, cfg numerator.Config, opts *numerator.Options, date time.Time) (string, error) {
		if failing {
			return "", errors.New("sequence unavailable")
		}
		return "INV-TEST-" + cfg.Prefix, nil
	}
	f := apptest.NewWith(t, func(b *app.Backend) { b.Sequences = gen })
	p := widget(t, f)

	_, err := f.Documents.Create(ctx, transaction.DocInvoice, transaction.Header{
		Date:           apptest.Date("2024-05-02"),
		CounterpartyID: f.LocalB2B.ID,
	}, []transaction.LineInput{apptest.Line(p.ID, 1, "100")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence unavailable")

	list, err := f.Documents.List(ctx, transaction.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
	assert.Empty(t, eventTypes(ctx, f))

	failing = false
	doc := f.Draft(t, transaction.DocInvoice, "2024-05-02", f.LocalB2B.ID, apptest.Line(p.ID, 1, "100"))
	assert.Equal(t, "INV-TEST-"+transaction.DocInvoice.NumberPrefix(), doc.Number)
}
