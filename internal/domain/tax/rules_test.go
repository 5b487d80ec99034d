package tax

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/core/types"
)

func TestDetermineTax_IntraState(t *testing.T) {
	split := DetermineTax(types.MustMoney("1000"), decimal.NewFromInt(18), "27", "27", StatusGST)

	assert.Equal(t, SupplyIntraState, split.Kind)
	assert.Equal(t, "90.00", types.FormatMoney(split.CGST))
	assert.Equal(t, "90.00", types.FormatMoney(split.SGST))
	assert.True(t, split.IGST.IsZero())
	assert.Equal(t, "1180.00", types.FormatMoney(types.MustMoney("1000").Add(split.Total())))
}

func TestDetermineTax_InterState(t *testing.T) {
	split := DetermineTax(types.MustMoney("1000"), decimal.NewFromInt(18), "27", "29", StatusGST)

	assert.Equal(t, SupplyInterState, split.Kind)
	assert.True(t, split.CGST.IsZero())
	assert.True(t, split.SGST.IsZero())
	assert.Equal(t, "180.00", types.FormatMoney(split.IGST))
}

func TestDetermineTax_NoTax(t *testing.T) {
	tests := []struct {
		name   string
		rate   decimal.Decimal
		status Status
	}{
		{"exempted counterparty", decimal.NewFromInt(18), StatusExempted},
		{"zero rate", decimal.Zero, StatusGST},
		{"zero rate unregistered", decimal.Zero, StatusNonGST},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := DetermineTax(types.MustMoney("500"), tt.rate, "27", "29", tt.status)
			assert.Equal(t, SupplyNoTax, split.Kind)
			assert.True(t, split.Total().IsZero())
		})
	}
}

func TestDetermineTax_UnregisteredBuyerIsTaxed(t *testing.T) {
	split := DetermineTax(types.MustMoney("200"), decimal.NewFromInt(5), "27", "27", StatusNonGST)
	assert.Equal(t, "10.00", types.FormatMoney(split.Total()))
}

func TestDetermineTax_OddPaiseSplitsUnevenly(t *testing.T) {
	tests := []struct {
		value, rate, cgst, sgst string
	}{
		// 100.10 * 5% = 5.005 -> 5.01 combined
		{"100.10", "5", "2.51", "2.50"},
		// 192.50 * 18% = 34.65 combined
		{"192.50", "18", "17.33", "17.32"},
	}
	for _, tt := range tests {
		split := DetermineTax(types.MustMoney(tt.value), decimal.RequireFromString(tt.rate), "29", "29", StatusGST)
		assert.Equal(t, tt.cgst, types.FormatMoney(split.CGST), tt.value)
		assert.Equal(t, tt.sgst, types.FormatMoney(split.SGST), tt.value)
		assert.Equal(t, types.FormatMoney(split.CGST.Add(split.SGST)), types.FormatMoney(split.Total()))
	}
}

func TestDetermineTax_SumMatchesCombinedRounding(t *testing.T) {
	values := []string{"0.01", "0.03", "1", "99.99", "100.10", "333.33", "1234.57", "99999.99"}
	for _, v := range values {
		for _, rate := range RateSlabs() {
			for _, pos := range []string{"27", "29"} {
				t.Run(fmt.Sprintf("%s@%s/%s", v, rate, pos), func(t *testing.T) {
					value := types.MustMoney(v)
					split := DetermineTax(value, rate, "27", pos, StatusGST)
					want := types.RoundMoney(value.Mul(rate).Div(decimal.NewFromInt(100)))
					assert.True(t, want.Equal(split.Total()), "want %s got %s", want, split.Total())
					if pos == "27" {
						assert.True(t, split.IGST.IsZero())
						diff := split.CGST.Sub(split.SGST).Abs()
						assert.True(t, diff.LessThanOrEqual(types.MustMoney("0.01")))
					} else {
						assert.True(t, split.CGST.IsZero())
						assert.True(t, split.SGST.IsZero())
					}
				})
			}
		}
	}
}

func TestDetermineForSeller(t *testing.T) {
	value := types.MustMoney("1000")
	rate := decimal.NewFromInt(12)

	split := DetermineForSeller(Seller{StateCode: "27", Status: StatusGST}, value, rate, "27", StatusGST)
	assert.Equal(t, "120.00", types.FormatMoney(split.Total()))

	for _, s := range []Status{StatusNonGST, StatusExempted} {
		split := DetermineForSeller(Seller{StateCode: "27", Status: s}, value, rate, "27", StatusGST)
		assert.True(t, split.Total().IsZero(), "seller %s", s)
	}
}

func TestStatus(t *testing.T) {
	s, err := ParseStatus("non-gst")
	require.NoError(t, err)
	assert.Equal(t, StatusNonGST, s)

	_, err = ParseStatus("composition")
	assert.Error(t, err)

	assert.True(t, StatusGST.RequiresGSTIN())
	assert.False(t, StatusNonGST.RequiresGSTIN())
	assert.False(t, StatusExempted.RequiresGSTIN())
	assert.True(t, StatusGST.IsB2B())
	assert.False(t, Status("bogus").Valid())
	assert.Panics(t, func() { Status("bogus").ChargesTax() })
}

func TestValidRate(t *testing.T) {
	assert.True(t, ValidRate(decimal.NewFromInt(18)))
	assert.True(t, ValidRate(decimal.RequireFromString("0.25")))
	assert.True(t, ValidRate(decimal.RequireFromString("28.00")))
	assert.False(t, ValidRate(decimal.NewFromInt(10)))
}
