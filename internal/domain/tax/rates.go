package tax

import (
	"github.com/shopspring/decimal"
)

// rateSlabs are the GST rates currently notified for goods.
var rateSlabs = []decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("0.25"),
	decimal.NewFromInt(3),
	decimal.NewFromInt(5),
	decimal.NewFromInt(12),
	decimal.NewFromInt(18),
	decimal.NewFromInt(28),
}

// ValidRate reports whether r is one of the notified slabs.
func ValidRate(r decimal.Decimal) bool {
	for _, slab := range rateSlabs {
		if slab.Equal(r) {
			return true
		}
	}
	return false
}

// RateSlabs returns a copy of the slab list in ascending order.
func RateSlabs() []decimal.Decimal {
	out := make([]decimal.Decimal, len(rateSlabs))
	copy(out, rateSlabs)
	return out
}
