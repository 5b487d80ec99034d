package transaction

import "gstledger/internal/core/numerator"

const (
	// NumeratorStrategy defines the numbering strategy for tax documents.
	// Invoice series must be gapless, so numbers come from the strict
	// in-transaction sequence.
	NumeratorStrategy = numerator.StrategyStrict
)
