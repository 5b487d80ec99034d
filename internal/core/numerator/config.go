// Package numerator provides domain contracts for document auto-numbering.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict increments the sequence row inside the caller's transaction.
	// Numbers are gapless: a rolled back document gives its number back.
	// Required for tax invoices.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Faster, but may produce gaps if the process restarts.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// ResetPeriod controls when a sequence restarts at 1.
type ResetPeriod string

const (
	// ResetFinancialYear restarts every April 1st (Indian FY).
	ResetFinancialYear ResetPeriod = "financial_year"
	// ResetYear restarts every January 1st.
	ResetYear ResetPeriod = "year"
	// ResetNever keeps one sequence forever.
	ResetNever ResetPeriod = "never"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "INV", "PUR")
	Prefix string

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	ResetPeriod ResetPeriod

	// Separator between prefix, period and counter (default "/")
	Separator string
}

// DefaultConfig returns the statutory invoice series layout: INV/2024-25/00001.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		PadWidth:    5,
		ResetPeriod: ResetFinancialYear,
		Separator:   "/",
	}
}
