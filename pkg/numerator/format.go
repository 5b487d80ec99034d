// Package numerator formats and parses financial-year scoped document numbers.
// It holds the pure half of numbering; sequence storage lives in
// internal/infrastructure/numerator and the memory store.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	corenumerator "gstledger/internal/core/numerator"
)

// FinancialYearStart returns the calendar year in which the Indian
// financial year containing t begins (FY runs April 1st to March 31st).
func FinancialYearStart(t time.Time) int {
	if t.Month() < time.April {
		return t.Year() - 1
	}
	return t.Year()
}

// FinancialYear returns the FY label for t, e.g. "2023-24" for 2024-01-10.
func FinancialYear(t time.Time) string {
	start := FinancialYearStart(t)
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// Period returns the period label a sequence is scoped to.
func Period(cfg corenumerator.Config, t time.Time) string {
	switch cfg.ResetPeriod {
	case corenumerator.ResetYear:
		return t.Format("2006")
	case corenumerator.ResetNever:
		return ""
	default:
		return FinancialYear(t)
	}
}

// Key is the sys_sequences key for cfg in the period containing t.
func Key(cfg corenumerator.Config, t time.Time) string {
	if p := Period(cfg, t); p != "" {
		return cfg.Prefix + "_" + p
	}
	return cfg.Prefix
}

// Format renders the final number string.
func Format(cfg corenumerator.Config, t time.Time, num int64) string {
	pad := cfg.PadWidth
	if pad <= 0 {
		pad = 5
	}
	sep := cfg.Separator
	if sep == "" {
		sep = "/"
	}

	if p := Period(cfg, t); p != "" {
		return fmt.Sprintf("%s%s%s%s%0*d", cfg.Prefix, sep, p, sep, pad, num)
	}
	return fmt.Sprintf("%s%s%0*d", cfg.Prefix, sep, pad, num)
}

// Parse extracts the counter from a formatted number.
// Returns -1 if the trailing segment is not numeric.
func Parse(formatted, sep string) int64 {
	if sep == "" {
		sep = "/"
	}
	idx := strings.LastIndex(formatted, sep)
	if idx < 0 {
		return -1
	}
	n, err := strconv.ParseInt(formatted[idx+len(sep):], 10, 64)
	if err != nil {
		return -1
	}
	return n
}
