package dto

import (
	"time"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/reports"
	"gstledger/pkg/numerator"
)

// Report output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ReportQuery holds GET /reports/:type parameters.
type ReportQuery struct {
	From          string `form:"from" binding:"omitempty,date"`
	To            string `form:"to" binding:"omitempty,date"`
	Category      string `form:"category"`
	ZeroStockOnly bool   `form:"zeroStockOnly"`
	Format        string `form:"format" binding:"omitempty,oneof=json csv"`
}

// ToRequest builds a report request. A missing To defaults to today and a
// missing From to the start of To's financial year.
func (q ReportQuery) ToRequest(kind reports.Kind, today time.Time) (reports.Request, error) {
	to := types.DateOf(today)
	if q.To != "" {
		d, err := ParseDate("to", q.To)
		if err != nil {
			return reports.Request{}, err
		}
		to = d
	}

	from := time.Date(numerator.FinancialYearStart(to), time.April, 1, 0, 0, 0, 0, time.UTC)
	if q.From != "" {
		d, err := ParseDate("from", q.From)
		if err != nil {
			return reports.Request{}, err
		}
		from = d
	}

	return reports.Request{
		Kind: kind,
		From: from,
		To:   to,
		Filters: reports.Filters{
			Category:      q.Category,
			ZeroStockOnly: q.ZeroStockOnly,
		},
	}, nil
}

// OutputFormat returns the requested format, json by default.
func (q ReportQuery) OutputFormat() string {
	if q.Format == "" {
		return FormatJSON
	}
	return q.Format
}
