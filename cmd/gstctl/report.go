package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/reports"
	"gstledger/pkg/numerator"
)

var reportCmd = &cobra.Command{
	Use:   "report <kind>",
	Short: "Generate a report and write it to stdout",
	Long: `Generate one of: gstr1, gstr3b, stock-valuation, pnl, balance-sheet,
outstanding.

The range defaults to the current financial year up to today.`,
	Example: `  gstctl report gstr3b --from 2024-04-01 --to 2024-04-30
  gstctl report stock-valuation --to 2024-06-30 --format csv > stock.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("from", "", "range start (YYYY-MM-DD)")
	reportCmd.Flags().String("to", "", "range end (YYYY-MM-DD, default today)")
	reportCmd.Flags().String("format", "json", "output format: json or csv")
	reportCmd.Flags().String("category", "", "stock valuation: product category")
	reportCmd.Flags().Bool("zero-stock", false, "stock valuation: only products with no stock")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	kind, ok := reports.ParseKind(args[0])
	if !ok {
		return fmt.Errorf("unknown report %q", args[0])
	}
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	format, _ := cmd.Flags().GetString("format")
	category, _ := cmd.Flags().GetString("category")
	zeroStock, _ := cmd.Flags().GetBool("zero-stock")

	if format != "json" && format != "csv" {
		return fmt.Errorf("format must be json or csv, got %q", format)
	}

	to := types.DateOf(time.Now())
	if toStr != "" {
		d, err := types.ParseDate(toStr)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		to = d
	}
	from := time.Date(numerator.FinancialYearStart(to), time.April, 1, 0, 0, 0, 0, time.UTC)
	if fromStr != "" {
		d, err := types.ParseDate(fromStr)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		from = d
	}

	e, err := loadEnv("report")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	rt, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Reports.Generate(ctx, reports.Request{
		Kind: kind,
		From: from,
		To:   to,
		Filters: reports.Filters{
			Category:      category,
			ZeroStockOnly: zeroStock,
		},
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "csv" {
		return reports.WriteCSV(out, res)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
