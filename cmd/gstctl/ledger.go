package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the stock ledger",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute running balances and report drift",
	Long: `Re-walk every product's stock entries in (date, sequence) order and
compare each stored running balance with the recomputed one. Exits non-zero
when any drift is found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv("ledger")
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		rt, err := e.open(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		drift, err := rt.Stock.VerifyAll(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(drift) == 0 {
			fmt.Fprintln(out, "stock ledger consistent")
			return nil
		}
		for pid, entries := range drift {
			for _, d := range entries {
				fmt.Fprintf(out, "product %s entry %s: stored %s expected %s\n",
					pid, d.EntryID, d.Stored, d.Expected)
			}
		}
		return fmt.Errorf("stock ledger drift in %d product(s)", len(drift))
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	rootCmd.AddCommand(ledgerCmd)
}
