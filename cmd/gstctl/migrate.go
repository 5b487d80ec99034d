package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gstledger/internal/app"
	"gstledger/internal/infrastructure/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv("migrate")
		if err != nil {
			return err
		}
		return app.Migrate(e.cfg.Database.URL, e.log)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default one step)",
	Example: `  gstctl migrate down
  gstctl migrate down 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}

		e, err := loadEnv("migrate")
		if err != nil {
			return err
		}
		m, err := postgres.NewMigrator(e.cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()

		if err := m.Down(steps); err != nil {
			return fmt.Errorf("roll back %d step(s): %w", steps, err)
		}
		e.log.Infow("migrations rolled back", "steps", steps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv("migrate")
		if err != nil {
			return err
		}
		m, err := postgres.NewMigrator(e.cfg.Database.URL)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()

		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
