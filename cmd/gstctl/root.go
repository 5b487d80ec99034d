package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gstledger/internal/app"
	"gstledger/internal/config"
	"gstledger/pkg/logger"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gstctl",
	Short: "gstctl - administration CLI for gstledger",
	Long: `gstctl runs maintenance tasks against a gstledger database.

Configuration is read the same way as the server: config.yaml, a .env file
and GST_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// env is the loaded configuration with a CLI logger.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func loadEnv(component string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lc := cfg.App.Logger()
	lc.Development = true
	// stdout carries report output.
	lc.OutputPaths = []string{"stderr"}
	log, err := logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &env{cfg: cfg, log: log.WithComponent(component)}, nil
}

// open wires the runtime. The caller must Close it.
func (e *env) open(ctx context.Context) (*app.Runtime, error) {
	return app.Open(logger.WithLogger(ctx, e.log), e.cfg, e.log)
}
