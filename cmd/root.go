package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ohss-collector",
	Short: "Collects OHSS immigration enforcement statistics",
	Long:  "Scrapes the DHS Office of Homeland Security Statistics portal for arrest, detention and removal tables, normalizes them into typed records and serves them over a read API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return cfg.Validate(cmd.Name())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
