package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamay-group/appraisal-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "appraisal-engine",
	Short: "Field extraction, provenance and valuation engine for appraisal reports",
	Long:  "Parses Hebrew land-registry extracts, building permits and shared-building orders into typed, cited fields; manages extraction history; values properties from comparable sales.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
