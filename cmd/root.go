package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/housing-tools/handbook-qa/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "handbook-qa",
	Short: "Residence handbook question answering service",
	Long:  "Ingests housing handbook PDFs into a vector index and answers resident questions over HTTP with semantic caching and tiered model fallback.",
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
