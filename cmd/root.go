package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearship/hscodex/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hscodex",
	Short: "HS-code resolution for carrier manifests",
	Long:  "Extracts company and product rows from carrier XLSX manifests using per-carrier templates, resolves HS tariff codes against the product catalog, and writes resolved codes back into the original layout.",
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
