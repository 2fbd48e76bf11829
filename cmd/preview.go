package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	previewCarrier  string
	previewTemplate string
)

var previewCmd = &cobra.Command{
	Use:   "preview <fileKey>",
	Short: "Extract company and first product without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.proc.Preview(ctx, args[0], previewCarrier, previewTemplate)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewCarrier, "carrier", "", "carrier id (required)")
	previewCmd.Flags().StringVar(&previewTemplate, "template", "", "template id (required)")
	previewCmd.MarkFlagRequired("carrier")  //nolint:errcheck
	previewCmd.MarkFlagRequired("template") //nolint:errcheck
	rootCmd.AddCommand(previewCmd)
}
