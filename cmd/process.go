package main

import (
	"encoding/json"
	"os"
	"path"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearship/hscodex/internal/fetcher"
	"github.com/clearship/hscodex/internal/model"
	"github.com/clearship/hscodex/internal/process"
)

var (
	processCarrier  string
	processTemplate string
	processSource   string
	processOut      string
)

var processCmd = &cobra.Command{
	Use:   "process [fileKey]",
	Short: "Resolve HS codes for one uploaded manifest",
	Long:  "Runs the full pipeline for a manifest already in blob storage, or pulls one first with --source. Prints the processing response as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var fileKey string
		switch {
		case processSource != "":
			data, err := fetcher.FetchBytes(ctx, processSource, fetchOptions())
			if err != nil {
				return err
			}
			fileKey = process.UploadKey(path.Base(processSource))
			if err := env.blobs.Put(ctx, fileKey, data); err != nil {
				return err
			}
			zap.L().Info("manifest fetched",
				zap.String("source", processSource),
				zap.String("file_key", fileKey),
			)
		case len(args) == 1:
			fileKey = args[0]
		default:
			return eris.New("either a fileKey argument or --source is required")
		}

		resp, err := env.proc.Process(ctx, model.ProcessRequest{
			FileKey:    fileKey,
			CarrierID:  processCarrier,
			TemplateID: processTemplate,
		})
		if err != nil {
			return err
		}

		if processOut != "" {
			data, err := env.blobs.Get(ctx, resp.ResultFileKey)
			if err != nil {
				return err
			}
			if err := os.WriteFile(processOut, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", processOut)
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	processCmd.Flags().StringVar(&processCarrier, "carrier", "", "carrier id (required)")
	processCmd.Flags().StringVar(&processTemplate, "template", "", "template id (required)")
	processCmd.Flags().StringVar(&processSource, "source", "", "fetch the manifest from this URL (http/ftp/file) before processing")
	processCmd.Flags().StringVar(&processOut, "out", "", "also write the result workbook to this local path")
	processCmd.MarkFlagRequired("carrier")  //nolint:errcheck
	processCmd.MarkFlagRequired("template") //nolint:errcheck
	rootCmd.AddCommand(processCmd)
}
