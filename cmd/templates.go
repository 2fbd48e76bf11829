package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clearship/hscodex/internal/model"
)

var templatesCarrier string

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage carrier template mappings",
}

// templateSeed is the on-disk shape of a template seed file.
type templateSeed struct {
	Carriers  []model.Carrier         `yaml:"carriers"`
	Templates []model.TemplateMapping `yaml:"templates"`
}

var templatesLoadCmd = &cobra.Command{
	Use:   "load <file.yaml>",
	Short: "Load carriers and template mappings from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		var seed templateSeed
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}
		if err := validateSeed(seed); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, c := range seed.Carriers {
			if err := env.store.PutCarrier(ctx, c); err != nil {
				return eris.Wrapf(err, "put carrier %s", c.ID)
			}
		}
		n, err := env.store.PutTemplates(ctx, seed.Templates)
		if err != nil {
			return err
		}

		zap.L().Info("templates loaded",
			zap.String("file", args[0]),
			zap.Int("carriers", len(seed.Carriers)),
			zap.Int64("templates", n),
		)
		return nil
	},
}

func validateSeed(seed templateSeed) error {
	carrierIDs := make(map[string]bool, len(seed.Carriers))
	for _, c := range seed.Carriers {
		if c.ID == "" {
			return eris.New("carrier with empty id")
		}
		carrierIDs[c.ID] = true
	}
	for _, tm := range seed.Templates {
		if tm.CarrierID == "" || tm.TemplateID == "" {
			return eris.Errorf("template %s/%s: carrier_id and template_id are required", tm.CarrierID, tm.TemplateID)
		}
		if !carrierIDs[tm.CarrierID] {
			return eris.Errorf("template %s/%s references unknown carrier", tm.CarrierID, tm.TemplateID)
		}
		if tm.CompanyNameRow < 1 || tm.StartRow < 1 {
			return eris.Errorf("template %s/%s: rows are 1-based and required", tm.CarrierID, tm.TemplateID)
		}
		if tm.CompanyNameColumn == "" || tm.ProductColumn == "" || tm.HSCodeColumn == "" {
			return eris.Errorf("template %s/%s: all column letters are required", tm.CarrierID, tm.TemplateID)
		}
	}
	return nil
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known carriers, or one carrier's templates with --carrier",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if templatesCarrier == "" {
			carriers, err := env.store.ListCarriers(ctx)
			if err != nil {
				return err
			}
			return enc.Encode(carriers)
		}

		templates, err := env.store.ListTemplates(ctx, templatesCarrier)
		if err != nil {
			return err
		}
		return enc.Encode(templates)
	},
}

func init() {
	templatesListCmd.Flags().StringVar(&templatesCarrier, "carrier", "", "list templates for this carrier id")
	templatesCmd.AddCommand(templatesLoadCmd)
	templatesCmd.AddCommand(templatesListCmd)
	rootCmd.AddCommand(templatesCmd)
}
