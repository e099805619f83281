package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/defi-academy/navigator/config"
	"github.com/defi-academy/navigator/internal/infrastructure/catalog"
)

// cli holds state shared by subcommands. It is filled in PersistentPreRunE.
type cli struct {
	envFile     string
	catalogPath string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "navigatorctl",
		Short:         "Operate the navigator engine",
		Long:          "navigatorctl manages the navigator database schema and runs the scoring engine offline against a catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFiles(c.envFile)
			if err != nil {
				return err
			}
			if c.catalogPath != "" {
				cfg.Engine.CatalogPath = c.catalogPath
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&c.catalogPath, "catalog", "", "catalog YAML file (overrides CATALOG_PATH, empty uses the embedded catalog)")

	root.AddCommand(
		newMigrateCmd(c),
		newCatalogCmd(c),
		newGradeCmd(c),
		newAssessCmd(c),
		newCacheCmd(c),
	)
	return root
}

func (c *cli) loadCatalog() (*catalog.Catalog, error) {
	return catalog.Load(c.cfg.Engine.CatalogPath, catalog.WithRiskBands(c.cfg.Engine.Risk.Bands))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
