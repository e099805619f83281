package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the curriculum and risk catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the catalog, run every consistency check and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.loadCatalog()
			if err != nil {
				return err
			}

			stats := cat.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "source\t%s\n", cat.Source())
			fmt.Fprintf(w, "revision\t%s\n", cat.Revision())
			fmt.Fprintf(w, "quizzes\t%d\n", stats.Quizzes)
			fmt.Fprintf(w, "questions\t%d\n", stats.Questions)
			fmt.Fprintf(w, "achievements\t%d\n", stats.Achievements)
			fmt.Fprintf(w, "protocols\t%d\n", stats.Protocols)
			fmt.Fprintf(w, "tokens\t%d\n", stats.Tokens)
			fmt.Fprintf(w, "transaction tiers\t%d\n", stats.TransactionTiers)
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalog OK")
			return nil
		},
	})
	return cmd
}
