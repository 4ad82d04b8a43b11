package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newListCmd creates the 'list' subcommand.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available scraper ids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			registry := a.Registry()
			w := table.NewWriter()
			w.SetStyle(table.StyleLight)
			w.AppendHeader(table.Row{"Scraper", "Vendor", "Source"})
			for _, id := range registry.IDs() {
				v, err := registry.Get(id)
				if err != nil {
					return err
				}
				w.AppendRow(table.Row{v.ID, v.Name, v.Source})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), w.Render())
			return err
		},
	}
}
