package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type indexOptions struct {
	vendors         []string
	allowIncomplete bool
}

// newIndexCmd creates the 'index' subcommand, which rebuilds all.json files
// from the records already on disk.
func newIndexCmd() *cobra.Command {
	opts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Regenerate the per-vendor and global all.json indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := regenerateIndexes(cmd.Context(), a, opts.vendors, opts.allowIncomplete); err != nil {
				return fmt.Errorf("generate indexes: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.vendors, "vendors", nil, "comma-separated vendor names (default all)")
	cmd.Flags().BoolVar(&opts.allowIncomplete, "allow-incomplete", false, "keep records that are missing checksums")
	return cmd
}
