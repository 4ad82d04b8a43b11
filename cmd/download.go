package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/downloadmgr"
)

type downloadOptions struct {
	vendors   []string
	statsOnly bool
}

// newDownloadCmd creates the 'download' subcommand, which fills in checksums
// for records written without them.
func newDownloadCmd() *cobra.Command {
	opts := &downloadOptions{}
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and hash artifacts whose records are missing checksums",
		Annotations: map[string]string{
			"threads":        "scraper.threads",
			"limit-progress": "scraper.limit_progress",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDownload(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&opts.vendors, "vendors", nil, "comma-separated vendor names (default all)")
	flags.Int("threads", 0, "concurrent downloads (default CPU count)")
	flags.Int("limit-progress", -1, "submit at most this many records per vendor")
	flags.BoolVar(&opts.statsOnly, "stats-only", false, "only report how many records are missing checksums")
	return cmd
}

func runDownload(cmd *cobra.Command, opts *downloadOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := a.Config()
	logger := a.Logger()

	var manager downloadmgr.Manager
	if opts.statsOnly {
		manager = &downloadmgr.NoOp{}
	} else {
		pool, err := downloadmgr.New(ctx, downloadmgr.Config{Concurrency: cfg.Scraper.Threads}, downloadDeps(a))
		if err != nil {
			return err
		}
		manager = pool
	}

	stats, err := downloadmgr.Backfill(ctx, downloadmgr.BackfillConfig{
		MetadataDir:   cfg.Paths.MetadataDir,
		Vendors:       opts.vendors,
		LimitProgress: cfg.Scraper.LimitProgress,
	}, manager, logger)
	if err != nil {
		manager.Close()
		return err
	}
	if err := manager.AwaitCompletion(ctx); err != nil {
		return err
	}
	logger.Info("backfill finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("missing", stats.Missing),
		zap.Int64("completed", manager.CompletedCount()),
		zap.Int64("failed", manager.FailedCount()),
	)

	if !opts.statsOnly && manager.CompletedCount() > 0 {
		if err := regenerateIndexes(ctx, a, stats.Vendors, false); err != nil {
			logger.Error("index generation failed", zap.Error(err))
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), backfillTable(stats, manager.CompletedCount(), manager.FailedCount(), opts.statsOnly))
	if manager.FailedCount() > 0 {
		return exitError{code: 1}
	}
	return nil
}
