package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/api"
	"github.com/JakeFAU/jdkdb-crawler/internal/app"
	"github.com/JakeFAU/jdkdb-crawler/internal/downloadmgr"
	"github.com/JakeFAU/jdkdb-crawler/internal/index"
	"github.com/JakeFAU/jdkdb-crawler/internal/orchestrator"
	"github.com/JakeFAU/jdkdb-crawler/internal/scraper"
)

const drainTimeout = 5 * time.Second

type updateOptions struct {
	scrapers []string
	noIndex  bool
}

// newUpdateCmd creates the 'update' subcommand, which runs the scrapers.
func newUpdateCmd() *cobra.Command {
	opts := &updateOptions{}
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Run the vendor scrapers and refresh the indexes",
		Long: `Runs every selected scraper on a bounded pool, writes one metadata record
per new artifact, then regenerates the indexes of the vendors that ran and
prints a summary. Exits non-zero when any scraper failed.`,
		Annotations: map[string]string{
			"threads":        "scraper.threads",
			"from-start":     "scraper.from_start",
			"max-failures":   "scraper.max_failure_count",
			"limit-progress": "scraper.limit_progress",
			"skip-ea-days":   "scraper.skip_ea_days",
			"status-addr":    "status.addr",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&opts.scrapers, "scrapers", nil, "comma-separated scraper ids (default all)")
	flags.Int("threads", 0, "concurrent scrapers and downloads (default CPU count)")
	flags.Bool("from-start", false, "reprocess artifacts that already have a record")
	flags.Int("max-failures", 10, "fail a scraper after this many asset failures")
	flags.Int("limit-progress", -1, "stop a scraper after this many new records")
	flags.Int("skip-ea-days", 0, "skip early-access releases older than this many days")
	flags.String("status-addr", "", "serve status and metrics on this address")
	flags.BoolVar(&opts.noIndex, "no-index", false, "skip index generation")
	return cmd
}

func runUpdate(cmd *cobra.Command, opts *updateOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg := a.Config()
	logger := a.Logger()

	reporter, err := a.NewReporter(ctx)
	if err != nil {
		return fmt.Errorf("start progress reporter: %w", err)
	}
	defer func() {
		if cerr := reporter.Close(context.Background()); cerr != nil {
			logger.Warn("failed to close progress reporter", zap.Error(cerr))
		}
	}()
	reporter.StartHeartbeat(ctx, cfg.HeartbeatInterval())

	if cfg.Status.Addr != "" {
		server := api.NewServer(reporter, a.Metrics(), api.Config{
			APIKey:  cfg.Status.APIKey,
			Metrics: a.HTTPMetrics(),
		}, logger.Named("api"))
		go func() {
			if serr := server.Serve(ctx, cfg.Status.Addr); serr != nil {
				logger.Error("status server stopped", zap.Error(serr))
			}
		}()
	}

	pool, err := downloadmgr.New(ctx, downloadmgr.Config{Concurrency: cfg.Scraper.Threads}, downloadDeps(a))
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		MetadataDir: cfg.Paths.MetadataDir,
		ChecksumDir: cfg.Paths.ChecksumDir,
		Threads:     cfg.Scraper.Threads,
		RunID:       a.RunID(),
		Scraper: scraper.Config{
			FromStart:       cfg.Scraper.FromStart,
			MaxFailureCount: cfg.Scraper.MaxFailureCount,
			LimitProgress:   cfg.Scraper.LimitProgress,
			SkipEAOlderThan: cfg.SkipEAOlderThan(),
		},
	}, orchestrator.Deps{
		Registry:     a.Registry(),
		Releases:     a.Releases(),
		Index:        a.Index(),
		Downloaders:  a.DownloaderAt,
		Stores:       a.StoreAt,
		Introspector: a.Introspector(),
		Sinks:        a.Sinks(),
		Submitter:    pool,
		Reporter:     reporter,
		Clock:        a.Clock(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx, opts.scrapers)
	if err != nil {
		pool.Close()
		return err
	}
	if err := pool.AwaitCompletion(ctx); err != nil {
		return err
	}
	if pool.CompletedCount()+pool.FailedCount() > 0 {
		logger.Info("deferred downloads finished",
			zap.Int64("completed", pool.CompletedCount()),
			zap.Int64("failed", pool.FailedCount()),
		)
	}

	if !opts.noIndex {
		if err := regenerateIndexes(ctx, a, summary.Vendors(), false); err != nil {
			logger.Error("index generation failed", zap.Error(err))
		}
	}

	reporter.AwaitDrain(drainTimeout)
	printSummary(cmd.OutOrStdout(), summary)
	if code := summary.ExitCode(); code != 0 {
		return exitError{code: code}
	}
	return nil
}

func downloadDeps(a *app.App) downloadmgr.Deps {
	return downloadmgr.Deps{
		Downloaders:  a.VendorDownloader,
		Stores:       a.VendorStore,
		Introspector: a.Introspector(),
		Sinks:        a.Sinks(),
		Logger:       a.Logger().Named("downloads"),
		Metrics:      a.DownloadMetrics(),
	}
}

func regenerateIndexes(ctx context.Context, a *app.App, vendors []string, allowIncomplete bool) error {
	gen, err := index.New(index.Config{
		MetadataDir:     a.Config().Paths.MetadataDir,
		AllowIncomplete: allowIncomplete,
	}, a.Logger().Named("index"))
	if err != nil {
		return err
	}
	res, err := gen.Generate(ctx, vendors)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return errors.New("one or more vendor indexes could not be written")
	}
	return nil
}

func printSummary(w io.Writer, s orchestrator.Summary) {
	fmt.Fprintln(w, summaryTable(s))
}
