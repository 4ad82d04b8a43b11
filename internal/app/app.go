// Package app builds the long-lived services shared by the jdkdb commands
// from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/archive"
	"github.com/JakeFAU/jdkdb-crawler/internal/clock/system"
	"github.com/JakeFAU/jdkdb-crawler/internal/config"
	"github.com/JakeFAU/jdkdb-crawler/internal/download"
	collyfetcher "github.com/JakeFAU/jdkdb-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/jdkdb-crawler/internal/listing"
	"github.com/JakeFAU/jdkdb-crawler/internal/metrics"
	"github.com/JakeFAU/jdkdb-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
	"github.com/JakeFAU/jdkdb-crawler/internal/progress/sinks"
	"github.com/JakeFAU/jdkdb-crawler/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/jdkdb-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/jdkdb-crawler/internal/scraper"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/local"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/postgres"
	"github.com/JakeFAU/jdkdb-crawler/internal/store"
	"github.com/JakeFAU/jdkdb-crawler/internal/telemetry"
	"github.com/JakeFAU/jdkdb-crawler/internal/vendors"
)

// App is the dependency injection container for a jdkdb invocation. It holds
// the listing clients, the archive introspector and the optional record
// mirrors, and knows how to open per-vendor stores and downloaders.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    string
	registry *vendors.Registry
	metrics  *prometheus.Registry

	downloads   *metrics.Downloads
	httpMetrics *metrics.HTTP

	releases     *listing.GitHub
	index        *listing.HTMLIndex
	introspector *archive.Introspector
	sinks        []scraper.RecordSink
	runs         store.RunRepository
	clock        *system.Clock

	closers []func()
}

// Options overrides collaborators that are otherwise built from config.
type Options struct {
	// Registry defaults to the embedded vendor table.
	Registry *vendors.Registry
	// Tokens resolves the GitHub token when the config has none.
	Tokens config.TokenSource
	// Sinks replaces the config-driven mirrors when non-nil.
	Sinks []scraper.RecordSink
}

// New wires every service. Mirrors are only built when their section of the
// configuration is populated.
func New(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		var err error
		registry, err = vendors.Default()
		if err != nil {
			return nil, fmt.Errorf("load vendor registry: %w", err)
		}
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		runID:    runID,
		registry: registry,
		metrics:  prometheus.NewRegistry(),
		clock:    system.New(),
	}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var err error
	if a.downloads, err = metrics.NewDownloads(a.metrics); err != nil {
		return nil, err
	}
	if a.httpMetrics, err = metrics.NewHTTP(a.metrics); err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.RequestsPerSecond,
		DefaultBurst: cfg.HTTP.Burst,
		OnDelay: func(host string, waited time.Duration) {
			logger.Debug("listing request delayed", zap.String("host", host), zap.Duration("waited", waited))
		},
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		Timeout:        cfg.RequestTimeout(),
		ConnectTimeout: cfg.ConnectTimeout(),
		Limiter:        limiter,
	})
	token := cfg.GitHubToken(ctx, opts.Tokens)
	if token == "" {
		logger.Warn("no GitHub token available, API rate limits will be low")
	}
	a.releases = listing.NewGitHub(fetcher, listing.GitHubConfig{
		BaseURL: cfg.HTTP.GitHubAPIBase,
		Token:   token,
	})
	a.index = listing.NewHTMLIndex(fetcher)

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, telemetry.Config{ServiceName: "jdkdb", RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	})
	a.introspector = archive.New(archive.WithLogger(logger.Named("archive")))

	if opts.Sinks != nil {
		a.sinks = opts.Sinks
	} else if err := a.buildSinks(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("run_id", runID),
		zap.Int("mirrors", len(a.sinks)),
	)
	return a, nil
}

func (a *App) buildSinks(ctx context.Context) error {
	cfg := a.cfg
	if cfg.Postgres.DSN != "" {
		a.logger.Info("connecting to PostgreSQL")
		records, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN, Table: cfg.Postgres.Table})
		if err != nil {
			return fmt.Errorf("initialize postgres mirror: %w", err)
		}
		a.closers = append(a.closers, records.Close)
		if err := records.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("initialize postgres mirror: %w", err)
		}
		runs, err := records.Runs(cfg.Postgres.RunsTable)
		if err != nil {
			return fmt.Errorf("initialize run history: %w", err)
		}
		if err := runs.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("initialize run history: %w", err)
		}
		a.sinks = append(a.sinks, records)
		a.runs = runs
	}

	if cfg.GCS.Bucket != "" {
		a.logger.Info("using GCS mirror", zap.String("bucket", cfg.GCS.Bucket))
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		mirror, err := gcs.New(client, gcs.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix})
		if err != nil {
			return fmt.Errorf("initialize gcs mirror: %w", err)
		}
		a.sinks = append(a.sinks, mirror)
	}

	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		a.logger.Info("connecting to GCP Pub/Sub", zap.String("topic", cfg.PubSub.Topic))
		pub, closeFn, err := pubsubpublisher.Connect(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return fmt.Errorf("initialize pubsub notifier: %w", err)
		}
		a.closers = append(a.closers, closeFn)
		notifier, err := publisher.NewRecordNotifier(pub, cfg.PubSub.Topic, a.runID)
		if err != nil {
			return fmt.Errorf("initialize pubsub notifier: %w", err)
		}
		a.sinks = append(a.sinks, notifier)
	}
	return nil
}

// Close releases mirror connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// RunID identifies this invocation in events and notifications.
func (a *App) RunID() string { return a.runID }

// Registry returns the vendor table.
func (a *App) Registry() *vendors.Registry { return a.registry }

// Metrics returns the Prometheus registry served on /metrics.
func (a *App) Metrics() *prometheus.Registry { return a.metrics }

// DownloadMetrics returns the collectors fed by the download pool.
func (a *App) DownloadMetrics() *metrics.Downloads { return a.downloads }

// HTTPMetrics returns the collectors fed by the status server.
func (a *App) HTTPMetrics() *metrics.HTTP { return a.httpMetrics }

// Releases returns the GitHub release lister.
func (a *App) Releases() scraper.ReleaseLister { return a.releases }

// Index returns the HTML index lister.
func (a *App) Index() scraper.IndexLister { return a.index }

// Introspector returns the archive descriptor reader.
func (a *App) Introspector() scraper.Introspector { return a.introspector }

// Sinks returns the configured record mirrors.
func (a *App) Sinks() []scraper.RecordSink { return a.sinks }

// Clock returns the wall clock.
func (a *App) Clock() scraper.Clock { return a.clock }

// DownloaderAt opens a downloader writing sidecars into checksumDir.
func (a *App) DownloaderAt(checksumDir string) (scraper.Downloader, error) {
	return download.New(download.Config{
		ChecksumDir:    checksumDir,
		ConnectTimeout: a.cfg.ConnectTimeout(),
		UserAgent:      a.cfg.HTTP.UserAgent,
	}, nil)
}

// StoreAt opens the record store rooted at metadataDir.
func (a *App) StoreAt(metadataDir string) (scraper.RecordStore, error) {
	return local.New(local.Config{BaseDir: metadataDir})
}

// VendorDownloader opens the downloader for a vendor's checksum directory.
func (a *App) VendorDownloader(vendor string) (scraper.Downloader, error) {
	return a.DownloaderAt(filepath.Join(a.cfg.Paths.ChecksumDir, vendor))
}

// VendorStore opens the record store for a vendor's metadata directory.
func (a *App) VendorStore(vendor string) (scraper.RecordStore, error) {
	return a.StoreAt(filepath.Join(a.cfg.Paths.MetadataDir, "vendor", vendor))
}

// NewReporter starts a progress reporter that logs every event and feeds the
// Prometheus collectors. Run history is recorded when Postgres is configured.
func (a *App) NewReporter(ctx context.Context) (*progress.Reporter, error) {
	promSink, err := sinks.NewPrometheusSink(a.metrics)
	if err != nil {
		return nil, err
	}
	all := []progress.Sink{sinks.NewLogSink(a.logger.Named("events")), promSink}
	if a.runs != nil {
		all = append(all, sinks.NewStoreSink(a.runs, a.logger.Named("runs")))
	}
	return progress.NewReporter(progress.Config{
		BaseContext: ctx,
		RunID:       a.runID,
		Logger:      a.logger.Named("progress"),
	}, all...), nil
}
