// Package orchestrator runs the selected scrapers on a bounded pool and
// aggregates their results.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jdkdb-crawler/internal/logging"
	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
	"github.com/JakeFAU/jdkdb-crawler/internal/scraper"
	"github.com/JakeFAU/jdkdb-crawler/internal/vendors"
)

const tracerName = "github.com/JakeFAU/jdkdb-crawler/internal/orchestrator"

// Reporter receives task events and exposes task states to the heartbeat.
type Reporter interface {
	progress.Emitter
	Register(state *progress.State)
}

// DownloaderFactory returns a downloader writing sidecars to checksumDir.
type DownloaderFactory func(checksumDir string) (scraper.Downloader, error)

// StoreFactory returns the record store rooted at metadataDir.
type StoreFactory func(metadataDir string) (scraper.RecordStore, error)

// Config controls a run.
type Config struct {
	MetadataDir string
	ChecksumDir string
	// Threads bounds concurrent scrapers. Defaults to runtime.NumCPU().
	Threads int
	// Scraper is the per-task template. Its directories are overwritten.
	Scraper scraper.Config
	RunID   string
}

// Deps carries the shared collaborators handed to every task.
type Deps struct {
	Registry     *vendors.Registry
	Releases     scraper.ReleaseLister
	Index        scraper.IndexLister
	Downloaders  DownloaderFactory
	Stores       StoreFactory
	Introspector scraper.Introspector
	Sinks        []scraper.RecordSink
	Submitter    scraper.Submitter
	Reporter     Reporter
	Clock        scraper.Clock
	Logger       *zap.Logger
}

// Orchestrator fans scrapers out over a bounded pool.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New validates the configuration.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("vendor registry is required")
	}
	if deps.Downloaders == nil || deps.Stores == nil {
		return nil, fmt.Errorf("downloader and store factories are required")
	}
	if cfg.MetadataDir == "" || cfg.ChecksumDir == "" {
		return nil, fmt.Errorf("metadata and checksum directories are required")
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}, nil
}

// Run executes the scrapers named by ids, or all of them when ids is empty.
// Only an unknown id is returned as an error; task failures land in the
// Summary.
func (o *Orchestrator) Run(ctx context.Context, ids []string) (Summary, error) {
	selected, err := o.deps.Registry.Select(ids)
	if err != nil {
		return Summary{}, err
	}
	o.logger.Info("starting scrapers",
		zap.Int("count", len(selected)),
		zap.Int("threads", o.cfg.Threads),
		zap.String("run_id", o.cfg.RunID),
	)

	start := time.Now()
	results := make([]scraper.Result, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Threads)
	for i, v := range selected {
		// Go blocks while every thread is busy, so a task only shows up in
		// the progress display once it holds a thread.
		g.Go(func() error {
			state := progress.NewState(v.ID)
			if o.deps.Reporter != nil {
				o.deps.Reporter.Register(state)
			}
			results[i] = o.runTask(gctx, v, state)
			return nil
		})
	}
	_ = g.Wait()

	summary := newSummary(o.cfg.RunID, results, time.Since(start))
	o.logger.Info("scrapers finished",
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int64("processed", summary.TotalProcessed),
	)
	return summary, nil
}

// runTask builds and runs one isolated scraper. A panic becomes a failed
// result.
func (o *Orchestrator) runTask(ctx context.Context, v *vendors.Vendor, state *progress.State) (res scraper.Result) {
	logger := logging.ForScraper(o.logger, v.Name, v.ID)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scraper.run",
		trace.WithAttributes(
			attribute.String("jdkdb.scraper_id", v.ID),
			attribute.String("jdkdb.vendor", v.Name),
		),
	)
	defer span.End()
	o.emit(v.ID, progress.KindStarted, "Started", nil)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("scraper panic: %v", r)
			logger.Error("scraper panicked", zap.Any("panic", r), zap.Stack("stack"))
			state.Fail()
			res = scraper.FailureResult(v.ID, v.Name, err)
		}
		span.SetAttributes(
			attribute.Int64("jdkdb.processed", res.Processed),
			attribute.Int64("jdkdb.skipped", res.Skipped),
			attribute.Int64("jdkdb.failed", res.Failed),
		)
		if !res.Success && res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		if res.Success {
			o.emit(v.ID, progress.KindCompleted, res.String(), nil)
		} else {
			o.emit(v.ID, progress.KindFailed, res.String(), res.Err)
		}
	}()

	s, err := o.build(v, state, logger)
	if err != nil {
		logger.Error("cannot build scraper", zap.Error(err))
		state.Fail()
		return scraper.FailureResult(v.ID, v.Name, err)
	}
	return s.Run(ctx)
}

func (o *Orchestrator) build(v *vendors.Vendor, state *progress.State, logger *zap.Logger) (*scraper.Scraper, error) {
	cfg := o.cfg.Scraper
	cfg.MetadataDir = filepath.Join(o.cfg.MetadataDir, "vendor", v.Name)
	cfg.ChecksumDir = filepath.Join(o.cfg.ChecksumDir, v.Name)

	store, err := o.deps.Stores(cfg.MetadataDir)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	dl, err := o.deps.Downloaders(cfg.ChecksumDir)
	if err != nil {
		return nil, fmt.Errorf("open downloader: %w", err)
	}
	var emitter progress.Emitter
	if o.deps.Reporter != nil {
		emitter = o.deps.Reporter
	}
	return scraper.New(v, cfg, scraper.Deps{
		Releases:     o.deps.Releases,
		Index:        o.deps.Index,
		Downloader:   dl,
		Introspector: o.deps.Introspector,
		Store:        store,
		Sinks:        o.deps.Sinks,
		Submitter:    o.deps.Submitter,
		Emitter:      emitter,
		State:        state,
		Clock:        o.deps.Clock,
		Logger:       logger,
	})
}

func (o *Orchestrator) emit(source string, kind progress.Kind, msg string, err error) {
	if o.deps.Reporter == nil {
		return
	}
	evt := progress.NewEvent(source, kind, msg, err)
	evt.RunID = o.cfg.RunID
	o.deps.Reporter.Report(evt)
}
