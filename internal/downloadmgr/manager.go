// Package downloadmgr downloads and fingerprints artifacts whose records were
// persisted without checksums, then fully replaces those records.
package downloadmgr

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/metrics"
	"github.com/JakeFAU/jdkdb-crawler/internal/scraper"
)

// ErrClosed is recorded for submissions that arrive after Close.
var ErrClosed = errors.New("download manager closed")

// Manager accepts deferred checksum work and reports its outcome.
type Manager interface {
	scraper.Submitter
	Close()
	AwaitCompletion(ctx context.Context) error
	CompletedCount() int64
	FailedCount() int64
}

// DownloaderFactory returns the downloader that writes sidecars for vendor.
type DownloaderFactory func(vendor string) (scraper.Downloader, error)

// StoreFactory returns the record store of vendor.
type StoreFactory func(vendor string) (scraper.RecordStore, error)

// Config controls the pool.
type Config struct {
	// Concurrency bounds parallel downloads. Defaults to runtime.NumCPU().
	Concurrency int
}

// Deps carries the collaborators of a Pool.
type Deps struct {
	Downloaders  DownloaderFactory
	Stores       StoreFactory
	Introspector scraper.Introspector
	Sinks        []scraper.RecordSink
	Logger       *zap.Logger
	// Metrics may be nil.
	Metrics *metrics.Downloads
}

// Pool is the default Manager: a bounded pool of download goroutines.
type Pool struct {
	deps   Deps
	ctx    context.Context
	group  *errgroup.Group
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
}

var _ Manager = (*Pool)(nil)

// New builds a Pool whose work runs under ctx. Cancelling ctx aborts
// in-flight downloads, which are then counted as failed.
func New(ctx context.Context, cfg Config, deps Deps) (*Pool, error) {
	if deps.Downloaders == nil {
		return nil, fmt.Errorf("downloader factory is required")
	}
	if deps.Stores == nil {
		return nil, fmt.Errorf("store factory is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Concurrency)
	return &Pool{
		deps:   deps,
		ctx:    gctx,
		group:  group,
		logger: logger,
	}, nil
}

// Submit queues rec for download. It never blocks the caller.
func (p *Pool) Submit(rec artifact.Record, vendor string, logger *zap.Logger) {
	if logger == nil {
		logger = p.logger
	}
	logger = logger.With(zap.String("filename", rec.Filename))

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.failed.Add(1)
		logger.Warn("dropping download submission", zap.Error(ErrClosed))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		p.group.Go(func() error {
			defer p.wg.Done()
			p.process(rec, vendor, logger)
			return nil
		})
	}()
}

// Close stops accepting submissions. Queued work keeps running.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// AwaitCompletion closes the pool and blocks until every accepted submission
// has finished or ctx ends.
func (p *Pool) AwaitCompletion(ctx context.Context) error {
	p.Close()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("await downloads: %w", ctx.Err())
	}
}

// CompletedCount returns the number of records replaced with checksums.
func (p *Pool) CompletedCount() int64 { return p.completed.Load() }

// FailedCount returns the number of submissions that did not complete.
func (p *Pool) FailedCount() int64 { return p.failed.Load() }

func (p *Pool) process(rec artifact.Record, vendor string, logger *zap.Logger) {
	done := p.deps.Metrics.Start(vendor, rec.URL)
	size, err := p.download(rec, vendor, logger)
	done(size, err)
	if err != nil {
		p.failed.Add(1)
		logger.Error("download failed", zap.Error(err))
		return
	}
	p.completed.Add(1)
	logger.Info("download completed")
}

func (p *Pool) download(rec artifact.Record, vendor string, logger *zap.Logger) (int64, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	if rec.URL == "" {
		return 0, fmt.Errorf("record has no url")
	}
	dl, err := p.deps.Downloaders(vendor)
	if err != nil {
		return 0, fmt.Errorf("open downloader: %w", err)
	}
	store, err := p.deps.Stores(vendor)
	if err != nil {
		return 0, fmt.Errorf("open record store: %w", err)
	}

	inspect := scraper.Inspector(p.ctx, p.deps.Introspector, &rec, logger)
	sums, err := dl.Fetch(p.ctx, rec.URL, rec.Filename, inspect)
	if err != nil {
		return 0, err
	}
	rec = rec.WithChecksums(sums).Normalize()
	if err := store.Save(p.ctx, rec); err != nil {
		return sums.Size, fmt.Errorf("save record: %w", err)
	}
	scraper.Mirror(p.ctx, p.deps.Sinks, rec, logger)
	return sums.Size, nil
}

// NoOp counts submissions without downloading anything. It backs dry runs.
type NoOp struct {
	submitted atomic.Int64
}

var _ Manager = (*NoOp)(nil)

// Submit records the submission.
func (n *NoOp) Submit(rec artifact.Record, _ string, logger *zap.Logger) {
	n.submitted.Add(1)
	if logger != nil {
		logger.Debug("stats only, not downloading", zap.String("filename", rec.Filename))
	}
}

// Close is a no-op.
func (*NoOp) Close() {}

// AwaitCompletion returns immediately.
func (*NoOp) AwaitCompletion(context.Context) error { return nil }

// CompletedCount is always zero.
func (*NoOp) CompletedCount() int64 { return 0 }

// FailedCount is always zero.
func (*NoOp) FailedCount() int64 { return 0 }

// Submitted returns the number of submissions seen.
func (n *NoOp) Submitted() int64 { return n.submitted.Load() }
