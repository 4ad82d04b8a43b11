package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/archive"
	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/clock/system"
	"github.com/JakeFAU/jdkdb-crawler/internal/download"
	"github.com/JakeFAU/jdkdb-crawler/internal/listing"
	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
	"github.com/JakeFAU/jdkdb-crawler/internal/vendors"
)

// Config controls one scraper run.
type Config struct {
	// MetadataDir and ChecksumDir are the vendor-scoped output directories.
	MetadataDir string
	ChecksumDir string
	// FromStart reprocesses assets that already have a record.
	FromStart bool
	// MaxFailureCount aborts the run after that many asset failures when > 0.
	MaxFailureCount int
	// LimitProgress stops the run after that many new records when > 0.
	LimitProgress int
	// SkipEAOlderThan skips prereleases published before now minus the
	// window when > 0.
	SkipEAOlderThan time.Duration
}

// Deps carries the collaborators of a Scraper. Releases is required for
// GitHub sources and Index for HTML sources.
type Deps struct {
	Releases     ReleaseLister
	Index        IndexLister
	Downloader   Downloader
	Introspector Introspector
	Store        RecordStore
	Sinks        []RecordSink
	Submitter    Submitter
	Emitter      progress.Emitter
	State        *progress.State
	Clock        Clock
	Logger       *zap.Logger
}

// Scraper executes the shared scraping state machine for one vendor entry.
type Scraper struct {
	vendor *vendors.Vendor
	cfg    Config
	deps   Deps
	state  *progress.State
	logger *zap.Logger

	processed int
	failures  int
}

// New validates deps against the vendor's source kind.
func New(v *vendors.Vendor, cfg Config, deps Deps) (*Scraper, error) {
	if v == nil {
		return nil, errors.New("scraper: vendor is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("scraper %s: record store is required", v.ID)
	}
	if deps.Downloader == nil {
		return nil, fmt.Errorf("scraper %s: downloader is required", v.ID)
	}
	switch v.Source {
	case vendors.SourceGitHub:
		if deps.Releases == nil {
			return nil, fmt.Errorf("scraper %s: release lister is required", v.ID)
		}
	case vendors.SourceHTML:
		if deps.Index == nil {
			return nil, fmt.Errorf("scraper %s: index lister is required", v.ID)
		}
	default:
		return nil, fmt.Errorf("scraper %s: unsupported source %q", v.ID, v.Source)
	}
	if deps.State == nil {
		deps.State = progress.NewState(v.ID)
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		vendor: v,
		cfg:    cfg,
		deps:   deps,
		state:  deps.State,
		logger: logger,
	}, nil
}

// ID returns the scraper id.
func (s *Scraper) ID() string { return s.vendor.ID }

// State exposes the live counters of this run.
func (s *Scraper) State() *progress.State { return s.state }

// Run executes the scraper to completion and settles its state.
func (s *Scraper) Run(ctx context.Context) Result {
	s.logger.Info("starting scraper")
	err := s.run(ctx)
	if err == nil || errors.Is(err, ErrProgressLimit) {
		if err != nil {
			s.logger.Info("stopping early", zap.Error(err))
		}
		s.state.Complete()
		res := successResult(s.vendor.ID, s.vendor.Name, s.state.Processed(), s.state.Skipped(), s.state.Failed())
		s.logger.Info("scraper completed",
			zap.Int64("processed", res.Processed),
			zap.Int64("skipped", res.Skipped),
			zap.Int64("failed", res.Failed),
		)
		return res
	}
	s.state.Fail()
	s.logger.Error("scraper failed", zap.Error(err))
	return FailureResult(s.vendor.ID, s.vendor.Name, err)
}

func (s *Scraper) run(ctx context.Context) error {
	for _, dir := range []string{s.cfg.MetadataDir, s.cfg.ChecksumDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}
	if s.vendor.Source == vendors.SourceGitHub {
		return s.scrapeReleases(ctx)
	}
	return s.scrapeIndexes(ctx)
}

func (s *Scraper) scrapeReleases(ctx context.Context) error {
	for _, repo := range s.vendor.Repos {
		releases, err := s.deps.Releases.Releases(ctx, s.vendor.Org, repo)
		if err != nil {
			return fmt.Errorf("list releases %s/%s: %w", s.vendor.Org, repo, err)
		}
		s.logger.Debug("listed releases", zap.String("repo", repo), zap.Int("count", len(releases)))
		for _, rel := range releases {
			if err := s.processRelease(ctx, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scraper) processRelease(ctx context.Context, rel listing.Release) error {
	if s.vendor.PrereleaseOnly && !rel.Prerelease {
		return nil
	}
	if rel.Prerelease && s.tooOld(rel) {
		s.logger.Debug("skipping old prerelease", zap.String("tag", rel.Tag))
		return nil
	}
	tagGroups, ok := s.vendor.MatchTag(rel.Tag)
	if !ok {
		s.logger.Debug("skipping release, tag does not match", zap.String("tag", rel.Tag))
		return nil
	}
	assets := rel.Assets
	if s.vendor.BodyLinks {
		assets = listing.BodyAssets(rel.Body)
	}
	for _, a := range assets {
		err := s.processAsset(ctx, vendors.Asset{
			Filename:    a.Name,
			URL:         a.URL,
			Description: a.Description,
			Prerelease:  rel.Prerelease,
			TagGroups:   tagGroups,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scraper) scrapeIndexes(ctx context.Context) error {
	for _, page := range s.vendor.IndexURLs {
		links, err := s.deps.Index.Links(ctx, page)
		if err != nil {
			return fmt.Errorf("list index %s: %w", page, err)
		}
		for _, link := range links {
			if !s.vendor.AcceptsLink(link.URL) {
				continue
			}
			if err := s.processAsset(ctx, vendors.Asset{Filename: link.Name, URL: link.URL}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scraper) tooOld(rel listing.Release) bool {
	if s.cfg.SkipEAOlderThan <= 0 || rel.PublishedAt.IsZero() {
		return false
	}
	return rel.PublishedAt.Before(s.deps.Clock.Now().Add(-s.cfg.SkipEAOlderThan))
}

// processAsset returns only errors that end the run: circuit breakers and
// context cancellation.
func (s *Scraper) processAsset(ctx context.Context, a vendors.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.vendor.Excluded(a.Filename) {
		s.logger.Debug("skipping excluded asset", zap.String("filename", a.Filename))
		return nil
	}
	rec, ok := s.vendor.Describe(a)
	if !ok {
		s.logger.Info("skipping asset, does not match pattern", zap.String("filename", a.Filename))
		return nil
	}
	if !s.cfg.FromStart {
		exists, err := s.deps.Store.Exists(ctx, rec.Filename)
		if err != nil {
			return s.fail(rec.Filename, fmt.Errorf("check existing record: %w", err))
		}
		if exists {
			s.skip(rec.Filename)
			return nil
		}
	}
	if err := s.persist(ctx, rec); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return s.fail(rec.Filename, err)
	}
	return s.succeed(rec.Filename)
}

func (s *Scraper) persist(ctx context.Context, rec artifact.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	logger := s.logger.With(zap.String("filename", rec.Filename))

	if s.vendor.DeferChecksums && s.deps.Submitter != nil {
		if err := s.deps.Store.Save(ctx, rec); err != nil {
			return fmt.Errorf("save record: %w", err)
		}
		s.deps.Submitter.Submit(rec, s.vendor.Name, logger)
		return nil
	}

	var inspect download.InspectFunc
	if s.vendor.Introspect {
		inspect = Inspector(ctx, s.deps.Introspector, &rec, logger)
	}
	sums, err := s.deps.Downloader.Fetch(ctx, rec.URL, rec.Filename, inspect)
	if err != nil {
		return err
	}
	rec = rec.WithChecksums(sums).Normalize()
	if err := s.deps.Store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	Mirror(ctx, s.deps.Sinks, rec, logger)
	return nil
}

func (s *Scraper) succeed(filename string) error {
	s.state.IncProcessed()
	s.processed++
	s.logger.Info("processed", zap.String("filename", filename))
	s.emit(progress.KindProcessed, "Processed "+filename, nil)
	if s.cfg.LimitProgress > 0 && s.processed >= s.cfg.LimitProgress {
		return fmt.Errorf("%w: %d items", ErrProgressLimit, s.cfg.LimitProgress)
	}
	return nil
}

func (s *Scraper) skip(filename string) {
	s.state.IncSkipped()
	s.logger.Debug("skipping, record exists", zap.String("filename", filename))
	s.emit(progress.KindSkipped, "Skipped "+filename, nil)
}

func (s *Scraper) fail(filename string, err error) error {
	s.state.IncFailed()
	s.failures++
	s.logger.Error("failed to process asset", zap.String("filename", filename), zap.Error(err))
	s.emit(progress.KindAssetFailed, "Failed "+filename, err)
	if s.cfg.MaxFailureCount > 0 && s.failures >= s.cfg.MaxFailureCount {
		return fmt.Errorf("%w: %d failures", ErrTooManyFailures, s.failures)
	}
	return nil
}

func (s *Scraper) emit(kind progress.Kind, msg string, err error) {
	if s.deps.Emitter == nil {
		return
	}
	s.deps.Emitter.Report(progress.NewEvent(s.vendor.ID, kind, msg, err))
}

// Inspector returns an InspectFunc that enriches rec from the archive's
// release descriptor. It returns nil when the format is not introspectable.
func Inspector(ctx context.Context, in Introspector, rec *artifact.Record, logger *zap.Logger) download.InspectFunc {
	if in == nil || !in.Supports(rec.FileType) {
		return nil
	}
	return func(path string) {
		desc, err := in.ExtractReleaseDescriptor(ctx, path, rec.FileType)
		switch {
		case err == nil:
			*rec = rec.Enrich(desc)
		case errors.Is(err, archive.ErrNotFound), errors.Is(err, archive.ErrUnsupported):
			logger.Debug("no release descriptor", zap.Error(err))
		default:
			logger.Warn("release descriptor extraction failed", zap.Error(err))
		}
	}
}

// Mirror copies rec to every sink. Failures are logged and never returned.
func Mirror(ctx context.Context, sinks []RecordSink, rec artifact.Record, logger *zap.Logger) {
	for _, sink := range sinks {
		if err := sink.Put(ctx, rec); err != nil {
			logger.Warn("record mirror failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}
