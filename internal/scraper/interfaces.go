package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/archive"
	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/download"
	"github.com/JakeFAU/jdkdb-crawler/internal/listing"
)

// ReleaseLister enumerates GitHub-style releases.
type ReleaseLister interface {
	Releases(ctx context.Context, org, repo string) ([]listing.Release, error)
}

// IndexLister enumerates the links of an HTML index page.
type IndexLister interface {
	Links(ctx context.Context, pageURL string) ([]listing.Asset, error)
}

// Downloader streams an artifact to a temp file, hashes it and writes the
// checksum sidecars.
type Downloader interface {
	Fetch(ctx context.Context, url, filename string, inspect download.InspectFunc) (artifact.Checksums, error)
}

// Introspector reads the release descriptor embedded in a downloaded archive.
type Introspector interface {
	Supports(format string) bool
	ExtractReleaseDescriptor(ctx context.Context, path, format string) (archive.Descriptor, error)
}

// RecordStore is the canonical, vendor-scoped record store.
type RecordStore interface {
	Exists(ctx context.Context, filename string) (bool, error)
	Save(ctx context.Context, rec artifact.Record) error
}

// RecordSink mirrors persisted records to secondary destinations.
type RecordSink interface {
	Name() string
	Put(ctx context.Context, rec artifact.Record) error
}

// Submitter accepts records whose checksums are computed out of band.
type Submitter interface {
	Submit(rec artifact.Record, vendor string, logger *zap.Logger)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
