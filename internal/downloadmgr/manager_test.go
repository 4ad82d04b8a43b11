package downloadmgr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/archive"
	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/download"
	"github.com/JakeFAU/jdkdb-crawler/internal/metrics"
	"github.com/JakeFAU/jdkdb-crawler/internal/scraper"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/local"
)

type stubDownloader struct {
	mu      sync.Mutex
	vendor  string
	calls   []string
	fail    map[string]error
	block   chan struct{}
	inspect bool
}

func (d *stubDownloader) Fetch(ctx context.Context, _, filename string, inspect download.InspectFunc) (artifact.Checksums, error) {
	d.mu.Lock()
	d.calls = append(d.calls, d.vendor+"/"+filename)
	err := d.fail[filename]
	d.mu.Unlock()
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return artifact.Checksums{}, ctx.Err()
		}
	}
	if err != nil {
		return artifact.Checksums{}, err
	}
	if inspect != nil {
		d.mu.Lock()
		d.inspect = true
		d.mu.Unlock()
		inspect("/tmp/" + filename)
	}
	return artifact.Checksums{MD5: "m", SHA1: "s1", SHA256: "s256", SHA512: "s512", Size: 3}, nil
}

type memStore struct {
	mu      sync.Mutex
	records map[string]artifact.Record
}

func newMemStore() *memStore {
	return &memStore{records: map[string]artifact.Record{}}
}

func (s *memStore) Exists(_ context.Context, filename string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[filename]
	return ok, nil
}

func (s *memStore) Save(_ context.Context, rec artifact.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Filename] = rec
	return nil
}

func (s *memStore) get(filename string) (artifact.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[filename]
	return rec, ok
}

type recordingSink struct {
	mu    sync.Mutex
	names []string
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Put(_ context.Context, rec artifact.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, rec.Filename)
	return nil
}

type descriptorIntrospector struct{}

func (descriptorIntrospector) Supports(format string) bool { return format == artifact.FileTypeZip }

func (descriptorIntrospector) ExtractReleaseDescriptor(context.Context, string, string) (archive.Descriptor, error) {
	return archive.Descriptor{artifact.DescriptorJVMVariant: "Hotspot"}, nil
}

func deferredRecord(filename string) artifact.Record {
	return artifact.Record{
		Vendor:      "acme",
		Filename:    filename,
		ReleaseType: artifact.ReleaseGA,
		Version:     "1.0",
		FileType:    artifact.FileTypeZip,
		URL:         "https://example.com/" + filename,
	}
}

func newPool(t *testing.T, ctx context.Context, dl *stubDownloader, store *memStore, sinks ...scraper.RecordSink) *Pool {
	t.Helper()
	pool, err := New(ctx, Config{Concurrency: 2}, Deps{
		Downloaders: func(vendor string) (scraper.Downloader, error) {
			dl.mu.Lock()
			dl.vendor = vendor
			dl.mu.Unlock()
			return dl, nil
		},
		Stores:       func(string) (scraper.RecordStore, error) { return store, nil },
		Introspector: descriptorIntrospector{},
		Sinks:        sinks,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	return pool
}

func TestPoolReplacesRecordsWithChecksums(t *testing.T) {
	t.Parallel()

	dl := &stubDownloader{}
	store := newMemStore()
	sink := &recordingSink{}
	pool := newPool(t, context.Background(), dl, store, sink)

	for _, name := range []string{"a.zip", "b.zip", "c.zip"} {
		require.NoError(t, store.Save(context.Background(), deferredRecord(name)))
		pool.Submit(deferredRecord(name), "acme", nil)
	}
	require.NoError(t, pool.AwaitCompletion(context.Background()))

	assert.Equal(t, int64(3), pool.CompletedCount())
	assert.Equal(t, int64(0), pool.FailedCount())
	for _, name := range []string{"a.zip", "b.zip", "c.zip"} {
		rec, ok := store.get(name)
		require.True(t, ok)
		assert.True(t, rec.HasChecksums(), name)
		assert.Equal(t, name+".sha256", rec.SHA256File)
		assert.Equal(t, "hotspot", rec.JVMImpl)
		assert.NotNil(t, rec.Features)
	}
	assert.ElementsMatch(t, []string{"a.zip", "b.zip", "c.zip"}, sink.names)
	assert.True(t, dl.inspect)
}

func TestPoolCountsFailures(t *testing.T) {
	t.Parallel()

	dl := &stubDownloader{fail: map[string]error{"bad.zip": &download.DownloadError{StatusCode: 404}}}
	store := newMemStore()
	pool := newPool(t, context.Background(), dl, store)

	pool.Submit(deferredRecord("good.zip"), "acme", zap.NewNop())
	pool.Submit(deferredRecord("bad.zip"), "acme", zap.NewNop())
	noURL := deferredRecord("nourl.zip")
	noURL.URL = ""
	pool.Submit(noURL, "acme", zap.NewNop())
	require.NoError(t, pool.AwaitCompletion(context.Background()))

	assert.Equal(t, int64(1), pool.CompletedCount())
	assert.Equal(t, int64(2), pool.FailedCount())
	_, ok := store.get("bad.zip")
	assert.False(t, ok)
}

func TestPoolRecordsDownloadMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewDownloads(reg)
	require.NoError(t, err)
	dl := &stubDownloader{fail: map[string]error{"bad.zip": &download.DownloadError{StatusCode: 404}}}
	store := newMemStore()
	pool, err := New(context.Background(), Config{Concurrency: 1}, Deps{
		Downloaders: func(string) (scraper.Downloader, error) { return dl, nil },
		Stores:      func(string) (scraper.RecordStore, error) { return store, nil },
		Metrics:     m,
	})
	require.NoError(t, err)

	pool.Submit(deferredRecord("good.zip"), "acme", nil)
	pool.Submit(deferredRecord("bad.zip"), "acme", nil)
	require.NoError(t, pool.AwaitCompletion(context.Background()))

	count, err := testutil.GatherAndCount(reg, "jdkdb_downloads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = testutil.GatherAndCount(reg, "jdkdb_download_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPoolStoreFactoryError(t *testing.T) {
	t.Parallel()

	pool, err := New(context.Background(), Config{}, Deps{
		Downloaders: func(string) (scraper.Downloader, error) { return &stubDownloader{}, nil },
		Stores:      func(string) (scraper.RecordStore, error) { return nil, errors.New("disk full") },
	})
	require.NoError(t, err)

	pool.Submit(deferredRecord("a.zip"), "acme", nil)
	require.NoError(t, pool.AwaitCompletion(context.Background()))
	assert.Equal(t, int64(1), pool.FailedCount())
}

func TestPoolRejectsSubmissionsAfterClose(t *testing.T) {
	t.Parallel()

	dl := &stubDownloader{}
	pool := newPool(t, context.Background(), dl, newMemStore())
	pool.Close()
	pool.Submit(deferredRecord("late.zip"), "acme", nil)
	require.NoError(t, pool.AwaitCompletion(context.Background()))

	assert.Equal(t, int64(0), pool.CompletedCount())
	assert.Equal(t, int64(1), pool.FailedCount())
	assert.Empty(t, dl.calls)
}

func TestPoolAwaitCompletionHonorsContext(t *testing.T) {
	t.Parallel()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	dl := &stubDownloader{block: make(chan struct{})}
	pool := newPool(t, runCtx, dl, newMemStore())
	pool.Submit(deferredRecord("slow.zip"), "acme", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.AwaitCompletion(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	cancelRun()
	require.NoError(t, pool.AwaitCompletion(context.Background()))
	assert.Equal(t, int64(1), pool.FailedCount())
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{}, Deps{})
	require.Error(t, err)
	_, err = New(context.Background(), Config{}, Deps{
		Downloaders: func(string) (scraper.Downloader, error) { return nil, nil },
	})
	require.Error(t, err)
}

func TestNoOpCountsOnly(t *testing.T) {
	t.Parallel()

	var n NoOp
	n.Submit(deferredRecord("a.zip"), "acme", zap.NewNop())
	n.Submit(deferredRecord("b.zip"), "acme", nil)
	n.Close()
	require.NoError(t, n.AwaitCompletion(context.Background()))
	assert.Equal(t, int64(2), n.Submitted())
	assert.Zero(t, n.CompletedCount())
	assert.Zero(t, n.FailedCount())
}

func writeRecord(t *testing.T, root, vendor string, rec artifact.Record) {
	t.Helper()
	store, err := local.New(local.Config{BaseDir: filepath.Join(root, "vendor", vendor)})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), rec))
}

func TestBackfillSubmitsIncompleteRecords(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRecord(t, root, "acme", deferredRecord("a.zip"))
	writeRecord(t, root, "acme", deferredRecord("b.zip").WithChecksums(artifact.Checksums{
		MD5: "m", SHA1: "s1", SHA256: "s256", SHA512: "s512",
	}))
	writeRecord(t, root, "acme", deferredRecord("c.zip"))
	writeRecord(t, root, "zulu", deferredRecord("z.zip"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "acme", "broken.zip.json"), []byte("{"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "acme", local.IndexFilename), []byte("[]\n"), 0o600))

	var n NoOp
	stats, err := Backfill(context.Background(), BackfillConfig{MetadataDir: root}, &n, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"acme", "zulu"}, stats.Vendors)
	assert.Equal(t, 5, stats.Scanned)
	assert.Equal(t, 1, stats.Complete)
	assert.Equal(t, 3, stats.Missing)
	assert.Equal(t, int64(3), n.Submitted())
}

func TestBackfillHonorsVendorFilterAndLimit(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"a.zip", "b.zip", "c.zip"} {
		writeRecord(t, root, "acme", deferredRecord(name))
	}
	writeRecord(t, root, "zulu", deferredRecord("z.zip"))

	var n NoOp
	stats, err := Backfill(context.Background(), BackfillConfig{
		MetadataDir:   root,
		Vendors:       []string{"acme", "missing"},
		LimitProgress: 2,
	}, &n, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, stats.Vendors)
	assert.Equal(t, 2, stats.Missing)
	assert.Equal(t, int64(2), n.Submitted())
}

func TestBackfillRequiresVendorRoot(t *testing.T) {
	t.Parallel()

	_, err := Backfill(context.Background(), BackfillConfig{MetadataDir: t.TempDir()}, &NoOp{}, nil)
	require.ErrorContains(t, err, "vendor directory not found")
}

func TestBackfillFeedsPool(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRecord(t, root, "acme", deferredRecord("a.zip"))

	dl := &stubDownloader{}
	pool, err := New(context.Background(), Config{Concurrency: 1}, Deps{
		Downloaders: func(vendor string) (scraper.Downloader, error) {
			dl.mu.Lock()
			dl.vendor = vendor
			dl.mu.Unlock()
			return dl, nil
		},
		Stores: func(vendor string) (scraper.RecordStore, error) {
			return local.New(local.Config{BaseDir: filepath.Join(root, "vendor", vendor)})
		},
	})
	require.NoError(t, err)

	_, err = Backfill(context.Background(), BackfillConfig{MetadataDir: root}, pool, nil)
	require.NoError(t, err)
	require.NoError(t, pool.AwaitCompletion(context.Background()))
	require.Equal(t, int64(1), pool.CompletedCount())

	store, err := local.New(local.Config{BaseDir: filepath.Join(root, "vendor", "acme")})
	require.NoError(t, err)
	rec, err := store.Load(context.Background(), "a.zip")
	require.NoError(t, err)
	assert.True(t, rec.HasChecksums())
	assert.Equal(t, []string{"acme/a.zip"}, dl.calls)
}
