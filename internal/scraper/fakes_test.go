package scraper

import (
	"context"
	"errors"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/archive"
	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/download"
	"github.com/JakeFAU/jdkdb-crawler/internal/listing"
	"github.com/JakeFAU/jdkdb-crawler/internal/progress"
)

type fakeReleases struct {
	byRepo map[string][]listing.Release
	err    error
}

func (f *fakeReleases) Releases(_ context.Context, _, repo string) ([]listing.Release, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byRepo[repo], nil
}

type fakeIndex struct {
	pages map[string][]listing.Asset
}

func (f *fakeIndex) Links(_ context.Context, page string) ([]listing.Asset, error) {
	links, ok := f.pages[page]
	if !ok {
		return nil, errors.New("HTTP 404")
	}
	return links, nil
}

type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeDownloader) Fetch(_ context.Context, _ string, filename string, inspect download.InspectFunc) (artifact.Checksums, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filename)
	err := f.fail[filename]
	f.mu.Unlock()
	if err != nil {
		return artifact.Checksums{}, err
	}
	if inspect != nil {
		inspect("/tmp/" + filename)
	}
	return artifact.Checksums{MD5: "md5-" + filename, SHA1: "sha1", SHA256: "sha256", SHA512: "sha512", Size: 7}, nil
}

func (f *fakeDownloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memStore struct {
	mu      sync.Mutex
	records map[string]artifact.Record
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]artifact.Record{}}
}

func (m *memStore) Exists(_ context.Context, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[filename]
	return ok, nil
}

func (m *memStore) Save(_ context.Context, rec artifact.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[rec.Filename] = rec
	return nil
}

func (m *memStore) get(filename string) (artifact.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[filename]
	return rec, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type fakeSink struct {
	name string
	err  error
	puts []artifact.Record
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Put(_ context.Context, rec artifact.Record) error {
	f.puts = append(f.puts, rec)
	return f.err
}

type fakeSubmitter struct {
	records []artifact.Record
	vendors []string
}

func (f *fakeSubmitter) Submit(rec artifact.Record, vendor string, _ *zap.Logger) {
	f.records = append(f.records, rec)
	f.vendors = append(f.vendors, vendor)
}

type fakeIntrospector struct {
	desc  archive.Descriptor
	err   error
	paths []string
}

func (f *fakeIntrospector) Supports(format string) bool {
	return format == artifact.FileTypeTarGz || format == artifact.FileTypeZip
}

func (f *fakeIntrospector) ExtractReleaseDescriptor(_ context.Context, path, _ string) (archive.Descriptor, error) {
	f.paths = append(f.paths, path)
	return f.desc, f.err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Report(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) kinds() []progress.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Kind, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Kind)
	}
	return out
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o600)
}
