// Package index aggregates per-artifact records into the all.json documents
// published next to them.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/local"
)

// Config controls index generation.
type Config struct {
	// MetadataDir is the metadata root holding vendor/<vendor>/ directories.
	MetadataDir string
	// AllowIncomplete keeps records that are missing checksums.
	AllowIncomplete bool
}

// Result reports what one Generate call wrote.
type Result struct {
	Vendors    int
	Successful int
	Failed     int
	Records    int
}

// Generator writes vendor and global indexes.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Generator.
func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.MetadataDir == "" {
		return nil, fmt.Errorf("metadata directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger}, nil
}

func (g *Generator) vendorRoot() string {
	return filepath.Join(g.cfg.MetadataDir, "vendor")
}

// Generate rewrites vendor/<v>/all.json for each named vendor (every vendor
// directory when names is empty) and then the global all.json. Per-vendor
// failures are counted and do not stop the remaining vendors.
func (g *Generator) Generate(ctx context.Context, names []string) (Result, error) {
	root := g.vendorRoot()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return Result{}, fmt.Errorf("vendor directory not found: %s", root)
	}
	if len(names) == 0 {
		all, err := g.vendorDirs()
		if err != nil {
			return Result{}, err
		}
		names = all
	}

	res := Result{Vendors: len(names)}
	for _, name := range names {
		n, err := g.Vendor(ctx, name)
		if err != nil {
			g.logger.Error("vendor index failed", zap.String("vendor", name), zap.Error(err))
			res.Failed++
			continue
		}
		g.logger.Info("vendor index written", zap.String("vendor", name), zap.Int("records", n))
		res.Successful++
	}

	n, err := g.Global(ctx)
	if err != nil {
		g.logger.Error("global index failed", zap.Error(err))
		res.Failed++
		return res, nil
	}
	res.Records = n
	return res, nil
}

// Vendor rewrites the all.json of one vendor and returns its record count.
// A vendor with no eligible records loses any all.json left by an earlier run.
func (g *Generator) Vendor(ctx context.Context, name string) (int, error) {
	dir := filepath.Join(g.vendorRoot(), name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return 0, fmt.Errorf("vendor directory not found: %s", name)
	}
	records, err := g.load(ctx, dir)
	if err != nil {
		return 0, err
	}
	return len(records), write(filepath.Join(dir, local.IndexFilename), records)
}

// Global rewrites <metadata>/all.json from every vendor directory, removing it
// when no vendor has an eligible record.
func (g *Generator) Global(ctx context.Context) (int, error) {
	names, err := g.vendorDirs()
	if err != nil {
		return 0, err
	}
	var records []artifact.Record
	for _, name := range names {
		recs, err := g.load(ctx, filepath.Join(g.vendorRoot(), name))
		if err != nil {
			return 0, fmt.Errorf("vendor %s: %w", name, err)
		}
		records = append(records, recs...)
	}
	return len(records), write(filepath.Join(g.cfg.MetadataDir, local.IndexFilename), records)
}

func (g *Generator) load(ctx context.Context, dir string) ([]artifact.Record, error) {
	store, err := local.New(local.Config{BaseDir: dir})
	if err != nil {
		return nil, err
	}
	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	if g.cfg.AllowIncomplete {
		return records, nil
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.HasChecksums() {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

func (g *Generator) vendorDirs() ([]string, error) {
	entries, err := os.ReadDir(g.vendorRoot())
	if err != nil {
		return nil, fmt.Errorf("read vendor directory: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Encode renders records as the index document: sorted by vendor and
// filename, keys alphabetized, two-space indent and a trailing newline.
func Encode(records []artifact.Record) ([]byte, error) {
	sorted := append([]artifact.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Vendor != sorted[j].Vendor {
			return sorted[i].Vendor < sorted[j].Vendor
		}
		return sorted[i].Filename < sorted[j].Filename
	})

	docs := make([]map[string]json.RawMessage, 0, len(sorted))
	for _, rec := range sorted {
		data, err := rec.Marshal()
		if err != nil {
			return nil, err
		}
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("reshape record: %w", err)
		}
		docs = append(docs, doc)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return buf.Bytes(), nil
}

func write(path string, records []artifact.Record) error {
	if len(records) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale index: %w", err)
		}
		return nil
	}
	data, err := Encode(records)
	if err != nil {
		return err
	}
	return local.WriteFileAtomic(path, data)
}
