package downloadmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/logging"
	"github.com/JakeFAU/jdkdb-crawler/internal/scraper"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/local"
)

// BackfillStats summarizes a scan of existing records.
type BackfillStats struct {
	Scanned  int
	Complete int
	Missing  int
	Vendors  []string
}

// BackfillConfig selects what Backfill scans.
type BackfillConfig struct {
	// MetadataDir is the metadata root holding vendor/<vendor>/ directories.
	MetadataDir string
	// Vendors restricts the scan. Empty means every vendor directory.
	Vendors []string
	// LimitProgress caps submissions per vendor when > 0.
	LimitProgress int
}

// Backfill submits every record that has a URL but is missing a digest.
// Unreadable records and missing vendor directories are logged and skipped.
func Backfill(ctx context.Context, cfg BackfillConfig, sub scraper.Submitter, logger *zap.Logger) (BackfillStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := filepath.Join(cfg.MetadataDir, "vendor")
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return BackfillStats{}, fmt.Errorf("vendor directory not found: %s", root)
	}

	names := cfg.Vendors
	if len(names) == 0 {
		names, err = vendorDirs(root)
		if err != nil {
			return BackfillStats{}, err
		}
	}

	var stats BackfillStats
	for _, vendor := range names {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		vlog := logging.ForScraper(logger, vendor, "download")
		dir := filepath.Join(root, vendor)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			logger.Warn("vendor directory not found", zap.String("vendor", vendor))
			continue
		}
		store, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			logger.Warn("open vendor store", zap.String("vendor", vendor), zap.Error(err))
			continue
		}
		filenames, err := store.Filenames(ctx)
		if err != nil {
			logger.Warn("list vendor records", zap.String("vendor", vendor), zap.Error(err))
			continue
		}
		if len(filenames) > 0 {
			stats.Vendors = append(stats.Vendors, vendor)
		}
		stats.Scanned += len(filenames)

		submitted := 0
		for _, name := range filenames {
			rec, err := store.Load(ctx, name)
			if err != nil {
				vlog.Warn("skipping unreadable record", zap.String("filename", name), zap.Error(err))
				continue
			}
			if rec.URL == "" || rec.HasChecksums() {
				stats.Complete++
				continue
			}
			sub.Submit(rec, vendor, vlog)
			stats.Missing++
			submitted++
			if cfg.LimitProgress > 0 && submitted >= cfg.LimitProgress {
				vlog.Info("reached progress limit, skipping remaining records",
					zap.Int("limit", cfg.LimitProgress))
				break
			}
		}
	}
	return stats, nil
}

func vendorDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
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
