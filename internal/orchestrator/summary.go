package orchestrator

import (
	"sort"
	"time"

	"github.com/JakeFAU/jdkdb-crawler/internal/scraper"
)

// Summary aggregates the results of one run.
type Summary struct {
	RunID          string
	Results        []scraper.Result
	Successful     int
	Failed         int
	TotalProcessed int64
	TotalSkipped   int64
	Duration       time.Duration
}

func newSummary(runID string, results []scraper.Result, d time.Duration) Summary {
	sorted := append([]scraper.Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ScraperID < sorted[j].ScraperID })
	s := Summary{RunID: runID, Results: sorted, Duration: d}
	for _, r := range sorted {
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
		s.TotalProcessed += r.Processed
		s.TotalSkipped += r.Skipped
	}
	return s
}

// ExitCode is 1 when any scraper failed.
func (s Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// Vendors returns the distinct vendor names touched by the run.
func (s Summary) Vendors() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range s.Results {
		if _, ok := seen[r.Vendor]; ok {
			continue
		}
		seen[r.Vendor] = struct{}{}
		out = append(out, r.Vendor)
	}
	sort.Strings(out)
	return out
}
