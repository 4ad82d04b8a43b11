package scraper

import "fmt"

// Result summarizes one scraper run.
type Result struct {
	ScraperID string
	Vendor    string
	Success   bool
	Processed int64
	Skipped   int64
	Failed    int64
	Err       error
}

func successResult(id, vendor string, processed, skipped, failed int64) Result {
	return Result{
		ScraperID: id,
		Vendor:    vendor,
		Success:   true,
		Processed: processed,
		Skipped:   skipped,
		Failed:    failed,
	}
}

// FailureResult reports a failed run. Item counts are not carried over.
func FailureResult(id, vendor string, err error) Result {
	return Result{ScraperID: id, Vendor: vendor, Err: err}
}

func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("SUCCESS (%d items processed, %d items skipped)", r.Processed, r.Skipped)
	}
	msg := "Unknown error"
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return "FAILED - " + msg
}
