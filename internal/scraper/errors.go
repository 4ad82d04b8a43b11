package scraper

import "errors"

var (
	// ErrProgressLimit stops a run once LimitProgress new records were written.
	ErrProgressLimit = errors.New("progress limit reached")
	// ErrTooManyFailures stops a run once MaxFailureCount assets failed.
	ErrTooManyFailures = errors.New("too many failures")
)
