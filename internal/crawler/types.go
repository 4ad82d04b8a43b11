package crawler

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// FetchRequest captures everything needed to fetch a listing URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation. Non-2xx
// responses are returned as values; callers decide whether they are errors.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response carries a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// maxSnippetLen caps the body excerpt carried by HTTP errors.
const maxSnippetLen = 200

// Snippet returns the first line of a trimmed response body, cut at 200
// characters with a trailing "..." when longer.
func Snippet(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	line, _, _ := strings.Cut(trimmed, "\n")
	line = strings.TrimRight(line, "\r")
	runes := []rune(line)
	if len(runes) > maxSnippetLen {
		return string(runes[:maxSnippetLen]) + "..."
	}
	return line
}

// StatusError reports a listing fetch that returned a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Snippet    string
}

// NewStatusError builds a StatusError from a response.
func NewStatusError(resp FetchResponse) *StatusError {
	return &StatusError{URL: resp.URL, StatusCode: resp.StatusCode, Snippet: Snippet(resp.Body)}
}

// Error formats the error as "HTTP <code>: <snippet>" for url.
func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, FormatHTTPError(e.StatusCode, e.Snippet))
}

// FormatHTTPError renders "HTTP <code>" with the snippet appended when present.
func FormatHTTPError(statusCode int, snippet string) string {
	base := fmt.Sprintf("HTTP %d", statusCode)
	if snippet == "" {
		return base
	}
	return base + ": " + snippet
}
