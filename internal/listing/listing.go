// Package listing enumerates downloadable assets from the two kinds of
// sources vendors publish: GitHub-style paginated release APIs and plain HTML
// index pages.
package listing

import (
	"net/url"
	"path"
	"time"
)

// Release is one published release with its assets.
type Release struct {
	Tag         string
	Name        string
	Prerelease  bool
	PublishedAt time.Time
	Body        string
	Assets      []Asset
}

// Asset is one downloadable file.
type Asset struct {
	Name string
	URL  string
	Size int64
	// Description is the free text attached to the asset, when the source
	// provides one.
	Description string
}

// FilenameFromURL strips the query string and fragment and returns the last
// path segment.
func FilenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := u.Path
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
