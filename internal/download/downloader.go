// Package download streams artifacts to a private temp file, fingerprints
// them in the same pass and writes the checksum sidecar files.
package download

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/crawler"
	"github.com/JakeFAU/jdkdb-crawler/internal/hash/digest"
)

const (
	defaultConnectTimeout = 30 * time.Second
	errorBodyLimit        = 4 << 10
)

// Config controls where sidecars and temp files go and how the client behaves.
type Config struct {
	// ChecksumDir receives the <filename>.<algo> sidecars.
	ChecksumDir string
	// TempDir hosts the per-call temp files (defaults to os.TempDir()).
	TempDir        string
	ConnectTimeout time.Duration
	UserAgent      string
}

// InspectFunc is handed the path of the fully written temp file before it is
// removed. It is the only window in which the artifact exists on disk.
type InspectFunc func(path string)

// DownloadError reports a non-2xx download response.
type DownloadError struct {
	URL        string
	StatusCode int
	Snippet    string
}

// Error implements error.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %s", e.URL, crawler.FormatHTTPError(e.StatusCode, e.Snippet))
}

// Downloader fetches artifacts and fingerprints them.
type Downloader struct {
	cfg    Config
	client *http.Client
	hasher *digest.Hasher
}

// New builds a Downloader. A nil client gets one from NewHTTPClient.
func New(cfg Config, client *http.Client) (*Downloader, error) {
	if strings.TrimSpace(cfg.ChecksumDir) == "" {
		return nil, fmt.Errorf("checksum directory is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if client == nil {
		client = NewHTTPClient(cfg.ConnectTimeout)
	}
	return &Downloader{cfg: cfg, client: client, hasher: digest.New()}, nil
}

// WithChecksumDir returns a Downloader sharing the HTTP client but writing
// sidecars to dir.
func (d *Downloader) WithChecksumDir(dir string) *Downloader {
	clone := *d
	clone.cfg.ChecksumDir = dir
	return &clone
}

// ChecksumDir returns the sidecar directory.
func (d *Downloader) ChecksumDir() string {
	return d.cfg.ChecksumDir
}

// NewHTTPClient returns a client with a connect timeout and no overall
// deadline, since JDK archives can take minutes to transfer.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: connectTimeout,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Fetch downloads url into a unique temp file, computes all four digests in
// one pass, invokes inspect while the file still exists and writes the
// sidecars. The temp file is removed on every path.
func (d *Downloader) Fetch(ctx context.Context, url, filename string, inspect InspectFunc) (artifact.Checksums, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return artifact.Checksums{}, fmt.Errorf("invalid artifact filename %q", filename)
	}
	tmp, err := os.CreateTemp(d.cfg.TempDir, "jdk-metadata-*-"+filename)
	if err != nil {
		return artifact.Checksums{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	sums, err := d.stream(ctx, url, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close temp file: %w", closeErr)
	}
	if err != nil {
		return artifact.Checksums{}, err
	}

	if inspect != nil {
		inspect(tmpPath)
	}

	if err := WriteSidecars(d.cfg.ChecksumDir, filename, sums); err != nil {
		return artifact.Checksums{}, err
	}
	return sums, nil
}

func (d *Downloader) stream(ctx context.Context, url string, dst io.Writer) (artifact.Checksums, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return artifact.Checksums{}, fmt.Errorf("build request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return artifact.Checksums{}, fmt.Errorf("download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return artifact.Checksums{}, &DownloadError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Snippet:    crawler.Snippet(body),
		}
	}

	sums, err := d.hasher.HashReader(io.TeeReader(resp.Body, dst))
	if err != nil {
		return artifact.Checksums{}, fmt.Errorf("stream %s: %w", url, err)
	}
	return sums, nil
}

// WriteSidecars writes <dir>/<filename>.<algo> for every digest, each
// holding "<hex>  <filename>\n".
func WriteSidecars(dir, filename string, sums artifact.Checksums) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checksum directory: %w", err)
	}
	for _, algo := range digest.Algorithms {
		path := filepath.Join(dir, filename+"."+algo)
		line := digest.SidecarLine(digest.Value(sums, algo), filename)
		// #nosec G306 -- sidecars are published alongside the metadata.
		if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
			return fmt.Errorf("write %s sidecar: %w", algo, err)
		}
	}
	return nil
}
