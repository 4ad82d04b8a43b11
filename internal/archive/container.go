package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ulikunitz/xz"
)

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionXz
	compressionBzip2
)

const releaseName = "release"

// releaseDepth reports whether name denotes a release file and how many
// directories deep it sits.
func releaseDepth(name string) (int, bool) {
	clean := strings.TrimPrefix(path.Clean(strings.ReplaceAll(name, `\`, "/")), "./")
	clean = strings.TrimPrefix(clean, "/")
	if path.Base(clean) != releaseName {
		return 0, false
	}
	return strings.Count(clean, "/"), true
}

func fromZip(archivePath string) (Descriptor, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer func() { _ = r.Close() }()

	var (
		best      *zip.File
		bestDepth int
	)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		depth, ok := releaseDepth(f.Name)
		if !ok {
			continue
		}
		if best == nil || depth < bestDepth {
			best, bestDepth = f, depth
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	rc, err := best.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", best.Name, err)
	}
	defer func() { _ = rc.Close() }()
	return ParseDescriptor(rc)
}

func fromTarFile(archivePath string, c compression) (Descriptor, error) {
	f, err := os.Open(archivePath) // #nosec G304 -- path is the downloader's temp file.
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()
	return fromTarStream(f, c)
}

// fromTarStream scans a (possibly compressed) tar stream and parses the
// first regular file named release.
func fromTarStream(r io.Reader, c compression) (Descriptor, error) {
	stream, closeFn, err := decompress(r, c)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if _, ok := releaseDepth(hdr.Name); ok {
			return ParseDescriptor(tr)
		}
	}
}

func decompress(r io.Reader, c compression) (io.Reader, func(), error) {
	noop := func() {}
	switch c {
	case compressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("open gzip stream: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case compressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, fmt.Errorf("open xz stream: %w", err)
		}
		return xr, noop, nil
	case compressionBzip2:
		return bzip2.NewReader(r), noop, nil
	default:
		return r, noop, nil
	}
}
