package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNotFound means no release file was found, or an extraction tool was
	// missing or failed.
	ErrNotFound = errors.New("release descriptor not found")
	// ErrUnsupported means the format cannot be introspected on this host.
	ErrUnsupported = errors.New("archive format not supported for introspection")
)

// Introspector extracts release descriptors from downloaded artifacts.
type Introspector struct {
	runner  CommandRunner
	goos    string
	tempDir string
	logger  *zap.Logger
}

// Option customizes an Introspector.
type Option func(*Introspector)

// WithRunner replaces the external command runner.
func WithRunner(r CommandRunner) Option {
	return func(i *Introspector) {
		i.runner = r
	}
}

// WithGOOS overrides the host operating system used for strategy selection.
func WithGOOS(goos string) Option {
	return func(i *Introspector) {
		i.goos = goos
	}
}

// WithTempDir sets the parent directory for scratch directories.
func WithTempDir(dir string) Option {
	return func(i *Introspector) {
		i.tempDir = dir
	}
}

// WithLogger attaches a logger for tool failures.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Introspector) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New builds an Introspector that shells out with os/exec.
func New(opts ...Option) *Introspector {
	i := &Introspector{
		runner: ExecRunner{},
		goos:   runtime.GOOS,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Supports reports whether format has an introspection strategy on this host.
func (i *Introspector) Supports(format string) bool {
	switch normalizeFormat(format) {
	case "zip", "tar.gz", "tgz", "apk", "tar.xz", "txz", "rpm", "deb", "msi":
		return true
	case "pkg":
		return i.goos == "darwin"
	default:
		return false
	}
}

// ExtractReleaseDescriptor returns the parsed release file of the archive at
// path. It returns ErrNotFound or ErrUnsupported when no descriptor can be
// produced; other errors indicate an unreadable archive.
func (i *Introspector) ExtractReleaseDescriptor(ctx context.Context, path, format string) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch normalizeFormat(format) {
	case "zip":
		return fromZip(path)
	case "tar.gz", "tgz", "apk":
		return fromTarFile(path, compressionGzip)
	case "tar.xz", "txz":
		return fromTarFile(path, compressionXz)
	case "rpm":
		return i.fromRPM(ctx, path)
	case "deb":
		return i.fromDeb(ctx, path)
	case "msi":
		return i.fromMSI(ctx, path)
	case "pkg":
		if i.goos != "darwin" {
			return nil, fmt.Errorf("pkg on %s: %w", i.goos, ErrUnsupported)
		}
		return i.fromPkg(ctx, path)
	default:
		return nil, fmt.Errorf("format %q: %w", format, ErrUnsupported)
	}
}

func normalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

// withScratch runs fn inside a fresh scratch directory that is removed on
// every exit path.
func (i *Introspector) withScratch(prefix string, fn func(dir string) (Descriptor, error)) (Descriptor, error) {
	dir, err := os.MkdirTemp(i.tempDir, prefix)
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			i.logger.Warn("remove scratch directory failed", zap.String("dir", dir), zap.Error(rmErr))
		}
	}()
	return fn(dir)
}
