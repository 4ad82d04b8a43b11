package archive

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// CommandRunner abstracts the extraction tools so strategies can be tested
// without them installed.
type CommandRunner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct{}

// LookPath implements CommandRunner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run implements CommandRunner. Combined output is attached to failures.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- tool names are fixed, args are local paths.
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(out.Bytes()))
	}
	return nil
}

// requireTools fails with ErrNotFound when any tool is missing from PATH.
func (i *Introspector) requireTools(tools ...string) error {
	for _, tool := range tools {
		if _, err := i.runner.LookPath(tool); err != nil {
			i.logger.Warn("extraction tool not available", zap.String("tool", tool), zap.Error(err))
			return fmt.Errorf("%s not available: %w", tool, ErrNotFound)
		}
	}
	return nil
}

func (i *Introspector) run(ctx context.Context, dir, name string, args ...string) error {
	if err := i.runner.Run(ctx, dir, name, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.logger.Warn("extraction tool failed", zap.String("tool", name), zap.Error(err))
		return fmt.Errorf("%s failed: %w", name, ErrNotFound)
	}
	return nil
}

func (i *Introspector) fromRPM(ctx context.Context, archivePath string) (Descriptor, error) {
	if err := i.requireTools("sh", "rpm2cpio", "cpio"); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	return i.withScratch("jdk-rpm-extract-", func(dir string) (Descriptor, error) {
		if err := i.run(ctx, dir, "sh", "-c", `rpm2cpio "$1" | cpio -idm 2>/dev/null`, "sh", abs); err != nil {
			return nil, err
		}
		return parseFound(dir)
	})
}

// debDataArchives lists the nested payload names in preference order.
var debDataArchives = []struct {
	name string
	c    compression
}{
	{"data.tar.xz", compressionXz},
	{"data.tar.gz", compressionGzip},
	{"data.tar.bz2", compressionBzip2},
	{"data.tar", compressionNone},
}

func (i *Introspector) fromDeb(ctx context.Context, archivePath string) (Descriptor, error) {
	if err := i.requireTools("ar"); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	return i.withScratch("jdk-deb-extract-", func(dir string) (Descriptor, error) {
		if err := i.run(ctx, dir, "ar", "x", abs); err != nil {
			return nil, err
		}
		for _, candidate := range debDataArchives {
			p := filepath.Join(dir, candidate.name)
			if _, statErr := os.Stat(p); statErr != nil {
				continue
			}
			return fromTarFile(p, candidate.c)
		}
		return nil, fmt.Errorf("no data.tar payload: %w", ErrNotFound)
	})
}

func (i *Introspector) fromMSI(ctx context.Context, archivePath string) (Descriptor, error) {
	if err := i.requireTools("msiextract"); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	return i.withScratch("jdk-msi-extract-", func(dir string) (Descriptor, error) {
		if err := i.run(ctx, dir, "msiextract", "-C", dir, abs); err != nil {
			return nil, err
		}
		return parseFound(dir)
	})
}

func (i *Introspector) fromPkg(ctx context.Context, archivePath string) (Descriptor, error) {
	if err := i.requireTools("pkgutil"); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	return i.withScratch("jdk-pkg-extract-", func(dir string) (Descriptor, error) {
		// pkgutil refuses to expand into an existing directory.
		expanded := filepath.Join(dir, "pkg-expanded")
		if err := i.run(ctx, dir, "pkgutil", "--expand-full", abs, expanded); err != nil {
			return nil, err
		}
		return parseFound(expanded)
	})
}

// findRelease walks root and returns the shallowest regular file named
// release.
func findRelease(root string) (string, error) {
	var (
		best      string
		bestDepth = -1
	)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || d.Name() != releaseName {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		depth, _ := releaseDepth(filepath.ToSlash(rel))
		if bestDepth < 0 || depth < bestDepth {
			best, bestDepth = p, depth
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search extracted files: %w", err)
	}
	if best == "" {
		return "", ErrNotFound
	}
	return best, nil
}

func parseFound(root string) (Descriptor, error) {
	p, err := findRelease(root)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p) // #nosec G304 -- path found under our scratch directory.
	if err != nil {
		return nil, fmt.Errorf("open release file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseDescriptor(f)
}
