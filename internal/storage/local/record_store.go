// Package local implements the canonical filesystem record store: one
// <filename>.json document per artifact inside a vendor directory.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
)

// IndexFilename is the aggregate document written next to the records.
const IndexFilename = "all.json"

// Config captures the parameters for a vendor record store.
type Config struct {
	// BaseDir is the vendor directory, <metadata>/vendor/<vendor>.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// RecordStore reads and writes metadata records in one vendor directory.
type RecordStore struct {
	baseDir string
}

// New creates the vendor directory when missing and checks it is writable.
func New(cfg Config) (*RecordStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &RecordStore{baseDir: cfg.BaseDir}, nil
}

// Dir returns the vendor directory.
func (s *RecordStore) Dir() string { return s.baseDir }

// Exists reports whether a record for filename has been written.
func (s *RecordStore) Exists(_ context.Context, filename string) (bool, error) {
	path, err := s.recordPath(filename)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat record: %w", err)
	}
}

// Save writes rec atomically, fully replacing any previous record.
func (s *RecordStore) Save(_ context.Context, rec artifact.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	path, err := s.recordPath(rec.Filename)
	if err != nil {
		return err
	}
	data, err := rec.Marshal()
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// Load reads the record for filename.
func (s *RecordStore) Load(_ context.Context, filename string) (artifact.Record, error) {
	path, err := s.recordPath(filename)
	if err != nil {
		return artifact.Record{}, err
	}
	return readRecord(path)
}

// Filenames returns the artifact file names that have a record, sorted.
// The aggregate index document is not a record and is skipped.
func (s *RecordStore) Filenames(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read vendor directory: %w", err)
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == IndexFilename || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(out)
	return out, nil
}

// List returns every record in the directory sorted by filename.
func (s *RecordStore) List(ctx context.Context) ([]artifact.Record, error) {
	names, err := s.Filenames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]artifact.Record, 0, len(names))
	for _, name := range names {
		rec, err := readRecord(filepath.Join(s.baseDir, name+".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RecordStore) recordPath(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("filename is required")
	}
	fullPath := filepath.Join(s.baseDir, filename+".json")

	cleanBaseDir := filepath.Clean(s.baseDir)
	if filepath.Dir(filepath.Clean(fullPath)) != cleanBaseDir {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}

func readRecord(path string) (artifact.Record, error) {
	// #nosec G304 -- path is confined to the vendor directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return artifact.Record{}, fmt.Errorf("read record: %w", err)
	}
	var rec artifact.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return artifact.Record{}, fmt.Errorf("decode record %s: %w", filepath.Base(path), err)
	}
	return rec.Normalize(), nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	// #nosec G302 -- metadata documents are published.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
