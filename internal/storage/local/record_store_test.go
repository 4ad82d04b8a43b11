// Package local_test tests the filesystem record store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/local"
)

func sampleRecord(filename string) artifact.Record {
	return artifact.Record{
		Vendor:       "acme",
		Filename:     filename,
		ReleaseType:  artifact.ReleaseGA,
		Version:      "1.0",
		JavaVersion:  "1",
		OS:           "linux",
		Architecture: "x86_64",
		FileType:     artifact.FileTypeTarGz,
		ImageType:    artifact.ImageJDK,
		URL:          "https://dl.acme.test/" + filename,
	}
}

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "vendor", "acme")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.Equal(t, dir, store.Dir())
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestSaveExistsLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "foo-1.0-linux-x64.tar.gz")
	require.NoError(t, err)
	assert.False(t, exists)

	rec := sampleRecord("foo-1.0-linux-x64.tar.gz")
	require.NoError(t, store.Save(ctx, rec))

	exists, err = store.Exists(ctx, "foo-1.0-linux-x64.tar.gz")
	require.NoError(t, err)
	assert.True(t, exists)

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(filepath.Join(dir, "foo-1.0-linux-x64.tar.gz.json"))
	require.NoError(t, err)
	want, err := rec.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(raw))

	info, err := os.Stat(filepath.Join(dir, "foo-1.0-linux-x64.tar.gz.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	loaded, err := store.Load(ctx, "foo-1.0-linux-x64.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, rec.Normalize(), loaded)
}

func TestSaveReplacesRecord(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	rec := sampleRecord("foo.zip")
	rec.Features = []string{"debug"}
	require.NoError(t, store.Save(ctx, rec))

	replacement := sampleRecord("foo.zip").WithChecksums(artifact.Checksums{
		MD5: "a", SHA1: "b", SHA256: "c", SHA512: "d", Size: 3,
	})
	require.NoError(t, store.Save(ctx, replacement))

	loaded, err := store.Load(ctx, "foo.zip")
	require.NoError(t, err)
	assert.Empty(t, loaded.Features)
	assert.True(t, loaded.HasChecksums())
}

func TestRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Exists(context.Background(), "../escape.zip")
	assert.ErrorContains(t, err, "path traversal")

	rec := sampleRecord("../escape.zip")
	assert.Error(t, store.Save(context.Background(), rec))
}

func TestList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleRecord("b.zip")))
	require.NoError(t, store.Save(ctx, sampleRecord("a.tar.gz")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, local.IndexFilename), []byte("[]\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.tar.gz", records[0].Filename)
	assert.Equal(t, "b.zip", records[1].Filename)

	names, err := store.Filenames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.tar.gz", "b.zip"}, names)
}

func TestListRejectsCorruptRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.zip.json"), []byte("{"), 0o600))

	_, err = store.List(context.Background())
	assert.ErrorContains(t, err, "decode record bad.zip.json")
}
