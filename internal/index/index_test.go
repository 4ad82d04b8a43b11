package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/storage/local"
)

func record(vendor, filename string, complete bool) artifact.Record {
	rec := artifact.Record{
		Vendor:       vendor,
		Filename:     filename,
		ReleaseType:  artifact.ReleaseGA,
		Version:      "21.0.2",
		JavaVersion:  "21",
		OS:           "linux",
		Architecture: "x86_64",
		FileType:     artifact.FileTypeTarGz,
		ImageType:    artifact.ImageJDK,
		URL:          "https://example.com/" + filename,
	}
	if complete {
		rec = rec.WithChecksums(artifact.Checksums{MD5: "m", SHA1: "s1", SHA256: "s256", SHA512: "s512", Size: 9})
	}
	return rec
}

func seed(t *testing.T, root string, recs ...artifact.Record) {
	t.Helper()
	for _, rec := range recs {
		store, err := local.New(local.Config{BaseDir: filepath.Join(root, "vendor", rec.Vendor)})
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), rec))
	}
}

func readIndex(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "]\n"))
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestEncodeFormat(t *testing.T) {
	t.Parallel()

	data, err := Encode([]artifact.Record{
		record("zulu", "b.tar.gz", true),
		record("acme", "z.tar.gz", true),
		record("acme", "a.tar.gz", true),
	})
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "[\n  {\n    \"architecture\": \"x86_64\",\n"))
	assert.True(t, strings.HasSuffix(text, "  }\n]\n"))
	assert.Less(t, strings.Index(text, `"a.tar.gz"`), strings.Index(text, `"z.tar.gz"`))
	assert.Less(t, strings.Index(text, `"z.tar.gz"`), strings.Index(text, `"b.tar.gz"`))
	assert.Contains(t, text, `"features": []`)
	assert.Less(t, strings.Index(text, `"vendor"`), strings.Index(text, `"version"`))
}

func TestGenerateWritesVendorAndGlobalIndexes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	seed(t, root,
		record("acme", "b.tar.gz", true),
		record("acme", "a.tar.gz", true),
		record("acme", "partial.tar.gz", false),
		record("zulu", "z.tar.gz", true),
	)

	gen, err := New(Config{MetadataDir: root}, nil)
	require.NoError(t, err)
	res, err := gen.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Vendors: 2, Successful: 2, Records: 3}, res)

	acme := readIndex(t, filepath.Join(root, "vendor", "acme", local.IndexFilename))
	require.Len(t, acme, 2)
	assert.Equal(t, "a.tar.gz", acme[0]["filename"])

	global := readIndex(t, filepath.Join(root, local.IndexFilename))
	require.Len(t, global, 3)
	assert.Equal(t, "zulu", global[2]["vendor"])

	// Regenerating ignores the all.json files written by the previous pass.
	res, err = gen.Generate(context.Background(), []string{"acme"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Records)
	require.Len(t, readIndex(t, filepath.Join(root, "vendor", "acme", local.IndexFilename)), 2)
}

func TestGenerateAllowIncomplete(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	seed(t, root, record("acme", "a.tar.gz", true), record("acme", "partial.tar.gz", false))

	gen, err := New(Config{MetadataDir: root, AllowIncomplete: true}, nil)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), nil)
	require.NoError(t, err)

	acme := readIndex(t, filepath.Join(root, "vendor", "acme", local.IndexFilename))
	require.Len(t, acme, 2)
	_, hasSHA := acme[1]["sha256"]
	assert.False(t, hasSHA)
}

func TestGenerateCountsMissingVendor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	seed(t, root, record("acme", "a.tar.gz", true))

	gen, err := New(Config{MetadataDir: root}, nil)
	require.NoError(t, err)
	res, err := gen.Generate(context.Background(), []string{"acme", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 1, res.Failed)
}

func TestGenerateSkipsEmptyVendor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	seed(t, root, record("acme", "partial.tar.gz", false))

	gen, err := New(Config{MetadataDir: root}, nil)
	require.NoError(t, err)
	n, err := gen.Vendor(context.Background(), "acme")
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(filepath.Join(root, "vendor", "acme", local.IndexFilename))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateRemovesStaleIndexes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	seed(t, root, record("acme", "a.tar.gz", true))
	gen, err := New(Config{MetadataDir: root}, nil)
	require.NoError(t, err)

	res, err := gen.Generate(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Records)
	vendorIndex := filepath.Join(root, "vendor", "acme", local.IndexFilename)
	globalIndex := filepath.Join(root, local.IndexFilename)
	require.FileExists(t, vendorIndex)
	require.FileExists(t, globalIndex)

	seed(t, root, record("acme", "a.tar.gz", false))
	res, err = gen.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Records)
	assert.Zero(t, res.Failed)
	assert.NoFileExists(t, vendorIndex)
	assert.NoFileExists(t, globalIndex)
}

func TestEncodeKeepsURLQueryLiteral(t *testing.T) {
	t.Parallel()

	rec := record("acme", "a.tar.gz", true)
	rec.URL = "https://dl.test/get?file=a.tar.gz&arch=x64"
	data, err := Encode([]artifact.Record{rec})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"url": "https://dl.test/get?file=a.tar.gz&arch=x64"`)
	assert.NotContains(t, string(data), `\u0026`)
}

func TestGenerateRequiresVendorRoot(t *testing.T) {
	t.Parallel()

	gen, err := New(Config{MetadataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), nil)
	require.ErrorContains(t, err, "vendor directory not found")

	_, err = New(Config{}, nil)
	require.Error(t, err)
}
