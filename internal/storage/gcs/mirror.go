// Package gcs mirrors artifact records and their checksum sidecars into a
// Google Cloud Storage bucket using the same layout as the local tree.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
	"github.com/JakeFAU/jdkdb-crawler/internal/hash/digest"
)

// Config captures the parameters required to mirror into GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name.
	Prefix string
}

// Mirror uploads records to a configured GCS bucket.
type Mirror struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewClient creates a storage client. Authentication uses Application
// Default Credentials unless opts override it.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return client, nil
}

// New creates a GCS-backed record mirror.
func New(client *storage.Client, cfg Config) (*Mirror, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Name identifies the mirror in logs.
func (m *Mirror) Name() string { return "gcs" }

// RecordObject returns the object name of a record document.
func (m *Mirror) RecordObject(rec artifact.Record) string {
	return m.object("metadata", "vendor", rec.Vendor, rec.MetadataFilename())
}

// SidecarObject returns the object name of one checksum sidecar.
func (m *Mirror) SidecarObject(rec artifact.Record, algo string) string {
	return m.object("checksums", rec.Vendor, rec.Filename+"."+algo)
}

func (m *Mirror) object(parts ...string) string {
	if m.prefix != "" {
		parts = append([]string{m.prefix}, parts...)
	}
	return path.Join(parts...)
}

// Put uploads the record document and, when digests are known, the four
// checksum sidecars.
func (m *Mirror) Put(ctx context.Context, rec artifact.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := rec.Marshal()
	if err != nil {
		return err
	}
	if _, err := m.PutObject(ctx, m.RecordObject(rec), "application/json", bytes.NewReader(data)); err != nil {
		return err
	}
	if !rec.HasChecksums() {
		return nil
	}
	sums := artifact.Checksums{MD5: rec.MD5, SHA1: rec.SHA1, SHA256: rec.SHA256, SHA512: rec.SHA512}
	for _, algo := range digest.Algorithms {
		line := digest.SidecarLine(digest.Value(sums, algo), rec.Filename)
		if _, err := m.PutObject(ctx, m.SidecarObject(rec, algo), "text/plain", strings.NewReader(line)); err != nil {
			return err
		}
	}
	return nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (m *Mirror) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := m.client.Bucket(m.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", m.bucket, name), nil
}
