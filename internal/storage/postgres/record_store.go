// Package postgres mirrors artifact records into a Postgres table keyed by
// (vendor, filename).
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
)

const defaultTable = "jdk_artifacts"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for artifact rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts artifact records into Postgres.
type RecordStore struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed RecordStore using the provided config.
func New(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Name identifies the mirror in logs.
func (s *RecordStore) Name() string { return "postgres" }

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the artifact table when it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	vendor       TEXT NOT NULL,
	filename     TEXT NOT NULL,
	release_type TEXT NOT NULL,
	version      TEXT NOT NULL,
	java_version TEXT NOT NULL,
	jvm_impl     TEXT NOT NULL,
	os           TEXT NOT NULL,
	architecture TEXT NOT NULL,
	file_type    TEXT NOT NULL,
	image_type   TEXT NOT NULL,
	features     JSONB NOT NULL,
	url          TEXT NOT NULL,
	md5          TEXT,
	sha1         TEXT,
	sha256       TEXT,
	sha512       TEXT,
	size         BIGINT,
	document     JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (vendor, filename)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Put upserts rec. An existing row is replaced in full.
func (s *RecordStore) Put(ctx context.Context, rec artifact.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	rec = rec.Normalize()
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	document, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	vendor,
	filename,
	release_type,
	version,
	java_version,
	jvm_impl,
	os,
	architecture,
	file_type,
	image_type,
	features,
	url,
	md5,
	sha1,
	sha256,
	sha512,
	size,
	document
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (vendor, filename) DO UPDATE SET
	release_type = EXCLUDED.release_type,
	version = EXCLUDED.version,
	java_version = EXCLUDED.java_version,
	jvm_impl = EXCLUDED.jvm_impl,
	os = EXCLUDED.os,
	architecture = EXCLUDED.architecture,
	file_type = EXCLUDED.file_type,
	image_type = EXCLUDED.image_type,
	features = EXCLUDED.features,
	url = EXCLUDED.url,
	md5 = EXCLUDED.md5,
	sha1 = EXCLUDED.sha1,
	sha256 = EXCLUDED.sha256,
	sha512 = EXCLUDED.sha512,
	size = EXCLUDED.size,
	document = EXCLUDED.document,
	updated_at = now()`, s.table)

	args := []any{
		rec.Vendor,
		rec.Filename,
		rec.ReleaseType,
		rec.Version,
		rec.JavaVersion,
		rec.JVMImpl,
		rec.OS,
		rec.Architecture,
		rec.FileType,
		rec.ImageType,
		features,
		rec.URL,
		nullable(rec.MD5),
		nullable(rec.SHA1),
		nullable(rec.SHA256),
		nullable(rec.SHA512),
		nullableSize(rec.Size),
		document,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func nullableSize(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
