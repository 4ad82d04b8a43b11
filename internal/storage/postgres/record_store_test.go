package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
)

func TestPutUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "artifacts")
	require.NoError(t, err)
	require.Equal(t, "postgres", store.Name())

	rec := artifact.Record{
		Vendor:       "acme",
		Filename:     "foo-1.0-linux-x64.tar.gz",
		ReleaseType:  artifact.ReleaseGA,
		Version:      "1.0",
		JavaVersion:  "1",
		JVMImpl:      "hotspot",
		OS:           "linux",
		Architecture: "x86_64",
		FileType:     artifact.FileTypeTarGz,
		ImageType:    artifact.ImageJDK,
		Features:     []string{"musl", "debug"},
		URL:          "https://dl.acme.test/foo-1.0-linux-x64.tar.gz",
	}.WithChecksums(artifact.Checksums{MD5: "m", SHA1: "s1", SHA256: "s256", SHA512: "s512", Size: 42})

	md5, sha1, sha256, sha512 := "m", "s1", "s256", "s512"
	size := int64(42)
	document, err := jsonOf(rec.Normalize())
	require.NoError(t, err)

	mock.ExpectExec(`(?s)INSERT INTO artifacts\s.*\sON CONFLICT \(vendor, filename\) DO UPDATE SET`).
		WithArgs(
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
			[]byte(`["debug","musl"]`),
			rec.URL,
			&md5,
			&sha1,
			&sha256,
			&sha512,
			&size,
			document,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutWithoutChecksumsWritesNulls(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	rec := artifact.Record{Vendor: "jetbrains", Filename: "jbr.tar.gz"}
	var nilString *string
	var nilSize *int64
	mock.ExpectExec("INSERT INTO jdk_artifacts").
		WithArgs(
			"jetbrains", "jbr.tar.gz", "", "", "", "", "", "", "", "",
			[]byte(`[]`), "",
			nilString, nilString, nilString, nilString, nilSize,
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "artifacts")
	require.NoError(t, err)

	args := make([]any, 18)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO artifacts").WithArgs(args...).WillReturnError(errors.New("connection reset"))
	err = store.Put(context.Background(), artifact.Record{Vendor: "acme", Filename: "a.zip"})
	require.ErrorContains(t, err, "upsert artifact: connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "artifacts")
	require.NoError(t, err)
	require.Error(t, store.Put(context.Background(), artifact.Record{Filename: "a.zip"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "artifacts")
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS artifacts`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstructorsValidateInput(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "artifacts")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "artifacts; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")

	_, err = New(context.Background(), Config{})
	require.ErrorContains(t, err, "postgres.dsn is required")
	_, err = New(context.Background(), Config{DSN: "postgres://localhost/db", Table: "bad-name"})
	require.ErrorContains(t, err, "invalid table name")
}

func TestCloseIsNilSafe(t *testing.T) {
	t.Parallel()

	var store *RecordStore
	store.Close()
}

func jsonOf(rec artifact.Record) ([]byte, error) {
	return json.Marshal(rec)
}
