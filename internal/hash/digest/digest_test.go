package digest

import (
	"bytes"
	"crypto/md5"  // #nosec G501
	"crypto/sha1" // #nosec G505
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

// TestHasherMatchesCryptoPackages checks each digest against a direct computation.
func TestHasherMatchesCryptoPackages(t *testing.T) {
	t.Parallel()

	payload := []byte(strings.Repeat("jdk artifact bytes ", 4096))
	got, err := New().HashReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("HashReader() error = %v", err)
	}

	md5Sum := md5.Sum(payload)
	sha1Sum := sha1.Sum(payload)
	sha256Sum := sha256.Sum256(payload)
	sha512Sum := sha512.Sum512(payload)

	if got.MD5 != hex.EncodeToString(md5Sum[:]) {
		t.Fatalf("md5 mismatch: %s", got.MD5)
	}
	if got.SHA1 != hex.EncodeToString(sha1Sum[:]) {
		t.Fatalf("sha1 mismatch: %s", got.SHA1)
	}
	if got.SHA256 != hex.EncodeToString(sha256Sum[:]) {
		t.Fatalf("sha256 mismatch: %s", got.SHA256)
	}
	if got.SHA512 != hex.EncodeToString(sha512Sum[:]) {
		t.Fatalf("sha512 mismatch: %s", got.SHA512)
	}
	if got.Size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), got.Size)
	}
}

// TestHasherWriterMatchesReader ensures incremental writes and a single
// stream produce the same fingerprint.
func TestHasherWriterMatchesReader(t *testing.T) {
	t.Parallel()

	h := New()
	w := h.NewWriter()
	for _, chunk := range []string{"hello", " ", "world"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	fromWriter := w.Sum()
	if fromWriter.SHA256 != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("unexpected sha256 %s", fromWriter.SHA256)
	}
	fromReader, err := h.HashReader(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("HashReader() error = %v", err)
	}
	if fromReader != fromWriter {
		t.Fatalf("expected identical checksums, got %+v vs %+v", fromReader, fromWriter)
	}
	if _, err := h.HashReader(iotest.ErrReader(errors.New("reset"))); err == nil {
		t.Fatal("expected error for failing reader")
	}
}

func TestValueAndSidecarLine(t *testing.T) {
	t.Parallel()

	sums, err := New().HashReader(strings.NewReader("x"))
	if err != nil {
		t.Fatalf("HashReader() error = %v", err)
	}
	for _, algo := range Algorithms {
		if Value(sums, algo) == "" {
			t.Fatalf("expected digest for %s", algo)
		}
	}
	if Value(sums, "crc32") != "" {
		t.Fatal("expected empty digest for unknown algorithm")
	}
	if got := SidecarLine("abc", "jdk.zip"); got != "abc  jdk.zip\n" {
		t.Fatalf("unexpected sidecar line %q", got)
	}
}
