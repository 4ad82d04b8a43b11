// Package digest computes the MD5, SHA-1, SHA-256 and SHA-512 fingerprints of
// an artifact in a single pass over its bytes.
package digest

import (
	"crypto/md5"  // #nosec G501 -- MD5 is published as a fingerprint, not used for security.
	"crypto/sha1" // #nosec G505 -- SHA-1 is published as a fingerprint, not used for security.
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
)

// Algorithms lists the supported digest names in sidecar order.
var Algorithms = []string{"md5", "sha1", "sha256", "sha512"}

// Hasher implements the multi-digest fingerprint used for artifact records.
type Hasher struct{}

// New returns a multi-digest hasher.
func New() *Hasher {
	return &Hasher{}
}

// Writer accumulates all digests while bytes are written through it.
type Writer struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	sha512 hash.Hash
	multi  io.Writer
	size   int64
}

// NewWriter returns a Writer ready to receive artifact bytes.
func (h *Hasher) NewWriter() *Writer {
	w := &Writer{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
		sha512: sha512.New(),
	}
	w.multi = io.MultiWriter(w.md5, w.sha1, w.sha256, w.sha512)
	return w
}

// Write feeds p to every digest.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.multi.Write(p)
	w.size += int64(n)
	return n, err
}

// Sum returns the hex digests and total byte count written so far.
func (w *Writer) Sum() artifact.Checksums {
	return artifact.Checksums{
		MD5:    hex.EncodeToString(w.md5.Sum(nil)),
		SHA1:   hex.EncodeToString(w.sha1.Sum(nil)),
		SHA256: hex.EncodeToString(w.sha256.Sum(nil)),
		SHA512: hex.EncodeToString(w.sha512.Sum(nil)),
		Size:   w.size,
	}
}

// HashReader consumes r and fingerprints its bytes.
func (h *Hasher) HashReader(r io.Reader) (artifact.Checksums, error) {
	w := h.NewWriter()
	if _, err := io.Copy(w, r); err != nil {
		return artifact.Checksums{}, fmt.Errorf("hash stream: %w", err)
	}
	return w.Sum(), nil
}

// Value returns the hex digest for the named algorithm, or "" when unknown.
func Value(sums artifact.Checksums, algorithm string) string {
	switch algorithm {
	case "md5":
		return sums.MD5
	case "sha1":
		return sums.SHA1
	case "sha256":
		return sums.SHA256
	case "sha512":
		return sums.SHA512
	default:
		return ""
	}
}

// SidecarLine renders the "<hex>  <filename>\n" content of a checksum sidecar.
func SidecarLine(hexDigest, filename string) string {
	return hexDigest + "  " + filename + "\n"
}
