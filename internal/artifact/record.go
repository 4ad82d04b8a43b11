// Package artifact defines the persisted metadata record for a single JDK
// distribution file and the normalization rules applied while building it.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Release types.
const (
	ReleaseGA = "ga"
	ReleaseEA = "ea"
)

// Image types.
const (
	ImageJDK = "jdk"
	ImageJRE = "jre"
)

// Record is the metadata document persisted for one downloadable artifact.
// Field order is the on-disk key order. (Vendor, Filename) is the unique key.
type Record struct {
	Vendor       string   `json:"vendor"`
	Filename     string   `json:"filename"`
	ReleaseType  string   `json:"release_type"`
	Version      string   `json:"version"`
	JavaVersion  string   `json:"java_version"`
	JVMImpl      string   `json:"jvm_impl"`
	OS           string   `json:"os"`
	Architecture string   `json:"architecture"`
	FileType     string   `json:"file_type"`
	ImageType    string   `json:"image_type"`
	Features     []string `json:"features"`
	URL          string   `json:"url"`
	MD5          string   `json:"md5,omitempty"`
	MD5File      string   `json:"md5_file,omitempty"`
	SHA1         string   `json:"sha1,omitempty"`
	SHA1File     string   `json:"sha1_file,omitempty"`
	SHA256       string   `json:"sha256,omitempty"`
	SHA256File   string   `json:"sha256_file,omitempty"`
	SHA512       string   `json:"sha512,omitempty"`
	SHA512File   string   `json:"sha512_file,omitempty"`
	Size         int64    `json:"size,omitempty"`
}

// Checksums carries the digests and byte count of a downloaded artifact.
type Checksums struct {
	MD5    string
	SHA1   string
	SHA256 string
	SHA512 string
	Size   int64
}

// MetadataFilename returns the record's file name inside its vendor directory.
func (r Record) MetadataFilename() string {
	return r.Filename + ".json"
}

// HasChecksums reports whether every digest field is populated.
func (r Record) HasChecksums() bool {
	return r.MD5 != "" && r.SHA1 != "" && r.SHA256 != "" && r.SHA512 != ""
}

// WithChecksums returns a copy of r carrying the digests, the sidecar file
// names and the size.
func (r Record) WithChecksums(sums Checksums) Record {
	r.MD5 = sums.MD5
	r.MD5File = r.Filename + ".md5"
	r.SHA1 = sums.SHA1
	r.SHA1File = r.Filename + ".sha1"
	r.SHA256 = sums.SHA256
	r.SHA256File = r.Filename + ".sha256"
	r.SHA512 = sums.SHA512
	r.SHA512File = r.Filename + ".sha512"
	r.Size = sums.Size
	return r
}

// Normalize sorts and deduplicates features and replaces a nil set with an
// empty one so it serializes as [].
func (r Record) Normalize() Record {
	seen := make(map[string]struct{}, len(r.Features))
	features := make([]string, 0, len(r.Features))
	for _, f := range r.Features {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		features = append(features, f)
	}
	sort.Strings(features)
	r.Features = features
	return r
}

// Validate checks the identity fields required to persist a record.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Vendor) == "" {
		return fmt.Errorf("record vendor is required")
	}
	if strings.TrimSpace(r.Filename) == "" {
		return fmt.Errorf("record filename is required")
	}
	if strings.ContainsAny(r.Filename, `/\`) {
		return fmt.Errorf("record filename %q must not contain path separators", r.Filename)
	}
	return nil
}

// Marshal encodes the record in its on-disk form: compact JSON in field
// order followed by a newline. URLs keep their query separators literal.
func (r Record) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.Normalize()); err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return buf.Bytes(), nil
}
