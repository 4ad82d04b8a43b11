// Package vendors holds the registry of scrapers: which vendor each one writes
// into, where its listings live and how asset file names map onto record
// fields.
package vendors

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vendors.yaml
var registryYAML []byte

// Source kinds.
const (
	SourceGitHub = "github"
	SourceHTML   = "html"
)

// ErrUnknownScraper is returned when a requested scraper id is not registered.
var ErrUnknownScraper = errors.New("unknown scraper")

// FeatureRule adds Feature when Contains occurs in the asset file name or
// description.
type FeatureRule struct {
	Contains string `yaml:"contains"`
	Feature  string `yaml:"feature"`
}

// Vendor is one scraper definition.
type Vendor struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"vendor"`
	Source            string            `yaml:"source"`
	Org               string            `yaml:"org"`
	Repos             []string          `yaml:"repos"`
	IndexURLs         []string          `yaml:"index_urls"`
	LinkPattern       string            `yaml:"link_pattern"`
	TagPattern        string            `yaml:"tag_pattern"`
	FilenamePatterns  []string          `yaml:"filename_patterns"`
	VersionFormat     string            `yaml:"version_format"`
	JavaVersionFormat string            `yaml:"java_version_format"`
	VersionDots       bool              `yaml:"version_dots"`
	Defaults          map[string]string `yaml:"defaults"`
	JVMImpl           string            `yaml:"jvm_impl"`
	ReleaseType       string            `yaml:"release_type"`
	PrereleaseOnly    bool              `yaml:"prerelease_only"`
	Features          []string          `yaml:"features"`
	FeatureRules      []FeatureRule     `yaml:"feature_rules"`
	Exclude           []string          `yaml:"exclude"`
	Introspect        bool              `yaml:"introspect"`
	DeferChecksums    bool              `yaml:"defer_checksums"`
	BodyLinks         bool              `yaml:"body_links"`

	link     *regexp.Regexp
	tag      *regexp.Regexp
	patterns []*regexp.Regexp
}

type registryFile struct {
	Scrapers []*Vendor `yaml:"scrapers"`
}

// Registry indexes vendors by scraper id.
type Registry struct {
	byID map[string]*Vendor
	ids  []string
}

// Default parses the embedded registry.
func Default() (*Registry, error) {
	return Parse(registryYAML)
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode vendor registry: %w", err)
	}
	reg := &Registry{byID: make(map[string]*Vendor, len(file.Scrapers))}
	for _, v := range file.Scrapers {
		if err := v.compile(); err != nil {
			return nil, err
		}
		if _, dup := reg.byID[v.ID]; dup {
			return nil, fmt.Errorf("vendor registry: duplicate scraper id %q", v.ID)
		}
		reg.byID[v.ID] = v
		reg.ids = append(reg.ids, v.ID)
	}
	sort.Strings(reg.ids)
	return reg, nil
}

// IDs returns every scraper id in sorted order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Get returns the vendor registered under id.
func (r *Registry) Get(id string) (*Vendor, error) {
	v, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScraper, id)
	}
	return v, nil
}

// Select resolves ids, or every registered scraper when ids is empty.
func (r *Registry) Select(ids []string) ([]*Vendor, error) {
	if len(ids) == 0 {
		ids = r.ids
	}
	out := make([]*Vendor, 0, len(ids))
	for _, id := range ids {
		v, err := r.Get(strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// VendorNames returns the distinct vendor directory names, sorted.
func (r *Registry) VendorNames() []string {
	seen := map[string]struct{}{}
	for _, v := range r.byID {
		seen[v.Name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (v *Vendor) compile() error {
	if v.ID == "" || v.Name == "" {
		return fmt.Errorf("vendor registry: id and vendor are required (id=%q)", v.ID)
	}
	switch v.Source {
	case SourceGitHub:
		if v.Org == "" || len(v.Repos) == 0 {
			return fmt.Errorf("vendor %s: github source needs org and repos", v.ID)
		}
	case SourceHTML:
		if len(v.IndexURLs) == 0 {
			return fmt.Errorf("vendor %s: html source needs index_urls", v.ID)
		}
	default:
		return fmt.Errorf("vendor %s: unknown source %q", v.ID, v.Source)
	}
	if len(v.FilenamePatterns) == 0 {
		return fmt.Errorf("vendor %s: at least one filename pattern is required", v.ID)
	}
	var err error
	if v.link, err = compileOptional(v.LinkPattern); err != nil {
		return fmt.Errorf("vendor %s: link_pattern: %w", v.ID, err)
	}
	if v.tag, err = compileOptional(v.TagPattern); err != nil {
		return fmt.Errorf("vendor %s: tag_pattern: %w", v.ID, err)
	}
	v.patterns = v.patterns[:0]
	for _, p := range v.FilenamePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("vendor %s: filename pattern %q: %w", v.ID, p, err)
		}
		v.patterns = append(v.patterns, re)
	}
	return nil
}

func compileOptional(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}
