package vendors

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/jdkdb-crawler/internal/artifact"
)

// Asset describes one candidate file as seen in a listing.
type Asset struct {
	Filename    string
	URL         string
	Description string
	Prerelease  bool
	// TagGroups holds the named groups captured from the release tag.
	TagGroups map[string]string
}

// Excluded reports whether filename carries one of the vendor's exclusion
// markers.
func (v *Vendor) Excluded(filename string) bool {
	for _, marker := range v.Exclude {
		if marker != "" && strings.Contains(filename, marker) {
			return true
		}
	}
	return false
}

// AcceptsLink reports whether an index page link belongs to this vendor.
func (v *Vendor) AcceptsLink(url string) bool {
	return v.link == nil || v.link.MatchString(url)
}

// MatchTag applies the tag pattern. Without a tag pattern every tag matches
// with no groups.
func (v *Vendor) MatchTag(tag string) (map[string]string, bool) {
	if v.tag == nil {
		return nil, true
	}
	return namedGroups(v.tag, tag)
}

// Describe builds the identity part of a record from an asset. It returns
// false when no filename pattern matches.
func (v *Vendor) Describe(a Asset) (artifact.Record, bool) {
	var groups map[string]string
	for _, re := range v.patterns {
		if g, ok := namedGroups(re, a.Filename); ok {
			groups = g
			break
		}
	}
	if groups == nil {
		return artifact.Record{}, false
	}
	for k, val := range a.TagGroups {
		if groups[k] == "" {
			groups[k] = val
		}
	}
	if v.VersionDots && groups["version"] != "" {
		groups["version"] = strings.ReplaceAll(groups["version"], "_", ".")
	}
	get := func(key string) string {
		if val := groups[key]; val != "" {
			return val
		}
		return v.Defaults[key]
	}

	version := expand(v.VersionFormat, groups)
	if v.VersionFormat == "" {
		version = get("version")
	}
	javaVersion := expand(v.JavaVersionFormat, groups)
	if v.JavaVersionFormat == "" {
		javaVersion = get("java_version")
	}
	if javaVersion == "" {
		javaVersion = artifact.FeatureVersion(version)
	}

	rec := artifact.Record{
		Vendor:      v.Name,
		Filename:    a.Filename,
		Version:     version,
		JavaVersion: javaVersion,
		JVMImpl:     v.JVMImpl,
		URL:         a.URL,
		Features:    v.features(a),
	}
	rec.ReleaseType = v.ReleaseType
	if rec.ReleaseType == "" {
		rec.ReleaseType = artifact.DetermineReleaseType(version, a.Prerelease)
	}
	if os := get("os"); os != "" {
		rec.OS = artifact.NormalizeOS(os)
	}
	if arch := get("arch"); arch != "" {
		rec.Architecture = artifact.NormalizeArch(arch)
	}
	if image := get("image_type"); image != "" {
		rec.ImageType = artifact.NormalizeImageType(image)
	}
	rec.FileType = get("ext")
	if rec.FileType == "" {
		rec.FileType = artifact.DetectFileType(a.Filename)
	}
	return rec.Normalize(), true
}

func (v *Vendor) features(a Asset) []string {
	out := append([]string(nil), v.Features...)
	for _, rule := range v.FeatureRules {
		if rule.Contains == "" {
			continue
		}
		if strings.Contains(a.Filename, rule.Contains) || strings.Contains(a.Description, rule.Contains) {
			out = append(out, rule.Feature)
		}
	}
	return out
}

func namedGroups(re *regexp.Regexp, s string) (map[string]string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	groups := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}
	return groups, true
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

func expand(format string, groups map[string]string) string {
	if format == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(format, func(tok string) string {
		return groups[tok[1:len(tok)-1]]
	})
}
