package artifact

import (
	"regexp"
	"strings"
)

// NormalizeOS maps a vendor operating-system token onto the canonical name.
// Unknown tokens become "unknown-os-<token>".
func NormalizeOS(os string) string {
	switch strings.ToLower(strings.TrimSpace(os)) {
	case "linux", "alpine-linux", "alpine", "linux-musl":
		return "linux"
	case "mac", "macos", "macosx", "osx", "darwin":
		return "macosx"
	case "win", "windows":
		return "windows"
	case "solaris":
		return "solaris"
	case "aix":
		return "aix"
	default:
		return "unknown-os-" + os
	}
}

// NormalizeArch maps a vendor architecture token onto the canonical name.
// Unknown tokens become "unknown-arch-<token>".
func NormalizeArch(arch string) string {
	switch strings.ToLower(strings.TrimSpace(arch)) {
	case "amd64", "x64", "x86_64", "x86-64":
		return "x86_64"
	case "x32", "x86", "x86_32", "x86-32", "i386", "i586", "i686":
		return "i686"
	case "aarch64", "arm64":
		return "aarch64"
	case "arm", "arm32", "armv7", "aarch32sf":
		return "arm32"
	case "arm32-vfp-hflt", "aarch32hf":
		return "arm32-vfp-hflt"
	case "ppc":
		return "ppc32"
	case "ppc64":
		return "ppc64"
	case "ppc64le":
		return "ppc64le"
	case "s390x", "s390":
		return "s390x"
	case "sparcv9":
		return "sparcv9"
	case "riscv64":
		return "riscv64"
	default:
		return "unknown-arch-" + arch
	}
}

// NormalizeImageType lowercases an image type and maps anything that is not
// a JRE onto "jdk".
func NormalizeImageType(imageType string) string {
	if strings.EqualFold(strings.TrimSpace(imageType), ImageJRE) {
		return ImageJRE
	}
	return ImageJDK
}

var eaMarkers = []string{"ea", "alpha", "beta", "-dev"}

// DetermineReleaseType returns "ea" for prereleases or versions carrying an
// early-access marker, and "ga" otherwise.
func DetermineReleaseType(version string, prerelease bool) string {
	if prerelease {
		return ReleaseEA
	}
	lower := strings.ToLower(version)
	for _, marker := range eaMarkers {
		if strings.Contains(lower, marker) {
			return ReleaseEA
		}
	}
	return ReleaseGA
}

var (
	legacyVersion  = regexp.MustCompile(`^1\.([2-9])(?:[._+-]|$)`)
	featureVersion = regexp.MustCompile(`^(\d+)`)
	jdkPrefix      = regexp.MustCompile(`^(?i)(jdk-?|openjdk-?)`)
)

// FeatureVersion derives the Java feature release from a version string:
// "1.8.0_392" gives "8", "21.0.2+13" gives "21". It returns "" when no
// leading number is present.
func FeatureVersion(version string) string {
	v := jdkPrefix.ReplaceAllString(strings.TrimSpace(version), "")
	if m := legacyVersion.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	if m := featureVersion.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return ""
}

// File types recognised from artifact names.
const (
	FileTypeTarGz = "tar.gz"
	FileTypeTgz   = "tgz"
	FileTypeTarXz = "tar.xz"
	FileTypeTxz   = "txz"
	FileTypeZip   = "zip"
	FileTypeRPM   = "rpm"
	FileTypeDeb   = "deb"
	FileTypeMSI   = "msi"
	FileTypePkg   = "pkg"
	FileTypeDMG   = "dmg"
	FileTypeExe   = "exe"
	FileTypeApk   = "apk"
)

var fileTypeSuffixes = []string{
	FileTypeTarGz, FileTypeTarXz, FileTypeTgz, FileTypeTxz, FileTypeZip, FileTypeRPM,
	FileTypeDeb, FileTypeMSI, FileTypePkg, FileTypeDMG, FileTypeExe, FileTypeApk,
}

// DetectFileType returns the archive/installer type implied by the file name
// suffix, or "" when it is not a known distribution format.
func DetectFileType(filename string) string {
	lower := strings.ToLower(filename)
	for _, suffix := range fileTypeSuffixes {
		if strings.HasSuffix(lower, "."+suffix) {
			return suffix
		}
	}
	return ""
}
