package artifact

import "strings"

// Keys read from an archive's release descriptor.
const (
	DescriptorJavaVersion    = "JAVA_VERSION"
	DescriptorRuntimeVersion = "JAVA_RUNTIME_VERSION"
	DescriptorOSName         = "OS_NAME"
	DescriptorOSArch         = "OS_ARCH"
	DescriptorImageType      = "IMAGE_TYPE"
	DescriptorJVMVariant     = "JVM_VARIANT"
)

// Enrich fills empty record fields from a release descriptor. Fields that
// already carry a value are left untouched.
func (r Record) Enrich(descriptor map[string]string) Record {
	if len(descriptor) == 0 {
		return r
	}
	get := func(key string) string {
		return strings.TrimSpace(descriptor[key])
	}
	if r.Version == "" {
		r.Version = get(DescriptorRuntimeVersion)
	}
	if r.JavaVersion == "" {
		if v := get(DescriptorJavaVersion); v != "" {
			r.JavaVersion = FeatureVersion(v)
		}
	}
	if r.OS == "" {
		if v := get(DescriptorOSName); v != "" {
			r.OS = NormalizeOS(v)
		}
	}
	if r.Architecture == "" {
		if v := get(DescriptorOSArch); v != "" {
			r.Architecture = NormalizeArch(v)
		}
	}
	if r.ImageType == "" {
		if v := get(DescriptorImageType); v != "" {
			r.ImageType = NormalizeImageType(v)
		}
	}
	if r.JVMImpl == "" {
		if v := get(DescriptorJVMVariant); v != "" {
			r.JVMImpl = strings.ToLower(v)
		}
	}
	return r
}
