package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// Default templates for release file names and mirror layout.
const (
	DefaultFilename       = "julia-$version-$osarch.$extension"
	DefaultLatestFilename = "julia-latest-$osbit.$extension"
	DefaultMirrorPath     = "releases/$vminor_version/$filename"
)

// Options controls the derived filename placeholders.
type Options struct {
	// Filename is the template for "filename". Defaults to DefaultFilename.
	Filename string
	// LatestFilename is the template for "latest_filename".
	// Defaults to DefaultLatestFilename.
	LatestFilename string
	// Extra values are added to the dictionary before any derived key.
	// Derived keys win on conflict.
	Extra map[string]string
}

// Placeholders builds the placeholder dictionary for a concrete version on a
// platform. v must be a full version or "latest".
func Placeholders(v version.Spec, info platform.Info, opts Options) (map[string]string, error) {
	if !info.Valid() {
		return nil, fault.UnsupportedPlatform.New("%s", info)
	}
	if !v.IsTerminal() {
		return nil, fmt.Errorf("placeholders need a full version or %q, got %q", version.LatestName, v.String())
	}

	values := make(map[string]string, len(opts.Extra)+32)
	for k, val := range opts.Extra {
		values[k] = val
	}

	system := string(info.System)
	values["system"] = system
	values["System"] = capitalize(system)
	values["SYSTEM"] = strings.ToUpper(system)

	sys := info.Sys()
	values["sys"] = sys
	values["Sys"] = capitalize(sys)
	values["SYS"] = strings.ToUpper(sys)

	os := info.OS()
	values["os"] = os
	values["Os"] = capitalize(os)
	values["OS"] = strings.ToUpper(os)

	arch := info.ShortArch()
	values["architecture"] = info.ArchLabel()
	values["arch"] = arch
	values["Arch"] = capitalize(arch)
	values["ARCH"] = strings.ToUpper(arch)

	osarch := info.OSArch()
	values["osarch"] = osarch
	values["Osarch"] = casedOSArch(os, osarch, capitalize)
	values["OSarch"] = casedOSArch(os, osarch, strings.ToUpper)

	values["osbit"] = info.OSBit()
	values["bit"] = strconv.Itoa(info.Bits())
	values["extension"] = info.Extension()

	for k, val := range versionValues(v) {
		values[k] = val
		if strings.HasPrefix(k, "v") && strings.HasSuffix(k, "_version") {
			values["V"+k[1:]] = capitalize(val)
		}
	}

	filenameTmpl := opts.Filename
	if filenameTmpl == "" {
		filenameTmpl = DefaultFilename
	}
	latestTmpl := opts.LatestFilename
	if latestTmpl == "" {
		latestTmpl = DefaultLatestFilename
	}

	filename, err := Render(filenameTmpl, values)
	if err != nil {
		return nil, fmt.Errorf("render filename: %w", err)
	}
	latestFilename, err := Render(latestTmpl, values)
	if err != nil {
		return nil, fmt.Errorf("render latest filename: %w", err)
	}
	values["filename"] = filename
	values["latest_filename"] = latestFilename

	return values, nil
}

// RenderFor renders tmpl for a concrete version on a platform.
func RenderFor(tmpl string, v version.Spec, info platform.Info, opts Options) (string, error) {
	values, err := Placeholders(v, info, opts)
	if err != nil {
		return "", err
	}
	return Render(tmpl, values)
}

// MirrorPath returns the relative path a mirror stores the release under,
// e.g. "releases/v1.6/julia-1.6.0-linux-x86_64.tar.gz".
func MirrorPath(v version.Spec, info platform.Info, opts Options) (string, error) {
	return RenderFor(DefaultMirrorPath, v, info, opts)
}

func versionValues(v version.Spec) map[string]string {
	if v.Kind() == version.Latest {
		l := version.LatestName
		return map[string]string{
			"version":        l,
			"major_version":  l,
			"minor_version":  l,
			"patch_version":  l,
			"vmajor_version": l,
			"vminor_version": l,
			"vpatch_version": l,
		}
	}

	major := strconv.Itoa(v.Major())
	minor := major + "." + strconv.Itoa(v.Minor())
	patch := minor + "." + strconv.Itoa(v.Patch())
	return map[string]string{
		"version":        v.String(),
		"major_version":  major,
		"minor_version":  minor,
		"patch_version":  patch,
		"vmajor_version": "v" + major,
		"vminor_version": "v" + minor,
		"vpatch_version": "v" + patch,
	}
}

// casedOSArch applies f to the whole label for win/mac and to the OS part
// only for hyphenated labels such as "linux-aarch64".
func casedOSArch(os, osarch string, f func(string) string) string {
	if os == "win" || os == "mac" {
		return f(osarch)
	}
	if head, tail, ok := strings.Cut(osarch, "-"); ok {
		return f(head) + "-" + tail
	}
	return f(osarch)
}

// capitalize upper-cases the first byte and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
