// Package platform canonicalizes operating system and architecture names for
// release artifact lookup.
//
// Raw strings from the user, from a versions index, or from host detection are
// normalized once into an Info value. Every derived value consumed by URL
// templates (file extension, bit width, short OS and arch labels) is a lookup
// keyed by the normalized enums, never a re-parse of the raw input.
package platform

import "context"

// System is a canonical operating system identifier.
type System string

// Arch is a canonical CPU architecture identifier.
type Arch string

// Canonical systems.
const (
	Linux   System = "linux"
	MacOS   System = "macos"
	Windows System = "windows"
	FreeBSD System = "freebsd"
	Musl    System = "musl"
)

// Canonical architectures.
const (
	I686    Arch = "i686"
	X86_64  Arch = "x86_64"
	AArch64 Arch = "aarch64"
	ARMv7l  Arch = "armv7l"
)

// Linux distribution family constants.
// These represent canonical family names for grouping related distributions.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux (musl libc)
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info is a normalized platform. The zero value is not valid; build one
// with Normalize.
type Info struct {
	System System
	Arch   Arch
}

// String returns "system/arch".
func (i Info) String() string {
	return string(i.System) + "/" + string(i.Arch)
}

// Valid reports whether both fields hold canonical values.
func (i Info) Valid() bool {
	_, sysOK := systemTable[i.System]
	_, archOK := archTable[i.Arch]
	return sysOK && archOK
}

// Host describes the running machine: the normalized platform plus the raw
// detection data it was derived from.
type Host struct {
	Info

	RawSystem string // OS reported by the host (e.g. "darwin")
	RawArch   string // kernel architecture (e.g. "arm64")
	Distro    string // distro ID (Linux only, e.g. "ubuntu")
	Family    string // canonical family (e.g. "debian", "alpine")
	Version   string // distro version (Linux only, e.g. "22.04")
}

// IsLinux returns true for glibc and musl Linux hosts.
func (h *Host) IsLinux() bool {
	return h.System == Linux || h.System == Musl
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Host, error)
}
