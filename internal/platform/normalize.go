package platform

import (
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
)

// systemAliases maps lowercase aliases to canonical systems.
var systemAliases = map[string]System{
	"linux":   Linux,
	"windows": Windows,
	"winnt":   Windows,
	"win":     Windows,
	"macos":   MacOS,
	"mac":     MacOS,
	"darwin":  MacOS,
	"osx":     MacOS,
	"freebsd": FreeBSD,
	"musl":    Musl,
}

// archAliases maps lowercase aliases to canonical architectures.
var archAliases = map[string]Arch{
	"i686":    I686,
	"x86":     I686,
	"i386":    I686,
	"386":     I686,
	"x86_64":  X86_64,
	"x64":     X86_64,
	"amd64":   X86_64,
	"aarch64": AArch64,
	"armv8":   AArch64,
	"arm64":   AArch64,
	"armv7l":  ARMv7l,
	"armv7":   ARMv7l,
	"arm":     ARMv7l,
}

type systemInfo struct {
	sys       string // "winnt", "mac"
	os        string // "win", "mac"
	extension string
}

type archInfo struct {
	short string // "x86", "x64"
	label string // historical architecture label used in file names
	bits  int
}

var systemTable = map[System]systemInfo{
	Linux:   {sys: "linux", os: "linux", extension: "tar.gz"},
	MacOS:   {sys: "mac", os: "mac", extension: "dmg"},
	Windows: {sys: "winnt", os: "win", extension: "exe"},
	FreeBSD: {sys: "freebsd", os: "freebsd", extension: "tar.gz"},
	Musl:    {sys: "musl", os: "musl", extension: "tar.gz"},
}

var archTable = map[Arch]archInfo{
	I686:    {short: "x86", label: "i686", bits: 32},
	X86_64:  {short: "x64", label: "x86_64", bits: 64},
	AArch64: {short: "aarch64", label: "ARMv8", bits: 64},
	ARMv7l:  {short: "armv7l", label: "ARMv7", bits: 32},
}

// osArchRules overrides the default "os-label" combination.
var osArchRules = map[string]string{
	"win-i686":    "win32",
	"win-x86_64":  "win64",
	"mac-x86_64":  "mac64",
	"linux-ARMv7": "linux-armv7l",
	"linux-ARMv8": "linux-aarch64",
}

// osBitRules overrides the default "oslabel" combination.
var osBitRules = map[string]string{
	"wini686":       "win32",
	"winx86_64":     "win64",
	"macx86_64":     "mac64",
	"linuxARMv7":    "linuxarmv7l",
	"linuxARMv8":    "linuxaarch64",
	"linuxx86_64":   "linux64",
	"linuxi686":     "linux32",
	"freebsdx86_64": "freebsd64",
	"freebsdi686":   "freebsd32",
}

// familyMap maps distribution names to their canonical family names.
// This is used to normalize variations of family strings from gopsutil.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// Normalize canonicalizes a raw system and architecture pair. Lookup is
// case-insensitive and ignores surrounding whitespace. Normalizing an already
// canonical pair returns it unchanged.
func Normalize(rawSystem, rawArch string) (Info, error) {
	sys, err := ParseSystem(rawSystem)
	if err != nil {
		return Info{}, err
	}
	arch, err := ParseArch(rawArch)
	if err != nil {
		return Info{}, err
	}
	return Info{System: sys, Arch: arch}, nil
}

// ParseSystem canonicalizes a single system name.
func ParseSystem(raw string) (System, error) {
	if s, ok := systemAliases[normalizeKey(raw)]; ok {
		return s, nil
	}
	return "", fault.UnsupportedPlatform.New("system %q (valid: %s)", raw, strings.Join(systemNames(), ", "))
}

// ParseArch canonicalizes a single architecture name.
func ParseArch(raw string) (Arch, error) {
	if a, ok := archAliases[normalizeKey(raw)]; ok {
		return a, nil
	}
	return "", fault.UnsupportedPlatform.New("architecture %q (valid: %s)", raw, strings.Join(archNames(), ", "))
}

// MustNormalize is like Normalize but panics on error. Intended for tests and
// static tables.
func MustNormalize(rawSystem, rawArch string) Info {
	info, err := Normalize(rawSystem, rawArch)
	if err != nil {
		panic(err)
	}
	return info
}

// Systems returns every canonical system in a stable order.
func Systems() []System {
	return []System{Linux, MacOS, Windows, FreeBSD, Musl}
}

// Arches returns every canonical architecture in a stable order.
func Arches() []Arch {
	return []Arch{I686, X86_64, AArch64, ARMv7l}
}

// All returns every system/arch combination.
func All() []Info {
	var out []Info
	for _, s := range Systems() {
		for _, a := range Arches() {
			out = append(out, Info{System: s, Arch: a})
		}
	}
	return out
}

// Extension returns the release archive extension ("tar.gz", "dmg", "exe").
func (i Info) Extension() string { return systemTable[i.System].extension }

// Bits returns the pointer width of the architecture.
func (i Info) Bits() int { return archTable[i.Arch].bits }

// Sys returns the long OS label ("winnt", "mac", "linux").
func (i Info) Sys() string { return systemTable[i.System].sys }

// OS returns the short OS label ("win", "mac", "linux").
func (i Info) OS() string { return systemTable[i.System].os }

// ShortArch returns the short architecture label ("x86", "x64", "aarch64").
func (i Info) ShortArch() string { return archTable[i.Arch].short }

// ArchLabel returns the historical architecture label used in release file
// names ("i686", "x86_64", "ARMv8", "ARMv7").
func (i Info) ArchLabel() string { return archTable[i.Arch].label }

// OSArch returns the combined label used in versioned file names, e.g.
// "win64", "mac64", "linux-x86_64".
func (i Info) OSArch() string {
	key := i.OS() + "-" + i.ArchLabel()
	if v, ok := osArchRules[key]; ok {
		return v
	}
	return key
}

// OSBit returns the combined label used in nightly file names, e.g.
// "linux64", "win32".
func (i Info) OSBit() string {
	key := i.OS() + i.ArchLabel()
	if v, ok := osBitRules[key]; ok {
		return v
	}
	return key
}

// normalizeKey lowercases and trims for alias lookup.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	if canonical, ok := familyMap[normalizeKey(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}

func systemNames() []string {
	names := make([]string, 0, len(systemTable))
	for s := range systemTable {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

func archNames() []string {
	names := make([]string, 0, len(archTable))
	for a := range archTable {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names
}
