// Package catalog persists the set of known (version, system, architecture)
// releases.
//
// The on-disk format is a headerless CSV file with rows
// "version,system,architecture". Writers append single rows; Compact sorts,
// deduplicates and atomically rewrites the whole file. Entries only enter the
// catalog from the embedded seed, from an upstream existence check, or from a
// schema-validated versions index.
package catalog

import (
	"fmt"
	"sort"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// Entry is one published release. Entries are comparable and used as set
// keys; Version is always in canonical form.
type Entry struct {
	Version string
	System  platform.System
	Arch    platform.Arch
}

// NewEntry builds an entry for a concrete version.
func NewEntry(v version.Spec, info platform.Info) (Entry, error) {
	if !v.IsConcrete() {
		return Entry{}, fmt.Errorf("catalog entries need a full version or %q, got %q", version.LatestName, v.String())
	}
	if !info.Valid() {
		return Entry{}, fmt.Errorf("catalog entries need a normalized platform, got %s", info)
	}
	return Entry{Version: v.String(), System: info.System, Arch: info.Arch}, nil
}

// ParseEntry normalizes a raw row.
func ParseEntry(rawVersion, rawSystem, rawArch string) (Entry, error) {
	v, err := version.Parse(rawVersion)
	if err != nil {
		return Entry{}, err
	}
	info, err := platform.Normalize(rawSystem, rawArch)
	if err != nil {
		return Entry{}, err
	}
	return NewEntry(v, info)
}

// Platform returns the entry's platform.
func (e Entry) Platform() platform.Info {
	return platform.Info{System: e.System, Arch: e.Arch}
}

// Spec returns the parsed version.
func (e Entry) Spec() version.Spec {
	return version.MustParse(e.Version)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s/%s", e.Version, e.System, e.Arch)
}

// Sort orders entries by system, architecture, then version with "latest"
// last.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.System != b.System {
			return a.System < b.System
		}
		if a.Arch != b.Arch {
			return a.Arch < b.Arch
		}
		return version.Compare(a.Version, b.Version) < 0
	})
}
