package resolver

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
)

// Policy decides how much work resolution may do for a platform.
//
// Unpublished platforms never had a release; resolving for them fails
// immediately with NoReleaseForPlatform. CatalogOnly platforms get releases
// late or irregularly, so their resolution uses the catalog and skips
// incremental upstream probing.
type Policy struct {
	Unpublished map[platform.Info]bool
	CatalogOnly map[platform.Info]bool
}

// DefaultPolicy mirrors the historical release matrix: Windows builds exist
// for x86 only, FreeBSD and musl for x86_64 only, macOS for x86_64 and
// aarch64, and 32-bit ARM builds were discontinued so they are served from
// the catalog.
func DefaultPolicy() Policy {
	p := Policy{
		Unpublished: map[platform.Info]bool{},
		CatalogOnly: map[platform.Info]bool{},
	}
	for _, info := range []platform.Info{
		{System: platform.Windows, Arch: platform.AArch64},
		{System: platform.Windows, Arch: platform.ARMv7l},
		{System: platform.MacOS, Arch: platform.I686},
		{System: platform.MacOS, Arch: platform.ARMv7l},
		{System: platform.FreeBSD, Arch: platform.I686},
		{System: platform.FreeBSD, Arch: platform.AArch64},
		{System: platform.FreeBSD, Arch: platform.ARMv7l},
		{System: platform.Musl, Arch: platform.I686},
		{System: platform.Musl, Arch: platform.AArch64},
		{System: platform.Musl, Arch: platform.ARMv7l},
	} {
		p.Unpublished[info] = true
	}
	p.CatalogOnly[platform.Info{System: platform.Linux, Arch: platform.ARMv7l}] = true
	return p
}

// ParsePolicy builds a policy from "system/arch" strings. A "*" on either
// side matches every value.
func ParsePolicy(unpublished, catalogOnly []string) (Policy, error) {
	p := Policy{
		Unpublished: map[platform.Info]bool{},
		CatalogOnly: map[platform.Info]bool{},
	}
	for _, pattern := range unpublished {
		infos, err := expand(pattern)
		if err != nil {
			return Policy{}, fmt.Errorf("unpublished platform: %w", err)
		}
		for _, info := range infos {
			p.Unpublished[info] = true
		}
	}
	for _, pattern := range catalogOnly {
		infos, err := expand(pattern)
		if err != nil {
			return Policy{}, fmt.Errorf("catalog-only platform: %w", err)
		}
		for _, info := range infos {
			p.CatalogOnly[info] = true
		}
	}
	return p, nil
}

// IsUnpublished reports whether info never had a release.
func (p Policy) IsUnpublished(info platform.Info) bool { return p.Unpublished[info] }

// IsCatalogOnly reports whether probing is disabled for info.
func (p Policy) IsCatalogOnly(info platform.Info) bool { return p.CatalogOnly[info] }

func expand(pattern string) ([]platform.Info, error) {
	rawSys, rawArch, ok := strings.Cut(strings.TrimSpace(pattern), "/")
	if !ok {
		return nil, fmt.Errorf("%q is not system/arch", pattern)
	}

	systems := platform.Systems()
	if rawSys != "*" {
		s, err := platform.ParseSystem(rawSys)
		if err != nil {
			return nil, err
		}
		systems = []platform.System{s}
	}
	arches := platform.Arches()
	if rawArch != "*" {
		a, err := platform.ParseArch(rawArch)
		if err != nil {
			return nil, err
		}
		arches = []platform.Arch{a}
	}

	var out []platform.Info
	for _, s := range systems {
		for _, a := range arches {
			out = append(out, platform.Info{System: s, Arch: a})
		}
	}
	return out, nil
}
