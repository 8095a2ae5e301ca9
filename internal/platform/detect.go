package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	hostInfo func(ctx context.Context) (*host.InfoStat, error)
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{hostInfo: host.InfoWithContext}
}

// Detect reads the host OS, kernel architecture and Linux distribution via
// gopsutil and normalizes them. Alpine hosts are reported as system musl.
//
// If gopsutil fails, detection falls back to runtime.GOOS and runtime.GOARCH
// without distro details. A cancelled context is always an error.
func (d *RealDetector) Detect(ctx context.Context) (*Host, error) {
	h := &Host{
		RawSystem: runtime.GOOS,
		RawArch:   runtime.GOARCH,
	}

	stat, err := d.hostInfo(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
	} else if stat != nil {
		if stat.OS != "" {
			h.RawSystem = stat.OS
		}
		if stat.KernelArch != "" {
			h.RawArch = stat.KernelArch
		}
		if stat.Platform != "" {
			h.Distro = normalizeKey(stat.Platform)
			h.Family = mapFamily(stat.PlatformFamily)
			h.Version = normalizeKey(stat.PlatformVersion)
		}
	}

	info, err := Normalize(h.RawSystem, h.RawArch)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}
	if info.System == Linux && (h.Family == FamilyAlpine || h.Distro == "alpine") {
		info.System = Musl
	}
	h.Info = info

	return h, nil
}
