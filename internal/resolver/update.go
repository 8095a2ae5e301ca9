package resolver

import (
	"context"
	"fmt"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/catalog"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// UpdateReport summarizes an UpdateCatalog run.
type UpdateReport struct {
	Added     int
	Platforms int
	Skipped   []platform.Info
}

// UpdateCatalog probes upstream for releases newer than what the catalog
// records. Every known minor line is climbed patch by patch, the newest
// release of each platform is climbed through majors and minors, and
// nightly availability is checked. The catalog is compacted afterwards.
//
// An empty platforms slice means every platform in the release matrix.
func (r *Resolver) UpdateCatalog(ctx context.Context, platforms []platform.Info) (UpdateReport, error) {
	var report UpdateReport
	if r.checker == nil {
		return report, fmt.Errorf("update catalog: no upstream checker configured")
	}
	if len(platforms) == 0 {
		platforms = platform.All()
	}

	before := r.catalog.Len()
	lines := r.minorLines()

	for _, info := range platforms {
		if r.policy.IsUnpublished(info) || r.policy.IsCatalogOnly(info) {
			report.Skipped = append(report.Skipped, info)
			continue
		}
		report.Platforms++
		r.logger.Info("querying releases", "platform", info.String())

		cl := &climber{resolver: r, info: info}
		for _, line := range lines {
			if _, _, err := cl.climb(ctx, line, []step{version.Spec.NextPatch}); err != nil {
				return report, err
			}
		}

		start, ok := r.newestStable(info)
		if !ok {
			start = r.floor
		}
		if _, _, err := cl.climb(ctx, start, shapeFor(version.Spec{})); err != nil {
			return report, err
		}

		if err := r.checkNightly(ctx, info); err != nil {
			return report, err
		}
	}

	if err := r.catalog.Compact(ctx); err != nil {
		return report, err
	}
	report.Added = r.catalog.Len() - before
	r.logger.Info("catalog updated", "added", report.Added, "platforms", report.Platforms)
	return report, nil
}

// minorLines returns the first release of every stable minor line recorded
// on any platform. A line that never shipped on a given platform stops the
// climb at its first probe.
func (r *Resolver) minorLines() []version.Spec {
	seen := make(map[[2]int]bool)
	var out []version.Spec
	for _, e := range r.catalog.Entries() {
		v := e.Spec()
		if !v.IsStable() || v.Compare(r.floor) < 0 {
			continue
		}
		key := [2]int{v.Major(), v.Minor()}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, version.New(v.Major(), v.Minor(), 0))
	}
	if len(out) == 0 {
		out = append(out, version.New(1, 0, 0))
	}
	return out
}

func (r *Resolver) checkNightly(ctx context.Context, info platform.Info) error {
	latest := version.MustParse(version.LatestName)
	entry, err := catalog.NewEntry(latest, info)
	if err != nil {
		return err
	}
	if r.catalog.Has(entry) {
		return nil
	}
	ok, err := r.checker.Exists(ctx, latest, info)
	if err != nil || !ok {
		return err
	}
	_, err = r.catalog.Add(ctx, entry)
	return err
}
