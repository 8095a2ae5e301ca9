// Package resolver turns version specifiers into concrete releases.
//
// Resolution first consults the local catalog, then climbs upstream one
// step at a time (next major, next minor, next patch) and records every
// release it confirms so later runs need no network round trips.
package resolver

import (
	"context"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/catalog"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// DefaultFloor is the oldest release the resolver accepts.
var DefaultFloor = version.New(0, 6, 0)

// Options configures a Resolver.
type Options struct {
	Catalog *catalog.Store
	Checker ExistenceChecker // nil disables upstream probing
	Policy  Policy
	Floor   version.Spec // DefaultFloor when zero
	Logger  logging.Logger
}

// Resolver resolves specifiers against a catalog and an upstream checker.
type Resolver struct {
	catalog *catalog.Store
	checker ExistenceChecker
	policy  Policy
	floor   version.Spec
	logger  logging.Logger
}

// Resolution is the outcome of resolving one specifier.
type Resolution struct {
	Requested version.Spec
	Version   version.Spec
	// Substituted is set when nothing matched the requested prefix and the
	// latest compatible release was returned instead.
	Substituted bool
	// Probed is set when upstream was asked at least once.
	Probed bool
}

// New builds a Resolver. The catalog is required.
func New(opts Options) *Resolver {
	floor := opts.Floor
	if floor.Kind() != version.Full {
		floor = DefaultFloor
	}
	policy := opts.Policy
	if policy.Unpublished == nil && policy.CatalogOnly == nil {
		policy = DefaultPolicy()
	}
	return &Resolver{
		catalog: opts.Catalog,
		checker: opts.Checker,
		policy:  policy,
		floor:   floor,
		logger:  logging.OrNop(opts.Logger),
	}
}

// Floor returns the oldest accepted release.
func (r *Resolver) Floor() version.Spec { return r.floor }

// Resolve maps spec to a concrete version for info.
//
// Full and latest specifiers return immediately without touching the
// network. Empty and partial specifiers take the newest catalog match and
// then climb upstream from it. When nothing matches the prefix, the newest
// release for the platform is returned with Substituted set.
func (r *Resolver) Resolve(ctx context.Context, spec version.Spec, info platform.Info) (Resolution, error) {
	res := Resolution{Requested: spec}

	if !info.Valid() {
		return res, fault.UnsupportedPlatform.New("%s", info.String())
	}
	if version.BelowFloor(spec, r.floor) {
		return res, fault.LegacyVersionRejected.New("%s is older than %s", spec.String(), r.floor.String())
	}
	if spec.IsTerminal() {
		res.Version = spec
		return res, nil
	}
	if r.policy.IsUnpublished(info) {
		return res, fault.NoReleaseForPlatform.New("no release is published for %s", info.String())
	}

	baseline, haveBaseline := r.baseline(spec, info)

	best, found := baseline, haveBaseline
	if r.checker != nil && !r.policy.IsCatalogOnly(info) {
		start := baseline
		if !haveBaseline {
			start = r.climbStart(spec)
		}
		cl := &climber{resolver: r, info: info}
		v, ok, err := cl.climb(ctx, start, shapeFor(spec))
		res.Probed = cl.probed
		if err != nil {
			return res, err
		}
		if ok && (!found || v.Compare(best) > 0) {
			best, found = v, true
		}
	}

	if found {
		res.Version = best
		r.logger.Debug("version resolved", "requested", spec.String(), "version", best.String(), "platform", info.String())
		return res, nil
	}

	latest, ok := r.newestStable(info)
	if !ok {
		return res, fault.NoReleaseForPlatform.New("no release matching %q for %s", spec.String(), info.String())
	}
	r.logger.Warn("no release matches the requested version, using the latest compatible release",
		"requested", spec.String(), "version", latest.String(), "platform", info.String())
	res.Version = latest
	res.Substituted = true
	return res, nil
}

// baseline returns the newest stable catalog release under spec.
func (r *Resolver) baseline(spec version.Spec, info platform.Info) (version.Spec, bool) {
	var matching []version.Spec
	for _, v := range r.catalog.Versions(info) {
		if v.IsStable() && version.MatchesPrefix(v, spec) && v.Compare(r.floor) >= 0 {
			matching = append(matching, v)
		}
	}
	return version.Max(matching)
}

func (r *Resolver) newestStable(info platform.Info) (version.Spec, bool) {
	return r.baseline(version.Spec{}, info)
}

// climbStart is the first candidate probed when the catalog knows nothing
// under spec: the zero-padded prefix, raised to the floor.
func (r *Resolver) climbStart(spec version.Spec) version.Spec {
	start := spec.Floor()
	if start.Compare(r.floor) < 0 {
		return r.floor
	}
	return start
}

type step func(version.Spec) version.Spec

// shapeFor returns the climb steps allowed under spec. Each step only moves
// the segments spec leaves open.
func shapeFor(spec version.Spec) []step {
	major := version.Spec.NextMajor
	minor := version.Spec.NextMinor
	patch := version.Spec.NextPatch
	switch len(spec.Segments()) {
	case 0:
		return []step{major, minor, patch}
	case 1:
		return []step{minor, patch}
	default:
		return []step{patch}
	}
}

// climber walks upstream for one platform and records what it confirms.
type climber struct {
	resolver *Resolver
	info     platform.Info
	probed   bool
}

// climb confirms start, then applies each step for as long as the next
// release exists. It reports false when start itself is not published.
func (c *climber) climb(ctx context.Context, start version.Spec, steps []step) (version.Spec, bool, error) {
	ok, err := c.exists(ctx, start)
	if err != nil || !ok {
		return start, false, err
	}

	cur := start
	for _, next := range steps {
		for {
			if err := ctx.Err(); err != nil {
				return cur, true, err
			}
			cand := next(cur)
			ok, err := c.exists(ctx, cand)
			if err != nil {
				return cur, true, err
			}
			if !ok {
				break
			}
			cur = cand
		}
	}
	return cur, true, nil
}

// exists answers from the catalog when possible and records upstream hits.
func (c *climber) exists(ctx context.Context, v version.Spec) (bool, error) {
	r := c.resolver
	entry, err := catalog.NewEntry(v, c.info)
	if err != nil {
		return false, err
	}
	if r.catalog.Has(entry) {
		return true, nil
	}

	c.probed = true
	ok, err := r.checker.Exists(ctx, v, c.info)
	if err != nil || !ok {
		return false, err
	}
	if _, err := r.catalog.Add(ctx, entry); err != nil {
		r.logger.Warn("could not record release in catalog", "entry", entry.String(), "error", err)
	}
	r.logger.Info("new release found", "version", v.String(), "platform", c.info.String())
	return true, nil
}
