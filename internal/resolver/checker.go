package resolver

import (
	"context"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/availability"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/source"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// ExistenceChecker answers whether a concrete release is published for a
// platform. Errors are reserved for configuration problems such as a broken
// URL template; an unreachable or missing release is (false, nil).
type ExistenceChecker interface {
	Exists(ctx context.Context, v version.Spec, info platform.Info) (bool, error)
}

// NetworkChecker asks the registry's ranked mirrors with HEAD requests.
type NetworkChecker struct {
	Registry *source.Registry
	Checker  *availability.Checker
	Timeout  time.Duration // default per-check bound, overridden per source
	Logger   logging.Logger
}

// Exists reports whether any ranked mirror serves v for info.
func (n *NetworkChecker) Exists(ctx context.Context, v version.Spec, info platform.Info) (bool, error) {
	cands, err := n.Registry.Ranked(ctx, v, info)
	if err != nil {
		return false, err
	}
	targets := make([]availability.Target, len(cands))
	for i, c := range cands {
		targets[i] = availability.Target{URL: c.URL, Timeout: n.Registry.Timeout(c.Source, n.Timeout)}
	}
	u, ok := n.Checker.FirstAvailable(ctx, targets)
	if ok {
		logging.OrNop(n.Logger).Debug("release confirmed", "version", v.String(), "platform", info.String(), "url", u)
	}
	return ok, nil
}
