package source

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/template"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// LatencyProber reports the latency of each URL's host, keyed by URL.
// *latency.Prober implements it.
type LatencyProber interface {
	HostLatencies(ctx context.Context, urls []string) map[string]time.Duration
}

// Config holds the collaborators of a Registry.
type Config struct {
	Prober   LatencyProber
	Template template.Options
	Logger   logging.Logger
}

// Registry is an ordered set of release sources, optionally scoped to one
// of them. It is read-only after construction and safe for concurrent use.
type Registry struct {
	sources []ReleaseSource
	active  []int
	prober  LatencyProber
	tmpl    template.Options
	logger  logging.Logger
}

// Candidate is a rendered download URL.
type Candidate struct {
	URL     string
	Source  string
	Latency time.Duration
}

// NewRegistry validates sources and builds a registry over all of them.
// Source names must be unique.
func NewRegistry(sources []ReleaseSource, cfg Config) (*Registry, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no release sources configured")
	}
	if cfg.Prober == nil {
		return nil, fmt.Errorf("registry requires a latency prober")
	}

	r := &Registry{
		prober: cfg.Prober,
		tmpl:   cfg.Template,
		logger: logging.OrNop(cfg.Logger),
	}
	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid source #%d: %w", i+1, err)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[key] = true
		r.sources = append(r.sources, s.clone())
		r.active = append(r.active, i)
	}
	return r, nil
}

// Scope returns a view restricted to the named source. Matching is
// case-insensitive. An empty name returns r unchanged.
func (r *Registry) Scope(name string) (*Registry, error) {
	if name == "" {
		return r, nil
	}
	for i, s := range r.sources {
		if strings.EqualFold(s.Name, name) {
			scoped := *r
			scoped.active = []int{i}
			return &scoped, nil
		}
	}
	return nil, fault.UnknownUpstream.New("%q (available: %s)", name, strings.Join(r.Names(), ", "))
}

// Names returns the names of all configured sources in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name
	}
	return names
}

// Active returns copies of the sources in scope, in declaration order.
func (r *Registry) Active() []ReleaseSource {
	out := make([]ReleaseSource, 0, len(r.active))
	for _, i := range r.active {
		out = append(out, r.sources[i].clone())
	}
	return out
}

// Candidates renders every URL template of the version's release class for
// each active source, in declaration order. Sources with no templates for
// the class are skipped.
func (r *Registry) Candidates(v version.Spec, info platform.Info) ([]Candidate, error) {
	values, err := template.Placeholders(v, info, r.tmpl)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, i := range r.active {
		s := r.sources[i]
		for _, tmpl := range s.Templates(v) {
			u, err := template.Render(tmpl, values)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", s.Name, err)
			}
			out = append(out, Candidate{URL: u, Source: s.Name})
		}
	}
	return out, nil
}

// Ranked returns the candidates for v on info sorted by host latency,
// fastest first. Ties keep declaration order.
func (r *Registry) Ranked(ctx context.Context, v version.Spec, info platform.Info) ([]Candidate, error) {
	cands, err := r.Candidates(v, info)
	if err != nil {
		return nil, err
	}
	if len(cands) < 2 {
		return cands, nil
	}

	urls := make([]string, len(cands))
	for i, c := range cands {
		urls[i] = c.URL
	}
	lat := r.prober.HostLatencies(ctx, urls)
	for i := range cands {
		cands[i].Latency = lat[cands[i].URL]
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Latency < cands[j].Latency
	})

	r.logger.Debug("ranked release urls", "version", v.String(), "platform", info.String(), "count", len(cands), "fastest", cands[0].URL)
	return cands, nil
}

// Timeout returns the request bound configured for the named source, or def
// when the source sets none.
func (r *Registry) Timeout(name string, def time.Duration) time.Duration {
	for _, s := range r.sources {
		if s.Name == name && s.Timeout > 0 {
			return s.Timeout
		}
	}
	return def
}

// VersionsURLs returns the versions index URLs of the active sources,
// fastest host first.
func (r *Registry) VersionsURLs(ctx context.Context) []string {
	var urls []string
	for _, i := range r.active {
		if u := r.sources[i].VersionsURL; u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) < 2 {
		return urls
	}
	lat := r.prober.HostLatencies(ctx, urls)
	sort.SliceStable(urls, func(i, j int) bool { return lat[urls[i]] < lat[urls[j]] })
	return urls
}

// Upstream is one line of the latency report.
type Upstream struct {
	Name    string
	Host    string
	Latency time.Duration
}

// Upstreams measures the host of each active source's first release
// template and returns the sources fastest first.
func (r *Registry) Upstreams(ctx context.Context) []Upstream {
	active := r.Active()
	report := make([]Upstream, 0, len(active))
	urls := make([]string, 0, len(active))
	for _, s := range active {
		tmpl := s.StableURLs[0]
		host := tmpl
		if u, err := url.Parse(tmpl); err == nil && u.Host != "" {
			host = u.Host
		}
		report = append(report, Upstream{Name: s.Name, Host: host})
		urls = append(urls, tmpl)
	}

	lat := r.prober.HostLatencies(ctx, urls)
	for i := range report {
		report[i].Latency = lat[urls[i]]
	}
	sort.SliceStable(report, func(i, j int) bool { return report[i].Latency < report[j].Latency })
	return report
}
