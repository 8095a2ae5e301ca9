// Package engine assembles the resolver, registry, catalog and download
// pipeline from a configuration and exposes the operations callers use.
package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/jedisct1/go-minisign"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/availability"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/catalog"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/config"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/download"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/latency"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/resolver"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/source"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// Index refresh defaults.
const (
	RefreshTimeout = 30 * time.Second
	RefreshRetries = 2
)

// Options holds collaborators that do not come from the configuration.
type Options struct {
	Logger logging.Logger
	// Progress receives download progress bars when set.
	Progress io.Writer
	// Transport replaces the HTTP transport of checks, downloads and the
	// index refresh.
	Transport http.RoundTripper
	// Dial and Lookup replace the latency prober's network access.
	Dial   latency.DialFunc
	Lookup latency.LookupFunc
	// Offline disables upstream probing during resolution.
	Offline bool
}

// Engine is the composition root. It is safe for concurrent use.
type Engine struct {
	cfg       *config.Config
	logger    logging.Logger
	catalog   *catalog.Store
	registry  *source.Registry
	resolver  *resolver.Resolver
	fetcher   *download.Fetcher
	refresher *catalog.Refresher
	dlDir     string
}

// Download is the outcome of resolving and fetching one specifier.
type Download struct {
	Resolution resolver.Resolution
	Artifact   *download.Artifact
}

// New builds an Engine from a validated configuration.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.OrNop(opts.Logger)

	catalogPath, err := cfg.CatalogPath()
	if err != nil {
		return nil, err
	}
	store, err := catalog.Open(catalogPath, catalog.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	prober := latency.New(latency.Options{
		Timeout: config.Seconds(cfg.Probe.Timeout),
		Workers: cfg.Probe.Workers,
		Dial:    opts.Dial,
		Lookup:  opts.Lookup,
		Logger:  logger,
	})
	all, err := source.NewRegistry(cfg.ReleaseSources(), source.Config{
		Prober:   prober,
		Template: cfg.TemplateOptions(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	registry, err := all.Scope(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	var checker resolver.ExistenceChecker
	if !opts.Offline {
		checker = &resolver.NetworkChecker{
			Registry: registry,
			Checker: availability.New(availability.Options{
				MaxRedirects: cfg.Probe.MaxRedirects,
				Rate:         cfg.Probe.Rate,
				Burst:        cfg.Probe.Burst,
				Transport:    opts.Transport,
				Logger:       logger,
			}),
			Timeout: config.Seconds(cfg.Probe.CheckTimeout),
			Logger:  logger,
		}
	}
	res := resolver.New(resolver.Options{
		Catalog: store,
		Checker: checker,
		Policy:  policy,
		Floor:   cfg.Floor(),
		Logger:  logger,
	})

	verifier, err := loadVerifier(cfg)
	if err != nil {
		return nil, err
	}
	sigPolicy, err := download.ParseSignaturePolicy(cfg.Download.RequireSignature)
	if err != nil {
		return nil, err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	fetcher, err := download.NewFetcher(download.FetcherOptions{
		Registry: registry,
		Pipeline: download.NewPipeline(download.PipelineOptions{
			Transport: opts.Transport,
			Progress:  opts.Progress,
			Logger:    logger,
		}),
		Verifier:         verifier,
		MaxAttempts:      cfg.Download.MaxAttempts,
		Timeout:          config.Seconds(cfg.Download.Timeout),
		SignatureSuffix:  cfg.Download.SignatureSuffix,
		RequireSignature: sigPolicy,
		Overwrite:        cfg.Download.Overwrite,
		Layout:           layout,
		Template:         cfg.TemplateOptions(),
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	refresher, err := catalog.NewRefresher(catalog.RefresherOptions{
		Floor:      cfg.Floor(),
		StableOnly: cfg.Catalog.StableOnly,
		Timeout:    RefreshTimeout,
		Retries:    RefreshRetries,
		Transport:  opts.Transport,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	dlDir, err := cfg.DownloadDir()
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		catalog:   store,
		registry:  registry,
		resolver:  res,
		fetcher:   fetcher,
		refresher: refresher,
		dlDir:     dlDir,
	}, nil
}

func loadVerifier(cfg *config.Config) (*download.Verifier, error) {
	var keyring openpgp.EntityList
	if cfg.Download.Keyring != "" {
		path, err := config.ExpandHome(cfg.Download.Keyring)
		if err != nil {
			return nil, err
		}
		if keyring, err = download.LoadOpenPGPKeyring(path); err != nil {
			return nil, err
		}
	}
	var keys []minisign.PublicKey
	if cfg.Download.MinisignKey != "" {
		path, err := config.ExpandHome(cfg.Download.MinisignKey)
		if err != nil {
			return nil, err
		}
		key, err := download.LoadMinisignKey(path)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return download.NewVerifier(keyring, keys), nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Catalog returns the release catalog.
func (e *Engine) Catalog() *catalog.Store { return e.catalog }

// DownloadDir returns the default artifact directory.
func (e *Engine) DownloadDir() string { return e.dlDir }

// ResolveVersion resolves a specifier to a concrete release for info.
func (e *Engine) ResolveVersion(ctx context.Context, spec version.Spec, info platform.Info) (resolver.Resolution, error) {
	return e.resolver.Resolve(ctx, spec, info)
}

// FetchVerifiedArtifact downloads a concrete release into destDir, the
// configured download directory when empty, and returns the artifact path.
func (e *Engine) FetchVerifiedArtifact(ctx context.Context, v version.Spec, info platform.Info, destDir string) (string, error) {
	art, err := e.fetch(ctx, v, info, destDir)
	if err != nil {
		return "", err
	}
	return art.Path, nil
}

func (e *Engine) fetch(ctx context.Context, v version.Spec, info platform.Info, destDir string) (*download.Artifact, error) {
	if destDir == "" {
		destDir = e.dlDir
	}
	return e.fetcher.FetchVerifiedArtifact(ctx, v, info, destDir)
}

// Download resolves spec and fetches the resulting release.
func (e *Engine) Download(ctx context.Context, spec version.Spec, info platform.Info, destDir string) (*Download, error) {
	res, err := e.resolver.Resolve(ctx, spec, info)
	if err != nil {
		return nil, err
	}
	art, err := e.fetch(ctx, res.Version, info, destDir)
	if err != nil {
		return nil, err
	}
	return &Download{Resolution: res, Artifact: art}, nil
}

// UpdateCatalog probes upstream for releases missing from the catalog.
func (e *Engine) UpdateCatalog(ctx context.Context, platforms []platform.Info) (resolver.UpdateReport, error) {
	return e.resolver.UpdateCatalog(ctx, platforms)
}

// RefreshCatalog imports the first reachable versions index, fastest
// source first.
func (e *Engine) RefreshCatalog(ctx context.Context) (int, error) {
	return e.refresher.Refresh(ctx, e.catalog, e.registry.VersionsURLs(ctx))
}

// Upstreams reports the latency of each active source, fastest first.
func (e *Engine) Upstreams(ctx context.Context) []source.Upstream {
	return e.registry.Upstreams(ctx)
}
