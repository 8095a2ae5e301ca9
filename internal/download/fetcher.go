package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/source"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/template"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

const (
	// DefaultMaxAttempts is the number of passes over the ranked mirrors.
	DefaultMaxAttempts = 3
	// DefaultSignatureSuffix is appended to an artifact URL to locate its
	// detached signature.
	DefaultSignatureSuffix = ".asc"
	// DefaultBreakerThreshold is the number of consecutive failures that
	// opens a mirror's circuit breaker.
	DefaultBreakerThreshold = 3
	// DefaultBreakerCooldown is how long an open breaker skips its mirror.
	DefaultBreakerCooldown = time.Minute
)

// SignaturePolicy selects which releases must carry a valid signature.
type SignaturePolicy int

const (
	// SignatureNever skips verification.
	SignatureNever SignaturePolicy = iota
	// SignatureStable requires signatures for numbered releases only.
	SignatureStable
	// SignatureAlways requires signatures for every release, nightly included.
	SignatureAlways
)

// ParseSignaturePolicy maps "never", "stable" and "always" to a policy.
func ParseSignaturePolicy(s string) (SignaturePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never", "none":
		return SignatureNever, nil
	case "stable":
		return SignatureStable, nil
	case "always":
		return SignatureAlways, nil
	default:
		return SignatureNever, fmt.Errorf("unknown signature policy %q (valid: never, stable, always)", s)
	}
}

// Requires reports whether v needs a verified signature.
func (p SignaturePolicy) Requires(v version.Spec) bool {
	switch p {
	case SignatureAlways:
		return true
	case SignatureStable:
		return v.Kind() == version.Full
	default:
		return false
	}
}

// Layout selects where artifacts land under the destination directory.
type Layout int

const (
	// LayoutFlat stores the artifact under the last path segment of its URL.
	LayoutFlat Layout = iota
	// LayoutMirror stores it under template.MirrorPath, like an upstream
	// release tree.
	LayoutMirror
)

// Candidates supplies ranked URLs. *source.Registry implements it.
type Candidates interface {
	Ranked(ctx context.Context, v version.Spec, info platform.Info) ([]source.Candidate, error)
	Timeout(name string, def time.Duration) time.Duration
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Registry         Candidates
	Pipeline         *Pipeline
	Verifier         *Verifier
	MaxAttempts      int
	Timeout          time.Duration // per-transfer bound, overridden per source
	Backoff          time.Duration // pause before pass n is n-1 times this; 1s if zero
	SignatureSuffix  string
	RequireSignature SignaturePolicy
	Overwrite        bool
	Layout           Layout
	Template         template.Options
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
	Logger           logging.Logger
}

// Fetcher downloads verified artifacts across mirrors. It is safe for
// concurrent use.
type Fetcher struct {
	opts   FetcherOptions
	logger logging.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("fetcher requires a registry")
	}
	if opts.Pipeline == nil {
		opts.Pipeline = NewPipeline(PipelineOptions{Logger: opts.Logger})
	}
	if opts.RequireSignature != SignatureNever && (opts.Verifier == nil || !opts.Verifier.HasKeys()) {
		return nil, fmt.Errorf("signature verification requires a keyring or minisign key")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.SignatureSuffix == "" {
		opts.SignatureSuffix = DefaultSignatureSuffix
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = DefaultBreakerThreshold
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = DefaultBreakerCooldown
	}
	return &Fetcher{
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

// FetchVerifiedArtifact downloads the artifact of a concrete version for
// info into destDir and returns its path.
//
// Ranked mirrors are tried in order, up to MaxAttempts passes. A mirror
// whose breaker is open is skipped. When the release requires a signature
// the artifact and signature are staged and checked before either reaches
// destDir; a failed check discards both and is not retried.
func (f *Fetcher) FetchVerifiedArtifact(ctx context.Context, v version.Spec, info platform.Info, destDir string) (*Artifact, error) {
	if !v.IsTerminal() {
		return nil, fmt.Errorf("fetch requires a concrete version, got %q", v.String())
	}

	cands, err := f.opts.Registry.Ranked(ctx, v, info)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, fault.NoReleaseForPlatform.New("no download URL for %s on %s", v.String(), info.String())
	}

	opID := uuid.New().String()
	log := &opLogger{logger: f.logger, id: opID}
	needSig := f.opts.RequireSignature.Requires(v)

	dests := make([]string, len(cands))
	for i, c := range cands {
		dest, err := f.destination(destDir, c.URL, v, info)
		if err != nil {
			return nil, err
		}
		dests[i] = dest
	}

	if !needSig && !f.opts.Overwrite && v.Kind() != version.Latest {
		for i, dest := range dests {
			if fileExists(dest) {
				log.Info("reusing existing artifact", "path", dest)
				return &Artifact{Path: dest, URL: cands[i].URL, Reused: true, OperationID: opID}, nil
			}
		}
	}

	attempts := 0
	var lastErr error
	for pass := 1; pass <= f.opts.MaxAttempts; pass++ {
		if pass > 1 {
			select {
			case <-time.After(time.Duration(pass-1) * f.opts.Backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		for i, c := range cands {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cb := f.breaker(c.URL)
			if cb.State() == gobreaker.StateOpen {
				log.Debug("skipping mirror with open breaker", "url", c.URL)
				continue
			}

			attempts++
			timeout := f.opts.Registry.Timeout(c.Source, f.opts.Timeout)
			art := &Artifact{Path: dests[i], URL: c.URL, Attempts: attempts, OperationID: opID}
			var err error
			if needSig {
				err = f.fetchSigned(ctx, cb, art, timeout, log)
			} else {
				_, err = cb.Execute(func() (interface{}, error) {
					return f.opts.Pipeline.Fetch(ctx, c.URL, art.Path, timeout)
				})
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn("download attempt failed", "pass", pass, "attempt", attempts, "source", c.Source, "url", c.URL, "error", err)
				if !fault.Recoverable(err) && !isBreakerRejection(err) {
					return nil, err
				}
				lastErr = err
				continue
			}

			log.Info("artifact ready", "version", v.String(), "platform", info.String(), "path", art.Path, "verified", art.Verified.String())
			return art, nil
		}
	}

	if lastErr == nil {
		return nil, fault.NetworkUnavailable.New("every mirror for %s on %s is unavailable", v.String(), info.String())
	}
	return nil, fmt.Errorf("fetch %s for %s: all mirrors failed after %d attempts: %w", v.String(), info.String(), attempts, lastErr)
}

// fetchSigned downloads the artifact and its signature into a staging
// directory beside art.Path and moves both into place only once the
// signature checks out. A failed check leaves nothing behind.
func (f *Fetcher) fetchSigned(ctx context.Context, cb *gobreaker.CircuitBreaker, art *Artifact, timeout time.Duration, log *opLogger) error {
	parent := filepath.Dir(art.Path)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}
	stage, err := os.MkdirTemp(parent, ".relfetch-verify-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	staged := filepath.Join(stage, filepath.Base(art.Path))
	if _, err := cb.Execute(func() (interface{}, error) {
		return f.opts.Pipeline.Fetch(ctx, art.URL, staged, timeout)
	}); err != nil {
		return err
	}

	sigURL := art.URL + f.opts.SignatureSuffix
	stagedSig := staged + f.opts.SignatureSuffix
	if _, err := f.opts.Pipeline.Fetch(ctx, sigURL, stagedSig, timeout); err != nil {
		log.Error("signature unavailable, artifact discarded", "url", sigURL, "error", err)
		return fault.VerificationFailed.New("signature %s: %v", sigURL, err)
	}

	method, err := f.opts.Verifier.Verify(staged, stagedSig)
	if err != nil {
		log.Error("signature verification failed, artifact discarded", "url", art.URL, "error", err)
		return err
	}

	sigPath := art.Path + f.opts.SignatureSuffix
	if err := os.Rename(stagedSig, sigPath); err != nil {
		return fmt.Errorf("install signature: %w", err)
	}
	if err := os.Rename(staged, art.Path); err != nil {
		os.Remove(sigPath)
		return fmt.Errorf("install artifact: %w", err)
	}
	art.SignaturePath = sigPath
	art.Verified = method
	return nil
}

func (f *Fetcher) destination(destDir, rawURL string, v version.Spec, info platform.Info) (string, error) {
	if f.opts.Layout == LayoutMirror {
		rel, err := template.MirrorPath(v, info, f.opts.Template)
		if err != nil {
			return "", err
		}
		return filepath.Join(destDir, filepath.FromSlash(rel)), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse download URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("download URL %q has no file name", rawURL)
	}
	return filepath.Join(destDir, name), nil
}

// breaker returns the circuit breaker of the URL's host.
func (f *Fetcher) breaker(rawURL string) *gobreaker.CircuitBreaker {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	threshold := f.opts.BreakerThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     f.opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !fault.Recoverable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			f.logger.Warn("mirror breaker state changed", "host", name, "from", from.String(), "to", to.String())
		},
	})
	f.breakers[host] = cb
	return cb
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// opLogger tags every message with the operation ID.
type opLogger struct {
	logger logging.Logger
	id     string
}

func (l *opLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug(msg, l.with(kv)...) }
func (l *opLogger) Info(msg string, kv ...interface{})  { l.logger.Info(msg, l.with(kv)...) }
func (l *opLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn(msg, l.with(kv)...) }
func (l *opLogger) Error(msg string, kv ...interface{}) { l.logger.Error(msg, l.with(kv)...) }

func (l *opLogger) with(kv []interface{}) []interface{} {
	return append([]interface{}{"op", l.id}, kv...)
}
