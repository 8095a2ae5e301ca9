// Package availability checks whether release URLs exist without downloading
// them.
//
// Checks never return errors: every failure mode (transport error, timeout,
// 4xx/5xx, too many redirects) reports false, so the caller can use the
// result directly in its probing loop.
package availability

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
)

// Defaults for New.
const (
	DefaultMaxRedirects = 5
	DefaultTimeout      = 5 * time.Second
)

// UserAgent is sent with every check.
const UserAgent = "relfetch/1.0"

// Options configures a Checker.
type Options struct {
	MaxRedirects int               // DefaultMaxRedirects if zero, negative disables redirects
	Rate         float64           // requests per second, 0 for unlimited
	Burst        int               // limiter burst, 1 if zero
	Transport    http.RoundTripper // defaults to http.DefaultTransport
	Logger       logging.Logger
}

// Checker issues HEAD requests. It is safe for concurrent use.
type Checker struct {
	client       *http.Client
	limiter      *rate.Limiter
	maxRedirects int
	logger       logging.Logger
}

// New creates a Checker.
func New(opts Options) *Checker {
	maxRedirects := opts.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}
	if maxRedirects < 0 {
		maxRedirects = 0
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Checker{
		client: &http.Client{
			Transport: transport,
			// Redirects are followed by IsAvailable with an explicit depth.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:      rate.NewLimiter(limit, burst),
		maxRedirects: maxRedirects,
		logger:       logging.OrNop(opts.Logger),
	}
}

// IsAvailable reports whether rawURL answers a HEAD request with 2xx,
// directly or through at most MaxRedirects redirects. timeout bounds the
// whole chain; zero means DefaultTimeout.
func (c *Checker) IsAvailable(ctx context.Context, rawURL string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target, err := url.Parse(rawURL)
	if err != nil {
		c.logger.Debug("invalid url", "url", rawURL, "error", err)
		return false
	}
	return c.check(ctx, target, 0)
}

func (c *Checker) check(ctx context.Context, target *url.URL, depth int) bool {
	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Debug("availability check aborted", "url", target.String(), "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("availability check failed", "url", target.String(), "error", err)
		return false
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		if depth >= c.maxRedirects {
			c.logger.Debug("too many redirects", "url", target.String(), "limit", c.maxRedirects)
			return false
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return false
		}
		next, err := target.Parse(loc)
		if err != nil {
			return false
		}
		return c.check(ctx, next, depth+1)
	default:
		c.logger.Debug("release not available", "url", target.String(), "status", resp.StatusCode)
		return false
	}
}

// Target is a URL checked with its own time bound.
type Target struct {
	URL     string
	Timeout time.Duration
}

// FirstAvailable checks targets in order and returns the URL of the first
// available one.
func (c *Checker) FirstAvailable(ctx context.Context, targets []Target) (string, bool) {
	for _, t := range targets {
		if ctx.Err() != nil {
			return "", false
		}
		if c.IsAvailable(ctx, t.URL, t.Timeout) {
			return t.URL, true
		}
	}
	return "", false
}
