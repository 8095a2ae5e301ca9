// Package latency measures TCP connect latency to mirror hosts.
//
// A failed or slow probe is not an error: it reports the probe timeout, which
// sorts the host behind every responsive one.
package latency

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
)

// Defaults for New.
const (
	DefaultTimeout = 2 * time.Second
	DefaultWorkers = 8
)

// SchemePorts maps URL schemes to the port probed when the URL has none.
var SchemePorts = map[string]int{
	"rsync": 873,
	"https": 443,
	"http":  80,
	"ftp":   21,
}

// DialFunc opens a connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// LookupFunc resolves a host name to addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Options configures a Prober.
type Options struct {
	Timeout time.Duration // per-probe bound, DefaultTimeout if zero
	Workers int           // concurrent probes, DefaultWorkers if zero
	Dial    DialFunc      // defaults to a net.Dialer
	Lookup  LookupFunc    // defaults to net.DefaultResolver.LookupHost
	Logger  logging.Logger
}

// Prober measures and memoizes host latency. Measurements are kept for the
// lifetime of the Prober. It is safe for concurrent use.
type Prober struct {
	timeout time.Duration
	workers int
	dial    DialFunc
	lookup  LookupFunc
	logger  logging.Logger

	mu   sync.Mutex
	memo map[string]time.Duration
}

// New creates a Prober.
func New(opts Options) *Prober {
	p := &Prober{
		timeout: opts.Timeout,
		workers: opts.Workers,
		dial:    opts.Dial,
		lookup:  opts.Lookup,
		logger:  logging.OrNop(opts.Logger),
		memo:    make(map[string]time.Duration),
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers
	}
	if p.dial == nil {
		p.dial = (&net.Dialer{}).DialContext
	}
	if p.lookup == nil {
		p.lookup = net.DefaultResolver.LookupHost
	}
	return p
}

// Probe measures the TCP connect time to host:port. Name resolution is not
// counted. On failure, or when the connect takes longer than timeout, it
// returns timeout.
func (p *Prober) Probe(ctx context.Context, host string, port int, timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := p.lookup(ctx, host)
	if err != nil || len(addrs) == 0 {
		p.logger.Debug("resolve host failed", "host", host, "error", err)
		return timeout
	}

	start := time.Now()
	conn, err := p.dial(ctx, "tcp", net.JoinHostPort(addrs[0], strconv.Itoa(port)))
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Debug("probe host failed", "host", host, "port", port, "error", err)
		return timeout
	}
	conn.Close()

	if elapsed > timeout {
		return timeout
	}
	return elapsed
}

// HostLatencies returns the latency of each URL's host, keyed by URL.
// Hosts without a memoized measurement are probed concurrently with a
// bounded number of workers. Measurements cut short by ctx are reported but
// not memoized.
func (p *Prober) HostLatencies(ctx context.Context, urls []string) map[string]time.Duration {
	type endpoint struct {
		host string
		port int
	}
	pending := make(map[string]endpoint)
	keys := make(map[string]string, len(urls))
	for _, u := range urls {
		key, host, port, ok := Endpoint(u)
		if !ok {
			continue
		}
		keys[u] = key
		if _, ok := p.cached(key); !ok {
			pending[key] = endpoint{host: host, port: port}
		}
	}

	var (
		mu       sync.Mutex
		measured = make(map[string]time.Duration, len(pending))
	)
	if len(pending) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for key, ep := range pending {
			key, ep := key, ep
			g.Go(func() error {
				d := p.Probe(gctx, ep.host, ep.port, p.timeout)
				mu.Lock()
				measured[key] = d
				mu.Unlock()
				if gctx.Err() == nil {
					p.store(key, d)
				}
				return nil
			})
		}
		_ = g.Wait()
		p.logger.Debug("probed hosts", "count", len(pending))
	}

	out := make(map[string]time.Duration, len(urls))
	for _, u := range urls {
		key, ok := keys[u]
		if !ok {
			out[u] = p.timeout
			continue
		}
		if d, ok := measured[key]; ok {
			out[u] = d
			continue
		}
		if d, ok := p.cached(key); ok {
			out[u] = d
			continue
		}
		out[u] = p.timeout
	}
	return out
}

// Forget drops every memoized measurement.
func (p *Prober) Forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memo = make(map[string]time.Duration)
}

func (p *Prober) cached(key string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.memo[key]
	return d, ok
}

func (p *Prober) store(key string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memo[key] = d
}

// Endpoint extracts the probe target of rawURL. key is "host:port".
// ok is false when the URL has no host or no usable port.
func Endpoint(rawURL string) (key, host string, port int, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", "", 0, false
	}
	host = u.Hostname()
	if ps := u.Port(); ps != "" {
		n, err := strconv.Atoi(ps)
		if err != nil {
			return "", "", 0, false
		}
		port = n
	} else {
		n, found := SchemePorts[u.Scheme]
		if !found {
			return "", "", 0, false
		}
		port = n
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), host, port, true
}
