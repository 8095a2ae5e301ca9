package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

//go:embed schema/versions.schema.json
var versionsSchema []byte

const schemaURL = "https://relfetch.invalid/versions.schema.json"

// RefresherOptions configures a Refresher.
type RefresherOptions struct {
	Floor      version.Spec  // releases below the floor are dropped
	StableOnly bool          // skip pre-releases and unstable builds
	Timeout    time.Duration // per-request bound, 30s if zero
	Retries    int
	UserAgent  string
	Transport  http.RoundTripper // defaults to resty's transport
	Logger     logging.Logger
}

// Refresher imports a remote versions index into a Store.
type Refresher struct {
	client     *resty.Client
	schema     *jsonschema.Schema
	floor      version.Spec
	stableOnly bool
	logger     logging.Logger
}

type indexFile struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Triplet string `json:"triplet"`
}

type indexRelease struct {
	Stable bool        `json:"stable"`
	Files  []indexFile `json:"files"`
}

// NewRefresher compiles the embedded versions index schema and builds the
// HTTP client.
func NewRefresher(opts RefresherOptions) (*Refresher, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(versionsSchema))
	if err != nil {
		return nil, fmt.Errorf("parse versions schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("load versions schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile versions schema: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "relfetch/1.0"
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(opts.Retries).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "application/json")
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}

	return &Refresher{
		client:     client,
		schema:     sch,
		floor:      opts.Floor,
		stableOnly: opts.StableOnly,
		logger:     logging.OrNop(opts.Logger),
	}, nil
}

// Fetch downloads and validates the index at url and returns its entries.
func (r *Refresher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	resp, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fault.NetworkUnavailable.New("fetch versions index %s: %v", url, err)
	}
	if resp.IsError() {
		return nil, fault.NetworkUnavailable.New("fetch versions index %s: status %d", url, resp.StatusCode())
	}
	return r.Decode(resp.Body())
}

// Decode validates a versions index document against the schema and maps it
// to catalog entries. Files for platforms outside the release matrix are
// skipped.
func (r *Refresher) Decode(body []byte) ([]Entry, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse versions index: %w", err)
	}
	if err := r.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("validate versions index: %w", err)
	}

	var index map[string]indexRelease
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("decode versions index: %w", err)
	}

	var out []Entry
	for raw, rel := range index {
		if r.stableOnly && !rel.Stable {
			continue
		}
		v, err := version.Parse(raw)
		if err != nil || v.Kind() != version.Full {
			r.logger.Debug("skipping versions index key", "version", raw)
			continue
		}
		if r.stableOnly && !v.IsStable() {
			continue
		}
		if r.floor.Kind() == version.Full && v.Compare(r.floor) < 0 {
			continue
		}

		for _, f := range rel.Files {
			system := f.OS
			if libc := tripletLibc(f.Triplet); libc == "musl" {
				system = string(platform.Musl)
			}
			info, err := platform.Normalize(system, f.Arch)
			if err != nil {
				continue
			}
			e, err := NewEntry(v, info)
			if err != nil {
				continue
			}
			out = append(out, e)
		}
	}
	Sort(out)
	return out, nil
}

// Refresh tries each index URL in order and merges the first one that
// downloads and validates into store, then compacts it. It returns the
// number of new entries.
func (r *Refresher) Refresh(ctx context.Context, store *Store, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, fmt.Errorf("no versions index configured")
	}

	var lastErr error
	for _, u := range urls {
		r.logger.Info("querying release information", "url", u)
		entries, err := r.Fetch(ctx, u)
		if err != nil {
			r.logger.Warn("versions index unavailable", "url", u, "error", err)
			lastErr = err
			continue
		}

		added, err := store.Add(ctx, entries...)
		if err != nil {
			return 0, err
		}
		if err := store.Compact(ctx); err != nil {
			return added, err
		}
		r.logger.Info("catalog refreshed", "url", u, "entries", len(entries), "added", added)
		return added, nil
	}
	return 0, fmt.Errorf("refresh catalog: %w", lastErr)
}

// tripletLibc returns the third component of a target triplet such as
// "x86_64-linux-musl".
func tripletLibc(triplet string) string {
	parts := strings.Split(triplet, "-")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
