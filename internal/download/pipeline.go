package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
)

const (
	// DefaultTimeout bounds one transfer when the caller passes zero.
	DefaultTimeout = 10 * time.Minute
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "relfetch/1.0"
	// DefaultMaxRedirects is the redirect limit of the download client.
	DefaultMaxRedirects = 10
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	UserAgent    string
	MaxRedirects int
	Transport    http.RoundTripper
	// Progress receives a progress bar per transfer when set.
	Progress io.Writer
	Logger   logging.Logger
}

// Pipeline performs single atomic HTTP transfers. It never retries.
type Pipeline struct {
	client    *http.Client
	userAgent string
	progress  io.Writer
	logger    logging.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Pipeline{
		client: &http.Client{
			Transport: opts.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: ua,
		progress:  opts.Progress,
		logger:    logging.OrNop(opts.Logger),
	}
}

// Fetch downloads rawURL to destPath. Parent directories are created. The
// body is staged in a temporary directory beside destPath, which is always
// removed, so an interrupted transfer leaves neither a partial file nor
// temporary state behind.
//
// Transport errors and non-2xx statuses return NetworkUnavailable. A body
// that ends early or cannot be copied returns PartialDownload.
func (p *Pipeline) Fetch(ctx context.Context, rawURL, destPath string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()

	parent := filepath.Dir(destPath)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("create dest dir: %w", err)
	}
	tmpDir, err := os.MkdirTemp(parent, ".relfetch-download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fault.NetworkUnavailable.New("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fault.NetworkUnavailable.New("GET %s: unexpected status code %d", rawURL, resp.StatusCode)
	}

	tmpPath := filepath.Join(tmpDir, filepath.Base(destPath))
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer tmpFile.Close()

	var w io.Writer = tmpFile
	var bar *progressbar.ProgressBar
	if p.progress != nil {
		bar = progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(p.progress),
			progressbar.OptionSetDescription(filepath.Base(destPath)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		w = io.MultiWriter(tmpFile, bar)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, fault.PartialDownload.New("%s: received %d bytes: %v", rawURL, n, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return nil, fault.PartialDownload.New("%s: received %d of %d bytes", rawURL, n, resp.ContentLength)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := tmpFile.Sync(); err != nil {
		return nil, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return nil, fmt.Errorf("rename temp file: %w", err)
	}

	res := &Result{URL: rawURL, Path: destPath, Size: n, Duration: time.Since(started)}
	p.logger.Debug("download complete", "url", rawURL, "path", destPath, "bytes", n, "duration", res.Duration)
	return res, nil
}

// fileExists checks if a file exists and is not empty
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
