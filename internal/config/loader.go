package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
)

// Environment variables that relocate relfetch directories.
const (
	EnvConfigDir = "RELFETCH_CONFIG_DIR"
	EnvDataDir   = "RELFETCH_DATA_DIR"
	EnvCacheDir  = "RELFETCH_CACHE_DIR"
)

// ConfigDir returns the directory holding the user configuration file.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "relfetch"), nil
}

// DataDir returns the directory holding the catalog and downloads.
func DataDir() (string, error) {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "relfetch"), nil
}

// Load finds and parses the user configuration. When no file exists the
// built-in configuration is returned. The second result is the file that
// was read, empty for the built-in configuration.
func (p *Parser) Load(ctx context.Context) (*Config, string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err := p.Default(ctx)
			return cfg, "", err
		}
		return nil, "", fmt.Errorf("stat config: %w", err)
	}
	cfg, err := p.ParseFile(ctx, path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// CatalogPath returns the catalog file location, resolving the default and
// a leading "~/".
func (c *Config) CatalogPath() (string, error) {
	if c.Catalog.Path != "" {
		return ExpandHome(c.Catalog.Path)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "versions.csv"), nil
}

// DownloadDir returns the artifact directory, resolving the default and a
// leading "~/".
func (c *Config) DownloadDir() (string, error) {
	if c.Download.Dir != "" {
		return ExpandHome(c.Download.Dir)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "downloads"), nil
}

// ExpandHome resolves a leading "~/" against the home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// LoggerConfig returns the logging settings with a resolved file path.
func (c *Config) LoggerConfig() (logging.Config, error) {
	lc := logging.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		MaxSize:    10,
		MaxAge:     30,
		MaxBackups: 3,
	}
	if c.Logging.File != "" {
		path, err := ExpandHome(c.Logging.File)
		if err != nil {
			return lc, err
		}
		lc.File = path
	}
	return lc, nil
}

// overlayFields copies one assigned key from src to dst.
var overlayFields = map[string]func(dst, src *Config){
	"upstream":                   func(d, s *Config) { d.Upstream = s.Upstream },
	"templates.filename":         func(d, s *Config) { d.Templates.Filename = s.Templates.Filename },
	"templates.latest_filename":  func(d, s *Config) { d.Templates.LatestFilename = s.Templates.LatestFilename },
	"catalog.path":               func(d, s *Config) { d.Catalog.Path = s.Catalog.Path },
	"catalog.floor":              func(d, s *Config) { d.Catalog.Floor = s.Catalog.Floor },
	"catalog.stable_only":        func(d, s *Config) { d.Catalog.StableOnly = s.Catalog.StableOnly },
	"download.dir":               func(d, s *Config) { d.Download.Dir = s.Download.Dir },
	"download.max_attempts":      func(d, s *Config) { d.Download.MaxAttempts = s.Download.MaxAttempts },
	"download.timeout":           func(d, s *Config) { d.Download.Timeout = s.Download.Timeout },
	"download.signature_suffix":  func(d, s *Config) { d.Download.SignatureSuffix = s.Download.SignatureSuffix },
	"download.keyring":           func(d, s *Config) { d.Download.Keyring = s.Download.Keyring },
	"download.minisign_key":      func(d, s *Config) { d.Download.MinisignKey = s.Download.MinisignKey },
	"download.require_signature": func(d, s *Config) { d.Download.RequireSignature = s.Download.RequireSignature },
	"download.overwrite":         func(d, s *Config) { d.Download.Overwrite = s.Download.Overwrite },
	"download.layout":            func(d, s *Config) { d.Download.Layout = s.Download.Layout },
	"probe.workers":              func(d, s *Config) { d.Probe.Workers = s.Probe.Workers },
	"probe.timeout":              func(d, s *Config) { d.Probe.Timeout = s.Probe.Timeout },
	"probe.check_timeout":        func(d, s *Config) { d.Probe.CheckTimeout = s.Probe.CheckTimeout },
	"probe.rate":                 func(d, s *Config) { d.Probe.Rate = s.Probe.Rate },
	"probe.burst":                func(d, s *Config) { d.Probe.Burst = s.Probe.Burst },
	"probe.max_redirects":        func(d, s *Config) { d.Probe.MaxRedirects = s.Probe.MaxRedirects },
	"platforms.unpublished":      func(d, s *Config) { d.Platforms.Unpublished = append([]string(nil), s.Platforms.Unpublished...) },
	"platforms.catalog_only":     func(d, s *Config) { d.Platforms.CatalogOnly = append([]string(nil), s.Platforms.CatalogOnly...) },
	"logging.level":              func(d, s *Config) { d.Logging.Level = s.Logging.Level },
	"logging.format":             func(d, s *Config) { d.Logging.Format = s.Logging.Format },
	"logging.file":               func(d, s *Config) { d.Logging.File = s.Logging.File },
}

// merge applies the keys assigned in overlay on top of base. Sources are
// matched by name: a same-named source replaces the base entry in place,
// other sources are appended in overlay order.
func merge(base, overlay *Config) *Config {
	out := *base
	out.Sources = append([]Source(nil), base.Sources...)
	out.Platforms.Unpublished = append([]string(nil), base.Platforms.Unpublished...)
	out.Platforms.CatalogOnly = append([]string(nil), base.Platforms.CatalogOnly...)
	out.set = make(map[string]bool, len(base.set)+len(overlay.set))
	for k := range base.set {
		out.set[k] = true
	}

	for k := range overlay.set {
		if apply, ok := overlayFields[k]; ok {
			apply(&out, overlay)
		}
		out.set[k] = true
	}

	for _, s := range overlay.Sources {
		replaced := false
		for i := range out.Sources {
			if strings.EqualFold(out.Sources[i].Name, s.Name) {
				out.Sources[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			out.Sources = append(out.Sources, s)
		}
	}
	return &out
}
