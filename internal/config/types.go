package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/download"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/resolver"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/source"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/template"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// Config is the complete relfetch configuration, mirroring the global
// "relfetch" Lua table.
type Config struct {
	// Upstream restricts resolution and download to one source by name.
	Upstream  string
	Sources   []Source
	Templates Templates
	Catalog   CatalogConfig
	Download  DownloadConfig
	Probe     ProbeConfig
	Platforms PlatformConfig
	Logging   LoggingConfig

	// set records the dotted keys the Lua code assigned, so an overlay only
	// replaces what the user wrote.
	set map[string]bool
}

// Source is one release source as written in the configuration.
type Source struct {
	Name        string
	URLs        []string
	LatestURLs  []string
	VersionsURL string
	Timeout     float64 // seconds, 0 for the probe default
}

// Templates overrides the artifact file name templates.
type Templates struct {
	Filename       string
	LatestFilename string
}

// CatalogConfig configures the local release catalog.
type CatalogConfig struct {
	Path       string // empty for the default data directory location
	Floor      string
	StableOnly bool
}

// DownloadConfig configures artifact downloads.
type DownloadConfig struct {
	Dir              string
	MaxAttempts      int
	Timeout          float64 // seconds per transfer
	SignatureSuffix  string
	Keyring          string // OpenPGP keyring file
	MinisignKey      string // minisign public key file
	RequireSignature string // never, stable, always
	Overwrite        bool
	Layout           string // flat, mirror
}

// ProbeConfig configures latency probes and availability checks.
type ProbeConfig struct {
	Workers      int
	Timeout      float64 // seconds per latency probe
	CheckTimeout float64 // seconds per availability check
	Rate         float64 // availability checks per second, 0 for unlimited
	Burst        int
	MaxRedirects int
}

// PlatformConfig lists "system/arch" patterns for the resolution policy.
type PlatformConfig struct {
	Unpublished []string
	CatalogOnly []string
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

var allowedSchemes = map[string]bool{"http": true, "https": true, "ftp": true, "rsync": true}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return &ValidationError{Field: "sources", Message: "at least one source is required"}
	}
	if len(c.Sources) > MaxSourceCount {
		return &ValidationError{
			Field:   "sources",
			Message: fmt.Sprintf("too many sources (%d), maximum is %d", len(c.Sources), MaxSourceCount),
		}
	}

	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i+1)
		if strings.TrimSpace(s.Name) == "" {
			return &ValidationError{Field: field + ".name", Message: "name cannot be empty"}
		}
		key := strings.ToLower(s.Name)
		if names[key] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate source name %q", s.Name)}
		}
		names[key] = true

		if len(s.URLs) == 0 {
			return &ValidationError{Field: field + ".urls", Message: "at least one URL template is required"}
		}
		if len(s.URLs)+len(s.LatestURLs) > MaxURLsPerSource {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("too many URL templates, maximum is %d", MaxURLsPerSource),
			}
		}
		for j, u := range s.URLs {
			if err := validateURLTemplate(u); err != nil {
				return &ValidationError{Field: fmt.Sprintf("%s.urls[%d]", field, j+1), Message: err.Error()}
			}
		}
		for j, u := range s.LatestURLs {
			if err := validateURLTemplate(u); err != nil {
				return &ValidationError{Field: fmt.Sprintf("%s.latest_urls[%d]", field, j+1), Message: err.Error()}
			}
		}
		if s.VersionsURL != "" {
			if err := validateURLTemplate(s.VersionsURL); err != nil {
				return &ValidationError{Field: field + ".versions_url", Message: err.Error()}
			}
		}
		if s.Timeout < 0 {
			return &ValidationError{Field: field + ".timeout", Message: "timeout cannot be negative"}
		}
	}

	if c.Upstream != "" && !names[strings.ToLower(c.Upstream)] {
		return &ValidationError{Field: "upstream", Message: fmt.Sprintf("no source named %q", c.Upstream)}
	}

	if c.Catalog.Floor != "" {
		v, err := version.Parse(c.Catalog.Floor)
		if err != nil || v.Kind() != version.Full {
			return &ValidationError{Field: "catalog.floor", Message: fmt.Sprintf("%q is not a full version", c.Catalog.Floor)}
		}
	}

	if c.Download.MaxAttempts < 0 || c.Download.MaxAttempts > MaxAttemptsLimit {
		return &ValidationError{
			Field:   "download.max_attempts",
			Message: fmt.Sprintf("must be between 0 and %d", MaxAttemptsLimit),
		}
	}
	if c.Download.Timeout < 0 {
		return &ValidationError{Field: "download.timeout", Message: "timeout cannot be negative"}
	}
	if _, err := download.ParseSignaturePolicy(c.Download.RequireSignature); err != nil {
		return &ValidationError{Field: "download.require_signature", Message: err.Error()}
	}
	if _, err := c.Layout(); err != nil {
		return &ValidationError{Field: "download.layout", Message: err.Error()}
	}

	if c.Probe.Workers < 0 || c.Probe.Burst < 0 || c.Probe.MaxRedirects < 0 {
		return &ValidationError{Field: "probe", Message: "counts cannot be negative"}
	}
	if c.Probe.Timeout < 0 || c.Probe.CheckTimeout < 0 || c.Probe.Rate < 0 {
		return &ValidationError{Field: "probe", Message: "timeouts and rate cannot be negative"}
	}

	if _, err := c.Policy(); err != nil {
		return &ValidationError{Field: "platforms", Message: err.Error()}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return &ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q (valid: text, json)", c.Logging.Format)}
	}

	return nil
}

// validateURLTemplate checks that a URL template has an allowed scheme and
// a host. Placeholders are left in place.
func validateURLTemplate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return fmt.Errorf("URL template cannot be empty")
	}
	u, err := url.Parse(tmpl)
	if err != nil {
		return fmt.Errorf("invalid URL template: %w", err)
	}
	if !allowedSchemes[u.Scheme] {
		return fmt.Errorf("URL must use http, https, ftp or rsync (got: %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL template %q has no host", tmpl)
	}
	return nil
}

// ReleaseSources converts the configured sources for the registry.
func (c *Config) ReleaseSources() []source.ReleaseSource {
	out := make([]source.ReleaseSource, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, source.ReleaseSource{
			Name:        s.Name,
			StableURLs:  append([]string(nil), s.URLs...),
			LatestURLs:  append([]string(nil), s.LatestURLs...),
			VersionsURL: s.VersionsURL,
			Timeout:     Seconds(s.Timeout),
		})
	}
	return out
}

// TemplateOptions returns the file name templates for the registry.
func (c *Config) TemplateOptions() template.Options {
	return template.Options{
		Filename:       c.Templates.Filename,
		LatestFilename: c.Templates.LatestFilename,
	}
}

// Floor returns the oldest accepted release.
func (c *Config) Floor() version.Spec {
	if v, err := version.Parse(c.Catalog.Floor); err == nil && v.Kind() == version.Full {
		return v
	}
	return resolver.DefaultFloor
}

// Policy builds the resolution policy. When no platform lists are
// configured the built-in release matrix applies.
func (c *Config) Policy() (resolver.Policy, error) {
	if len(c.Platforms.Unpublished) == 0 && len(c.Platforms.CatalogOnly) == 0 {
		return resolver.DefaultPolicy(), nil
	}
	return resolver.ParsePolicy(c.Platforms.Unpublished, c.Platforms.CatalogOnly)
}

// Layout returns the artifact layout.
func (c *Config) Layout() (download.Layout, error) {
	switch strings.ToLower(c.Download.Layout) {
	case "", "flat":
		return download.LayoutFlat, nil
	case "mirror":
		return download.LayoutMirror, nil
	default:
		return download.LayoutFlat, fmt.Errorf("unknown layout %q (valid: flat, mirror)", c.Download.Layout)
	}
}

// Seconds converts a configuration value in seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
