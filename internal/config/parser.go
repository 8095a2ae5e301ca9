package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
)

//go:embed defaults/sources.lua
var defaultSources string

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
	logger   logging.Logger
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector, logger: logging.Nop()}
}

// WithLogger sets the logger used for warnings about configuration content.
func (p *Parser) WithLogger(l logging.Logger) *Parser {
	p.logger = logging.OrNop(l)
	return p
}

// Default returns the built-in configuration.
func (p *Parser) Default(ctx context.Context) (*Config, error) {
	cfg, err := p.parseRaw(ctx, defaultSources)
	if err != nil {
		return nil, fmt.Errorf("built-in configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("built-in configuration: %w", err)
	}
	return cfg, nil
}

// ParseString parses Lua configuration code, applies it on top of the
// built-in configuration and validates the result.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	if len(luaCode) > MaxConfigSize {
		return nil, &ValidationError{Message: fmt.Sprintf("config too large (%d bytes), maximum is %d", len(luaCode), MaxConfigSize)}
	}
	if findings := DetectSensitiveData(luaCode); len(findings) > 0 {
		for _, f := range findings {
			p.logger.Warn("possible credential in configuration", "pattern", f.PatternName, "line", f.Line, "preview", f.Preview)
		}
	}

	base, err := p.Default(ctx)
	if err != nil {
		return nil, err
	}
	overlay, err := p.parseRaw(ctx, luaCode)
	if err != nil {
		return nil, err
	}
	merged := merge(base, overlay)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// ParseFile reads and parses a configuration file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return nil, &ValidationError{Message: fmt.Sprintf("config %s too large (%d bytes), maximum is %d", path, info.Size(), MaxConfigSize)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := p.ParseString(ctx, string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// parseRaw executes luaCode in a fresh sandbox and extracts the relfetch
// table without defaults or validation.
func (p *Parser) parseRaw(ctx context.Context, luaCode string) (*Config, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		host, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, host); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: err.Error()}
		}
		msg := "Lua runtime error"
		var apiErr *lua.ApiError
		if errors.As(err, &apiErr) && apiErr.Type == lua.ApiErrorSyntax {
			msg = "Lua syntax error"
		}
		return nil, &ParseError{
			Message: msg,
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig extracts the config from a Lua state.
// It expects a global "relfetch" table with the config structure.
func extractConfig(L *lua.LState) (*Config, error) {
	root := L.GetGlobal(luaGlobalRelfetch)
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'relfetch' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	table := root.(*lua.LTable)

	x := &extractor{cfg: &Config{set: map[string]bool{}}}
	cfg := x.cfg

	x.str(table, "", luaFieldUpstream, &cfg.Upstream)

	if t := x.table(table, "", luaFieldSources); t != nil {
		cfg.Sources = x.sources(t)
		cfg.set[luaFieldSources] = true
	}
	if t := x.table(table, "", luaFieldTemplates); t != nil {
		x.str(t, luaFieldTemplates, luaFieldFilename, &cfg.Templates.Filename)
		x.str(t, luaFieldTemplates, luaFieldLatestFilename, &cfg.Templates.LatestFilename)
	}
	if t := x.table(table, "", luaFieldCatalog); t != nil {
		x.str(t, luaFieldCatalog, "path", &cfg.Catalog.Path)
		x.str(t, luaFieldCatalog, "floor", &cfg.Catalog.Floor)
		x.boolean(t, luaFieldCatalog, "stable_only", &cfg.Catalog.StableOnly)
	}
	if t := x.table(table, "", luaFieldDownload); t != nil {
		d := &cfg.Download
		x.str(t, luaFieldDownload, "dir", &d.Dir)
		x.integer(t, luaFieldDownload, "max_attempts", &d.MaxAttempts)
		x.number(t, luaFieldDownload, luaFieldTimeout, &d.Timeout)
		x.str(t, luaFieldDownload, "signature_suffix", &d.SignatureSuffix)
		x.str(t, luaFieldDownload, "keyring", &d.Keyring)
		x.str(t, luaFieldDownload, "minisign_key", &d.MinisignKey)
		x.str(t, luaFieldDownload, "require_signature", &d.RequireSignature)
		x.boolean(t, luaFieldDownload, "overwrite", &d.Overwrite)
		x.str(t, luaFieldDownload, "layout", &d.Layout)
	}
	if t := x.table(table, "", luaFieldProbe); t != nil {
		pr := &cfg.Probe
		x.integer(t, luaFieldProbe, "workers", &pr.Workers)
		x.number(t, luaFieldProbe, luaFieldTimeout, &pr.Timeout)
		x.number(t, luaFieldProbe, "check_timeout", &pr.CheckTimeout)
		x.number(t, luaFieldProbe, "rate", &pr.Rate)
		x.integer(t, luaFieldProbe, "burst", &pr.Burst)
		x.integer(t, luaFieldProbe, "max_redirects", &pr.MaxRedirects)
	}
	if t := x.table(table, "", luaFieldPlatforms); t != nil {
		x.stringSlice(t, luaFieldPlatforms, "unpublished", &cfg.Platforms.Unpublished)
		x.stringSlice(t, luaFieldPlatforms, "catalog_only", &cfg.Platforms.CatalogOnly)
	}
	if t := x.table(table, "", luaFieldLogging); t != nil {
		x.str(t, luaFieldLogging, "level", &cfg.Logging.Level)
		x.str(t, luaFieldLogging, "format", &cfg.Logging.Format)
		x.str(t, luaFieldLogging, "file", &cfg.Logging.File)
	}

	if x.err != nil {
		return nil, x.err
	}
	return cfg, nil
}

// extractor reads typed fields and keeps the first type error.
type extractor struct {
	cfg *Config
	err error
}

func key(section, name string) string {
	if section == "" {
		return name
	}
	return section + "." + name
}

func (x *extractor) fail(field string, want lua.LValueType, got lua.LValue) {
	if x.err == nil {
		x.err = &ValidationError{Field: field, Message: fmt.Sprintf("expected %s, got %s", want, got.Type())}
	}
}

func (x *extractor) table(t *lua.LTable, section, name string) *lua.LTable {
	v := t.RawGetString(name)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTTable:
		return v.(*lua.LTable)
	}
	x.fail(key(section, name), lua.LTTable, v)
	return nil
}

func (x *extractor) str(t *lua.LTable, section, name string, dst *string) {
	v := t.RawGetString(name)
	switch v.Type() {
	case lua.LTNil:
		return
	case lua.LTString:
		*dst = v.String()
		x.cfg.set[key(section, name)] = true
		return
	}
	x.fail(key(section, name), lua.LTString, v)
}

func (x *extractor) number(t *lua.LTable, section, name string, dst *float64) {
	v := t.RawGetString(name)
	switch v.Type() {
	case lua.LTNil:
		return
	case lua.LTNumber:
		*dst = float64(lua.LVAsNumber(v))
		x.cfg.set[key(section, name)] = true
		return
	}
	x.fail(key(section, name), lua.LTNumber, v)
}

func (x *extractor) integer(t *lua.LTable, section, name string, dst *int) {
	var f float64
	before := x.cfg.set[key(section, name)]
	x.number(t, section, name, &f)
	if x.cfg.set[key(section, name)] && !before {
		*dst = int(f)
	}
}

func (x *extractor) boolean(t *lua.LTable, section, name string, dst *bool) {
	v := t.RawGetString(name)
	switch v.Type() {
	case lua.LTNil:
		return
	case lua.LTBool:
		*dst = bool(v.(lua.LBool))
		x.cfg.set[key(section, name)] = true
		return
	}
	x.fail(key(section, name), lua.LTBool, v)
}

// stringSlice reads an array of strings. Nil holes from platform conditionals
// such as `platform.is_linux and "x" or nil` are skipped.
func (x *extractor) stringSlice(t *lua.LTable, section, name string, dst *[]string) {
	list := x.table(t, section, name)
	if list == nil {
		return
	}
	*dst = stringList(list)
	x.cfg.set[key(section, name)] = true
}

func stringList(t *lua.LTable) []string {
	var out []string
	t.ForEach(func(_, value lua.LValue) {
		if value.Type() == lua.LTString {
			out = append(out, value.String())
		}
	})
	return out
}

func (x *extractor) sources(t *lua.LTable) []Source {
	var out []Source
	seen := map[string]bool{}
	n := t.Len()
	for i := 1; i <= n; i++ {
		v := t.RawGetInt(i)
		if v.Type() == lua.LTNil {
			continue
		}
		field := fmt.Sprintf("sources[%d]", i)
		st, ok := v.(*lua.LTable)
		if !ok {
			x.fail(field, lua.LTTable, v)
			return out
		}

		var s Source
		if nv := st.RawGetString(luaFieldName); nv.Type() == lua.LTString {
			s.Name = nv.String()
		} else if nv.Type() != lua.LTNil {
			x.fail(field+".name", lua.LTString, nv)
		}
		if s.Name != "" {
			if seen[strings.ToLower(s.Name)] && x.err == nil {
				x.err = &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate source name %q", s.Name)}
			}
			seen[strings.ToLower(s.Name)] = true
		}
		if urls := x.table(st, field, luaFieldURLs); urls != nil {
			s.URLs = stringList(urls)
		}
		if urls := x.table(st, field, luaFieldLatestURLs); urls != nil {
			s.LatestURLs = stringList(urls)
		}
		if vu := st.RawGetString(luaFieldVersionsURL); vu.Type() == lua.LTString {
			s.VersionsURL = vu.String()
		} else if vu.Type() != lua.LTNil {
			x.fail(field+".versions_url", lua.LTString, vu)
		}
		if tv := st.RawGetString(luaFieldTimeout); tv.Type() == lua.LTNumber {
			s.Timeout = float64(lua.LVAsNumber(tv))
		} else if tv.Type() != lua.LTNil {
			x.fail(field+".timeout", lua.LTNumber, tv)
		}
		out = append(out, s)
	}
	return out
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
