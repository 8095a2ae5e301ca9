package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Generator generates Lua configuration code from Go structs.
type Generator struct {
	indent string // Indentation string (default: two spaces)
	now    func() time.Time
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
		now:    time.Now,
	}
}

// Generate generates Lua code from a Config struct. The output parses back
// to an equivalent Config.
func (g *Generator) Generate(config *Config) (string, error) {
	var buf bytes.Buffer

	buf.WriteString("-- relfetch configuration\n")
	buf.WriteString("-- Generated: ")
	buf.WriteString(g.now().Format(time.RFC3339))
	buf.WriteString("\n\n")

	buf.WriteString("relfetch = {\n")

	if config.Upstream != "" {
		g.line(&buf, 1, "upstream = "+quoteLuaString(config.Upstream)+",")
		buf.WriteString("\n")
	}

	if len(config.Sources) > 0 {
		g.writeSources(&buf, config.Sources)
	}

	g.open(&buf, "templates")
	g.str(&buf, "filename", config.Templates.Filename)
	g.str(&buf, "latest_filename", config.Templates.LatestFilename)
	g.close(&buf)

	g.open(&buf, "catalog")
	g.str(&buf, "path", config.Catalog.Path)
	g.str(&buf, "floor", config.Catalog.Floor)
	g.line(&buf, 2, "stable_only = "+strconv.FormatBool(config.Catalog.StableOnly)+",")
	g.close(&buf)

	d := config.Download
	g.open(&buf, "download")
	g.str(&buf, "dir", d.Dir)
	g.line(&buf, 2, fmt.Sprintf("max_attempts = %d,", d.MaxAttempts))
	g.line(&buf, 2, "timeout = "+formatNumber(d.Timeout)+",")
	g.str(&buf, "signature_suffix", d.SignatureSuffix)
	g.str(&buf, "keyring", d.Keyring)
	g.str(&buf, "minisign_key", d.MinisignKey)
	g.str(&buf, "require_signature", d.RequireSignature)
	g.line(&buf, 2, "overwrite = "+strconv.FormatBool(d.Overwrite)+",")
	g.str(&buf, "layout", d.Layout)
	g.close(&buf)

	p := config.Probe
	g.open(&buf, "probe")
	g.line(&buf, 2, fmt.Sprintf("workers = %d,", p.Workers))
	g.line(&buf, 2, "timeout = "+formatNumber(p.Timeout)+",")
	g.line(&buf, 2, "check_timeout = "+formatNumber(p.CheckTimeout)+",")
	g.line(&buf, 2, "rate = "+formatNumber(p.Rate)+",")
	g.line(&buf, 2, fmt.Sprintf("burst = %d,", p.Burst))
	g.line(&buf, 2, fmt.Sprintf("max_redirects = %d,", p.MaxRedirects))
	g.close(&buf)

	if len(config.Platforms.Unpublished) > 0 || len(config.Platforms.CatalogOnly) > 0 {
		g.open(&buf, "platforms")
		g.list(&buf, 2, "unpublished", config.Platforms.Unpublished)
		g.list(&buf, 2, "catalog_only", config.Platforms.CatalogOnly)
		g.close(&buf)
	}

	g.open(&buf, "logging")
	g.str(&buf, "level", config.Logging.Level)
	g.str(&buf, "format", config.Logging.Format)
	g.str(&buf, "file", config.Logging.File)
	buf.WriteString(g.indent)
	buf.WriteString("},\n")

	buf.WriteString("}\n")

	return buf.String(), nil
}

// writeSources writes the sources section to the buffer.
func (g *Generator) writeSources(buf *bytes.Buffer, sources []Source) {
	g.line(buf, 1, "sources = {")
	for _, s := range sources {
		g.line(buf, 2, "{")
		g.line(buf, 3, "name = "+quoteLuaString(s.Name)+",")
		g.list(buf, 3, "urls", s.URLs)
		if len(s.LatestURLs) > 0 {
			g.list(buf, 3, "latest_urls", s.LatestURLs)
		}
		if s.VersionsURL != "" {
			g.line(buf, 3, "versions_url = "+quoteLuaString(s.VersionsURL)+",")
		}
		if s.Timeout > 0 {
			g.line(buf, 3, "timeout = "+formatNumber(s.Timeout)+",")
		}
		g.line(buf, 2, "},")
	}
	g.line(buf, 1, "},")
	buf.WriteString("\n")
}

func (g *Generator) line(buf *bytes.Buffer, depth int, text string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(text)
	buf.WriteString("\n")
}

func (g *Generator) open(buf *bytes.Buffer, name string) {
	g.line(buf, 1, name+" = {")
}

func (g *Generator) close(buf *bytes.Buffer) {
	g.line(buf, 1, "},")
	buf.WriteString("\n")
}

func (g *Generator) str(buf *bytes.Buffer, name, value string) {
	g.line(buf, 2, name+" = "+quoteLuaString(value)+",")
}

func (g *Generator) list(buf *bytes.Buffer, depth int, name string, values []string) {
	g.line(buf, depth, name+" = {")
	for _, v := range values {
		g.line(buf, depth+1, quoteLuaString(v)+",")
	}
	g.line(buf, depth, "},")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// quoteLuaString quotes a string for Lua, handling special characters.
func quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
