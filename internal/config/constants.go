package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalRelfetch = "relfetch"

	luaFieldUpstream  = "upstream"
	luaFieldSources   = "sources"
	luaFieldTemplates = "templates"
	luaFieldCatalog   = "catalog"
	luaFieldDownload  = "download"
	luaFieldProbe     = "probe"
	luaFieldPlatforms = "platforms"
	luaFieldLogging   = "logging"

	luaFieldName           = "name"
	luaFieldURLs           = "urls"
	luaFieldLatestURLs     = "latest_urls"
	luaFieldVersionsURL    = "versions_url"
	luaFieldTimeout        = "timeout"
	luaFieldFilename       = "filename"
	luaFieldLatestFilename = "latest_filename"
)

// Resource limits for configuration files.
const (
	// MaxConfigSize is the largest accepted configuration file.
	MaxConfigSize = 1 << 20
	// MaxSourceCount bounds the number of release sources.
	MaxSourceCount = 64
	// MaxURLsPerSource bounds the URL templates of one source.
	MaxURLsPerSource = 32
	// DefaultParseTimeout bounds Lua execution when the context has no
	// deadline.
	DefaultParseTimeout = 5 * time.Second
	// MaxAttemptsLimit caps download.max_attempts.
	MaxAttemptsLimit = 100
)

// ConfigFileName is the user configuration file looked up in the config
// directory.
const ConfigFileName = "sources.lua"
