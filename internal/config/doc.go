// Package config parses relfetch's Lua configuration.
//
// # Overview
//
// The configuration is a single global table named relfetch. It lists the
// release sources with their URL templates and tunes the catalog, downloads,
// probes, the platform policy and logging:
//
//	relfetch = {
//	  upstream = "TUNA",
//	  sources = {
//	    { name = "Corp", urls = { "https://mirror.corp/julia/$minor_version/$filename" } },
//	  },
//	  download = { require_signature = "stable", keyring = "~/.config/relfetch/julia.asc" },
//	}
//
// A built-in file (defaults/sources.lua) always runs first. The user file is
// evaluated separately and only the keys it assigns replace the built-in
// values. Sources merge by name: a same-named source replaces the built-in
// one, other sources are appended. The merged result is validated as a whole.
//
// # Platform Conditionals
//
// When the Parser has a platform.Detector, a read-only platform table is
// available to the Lua code:
//
//	urls = { platform.is_linux and "https://a/$filename" or "https://b/$filename" }
//
// # Sandbox
//
// Lua code runs with os, io, package loading, debug and collectgarbage
// removed. The string, table and math libraries remain. Evaluation is bounded
// by the context deadline (DefaultParseTimeout when none is set), a 256 level
// call stack and MaxConfigSize bytes of input.
//
// # Errors
//
// Lua failures are reported as *ParseError, schema and range problems as
// *ValidationError. FormatError renders either for the terminal.
package config
