// Package testutil provides utilities for testing relfetch in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env holds the isolated directories created by SetupTestEnv.
type Env struct {
	Home      string
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// SetupTestEnv points every relfetch directory and HOME at a fresh temp
// directory, so tests never read the user's sources.lua or catalog.
//
// Cleanup is handled by t.TempDir.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := &Env{
		Home:      filepath.Join(tmpDir, "home"),
		ConfigDir: filepath.Join(tmpDir, "config"),
		DataDir:   filepath.Join(tmpDir, "data"),
		CacheDir:  filepath.Join(tmpDir, "cache"),
	}

	t.Setenv("HOME", env.Home)
	t.Setenv("RELFETCH_CONFIG_DIR", env.ConfigDir)
	t.Setenv("RELFETCH_DATA_DIR", env.DataDir)
	t.Setenv("RELFETCH_CACHE_DIR", env.CacheDir)

	for _, dir := range []string{env.Home, env.ConfigDir, env.DataDir, env.CacheDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return env
}

// WriteConfig writes a sources.lua into the isolated config directory and
// returns its path.
func (e *Env) WriteConfig(t *testing.T, luaCode string) string {
	t.Helper()
	path := filepath.Join(e.ConfigDir, "sources.lua")
	if err := os.WriteFile(path, []byte(luaCode), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
