package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/testutil"
)

func TestSetupTestEnv(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	vars := map[string]string{
		"HOME":                env.Home,
		"RELFETCH_CONFIG_DIR": env.ConfigDir,
		"RELFETCH_DATA_DIR":   env.DataDir,
		"RELFETCH_CACHE_DIR":  env.CacheDir,
	}
	for name, want := range vars {
		if got := os.Getenv(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
		if !filepath.IsAbs(want) {
			t.Errorf("path %s is not absolute", want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("directory %s does not exist: %v", want, err)
		}
	}
}

func TestSetupTestEnv_Isolation(t *testing.T) {
	var first string
	t.Run("first", func(t *testing.T) {
		first = testutil.SetupTestEnv(t).ConfigDir
	})
	t.Run("second", func(t *testing.T) {
		if second := testutil.SetupTestEnv(t).ConfigDir; second == first {
			t.Errorf("ConfigDir reused across tests: %s", second)
		}
	})
}

func TestWriteConfig(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	path := env.WriteConfig(t, `relfetch = {}`)

	if filepath.Dir(path) != env.ConfigDir {
		t.Errorf("WriteConfig() path = %s, want inside %s", path, env.ConfigDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `relfetch = {}` {
		t.Errorf("content = %q", data)
	}
}
