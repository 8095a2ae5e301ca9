package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/zeebo/errs"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/catalog"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

var linux64 = platform.Info{System: platform.Linux, Arch: platform.X86_64}

// fakeChecker reports releases from a fixed set and counts lookups.
type fakeChecker struct {
	mu       sync.Mutex
	released map[string]bool
	calls    int
	err      error
}

func newFakeChecker(versions ...string) *fakeChecker {
	f := &fakeChecker{released: map[string]bool{}}
	for _, v := range versions {
		f.released[v] = true
	}
	return f
}

func (f *fakeChecker) Exists(ctx context.Context, v version.Spec, info platform.Info) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.released[v.String()], nil
}

func (f *fakeChecker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newCatalog(t *testing.T, info platform.Info, versions ...string) *catalog.Store {
	t.Helper()
	store, err := catalog.Open("", catalog.Options{NoSeed: true})
	if err != nil {
		t.Fatalf("catalog.Open() error = %v", err)
	}
	var entries []catalog.Entry
	for _, v := range versions {
		e, err := catalog.NewEntry(version.MustParse(v), info)
		if err != nil {
			t.Fatalf("NewEntry(%s) error = %v", v, err)
		}
		entries = append(entries, e)
	}
	if _, err := store.Add(context.Background(), entries...); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return store
}

func TestResolve_TerminalSpecsSkipNetwork(t *testing.T) {
	checker := newFakeChecker()
	r := New(Options{Catalog: newCatalog(t, linux64), Checker: checker})

	for _, raw := range []string{"1.6.0", "1.9.0-rc1", "1.2.3+b1", "1.2.3-rc1+b1", "latest"} {
		t.Run(raw, func(t *testing.T) {
			spec := version.MustParse(raw)
			res, err := r.Resolve(context.Background(), spec, linux64)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !res.Version.Equal(spec) {
				t.Errorf("Resolve() = %s, want %s", res.Version, spec)
			}
			if res.Probed || res.Substituted {
				t.Errorf("Resolve() = %+v, want neither probed nor substituted", res)
			}
		})
	}
	if checker.Calls() != 0 {
		t.Errorf("checker called %d times, want 0", checker.Calls())
	}
}

func TestResolve_PrefixAgainstCatalog(t *testing.T) {
	store := newCatalog(t, linux64, "1.2.0", "1.2.1", "1.3.0")
	r := New(Options{Catalog: store, Checker: newFakeChecker()})

	tests := []struct {
		spec string
		want string
	}{
		{"1.2", "1.2.1"},
		{"1", "1.3.0"},
		{"", "1.3.0"},
		{"1.3", "1.3.0"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), version.MustParse(tt.spec), linux64)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.spec, err)
			}
			if res.Version.String() != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.spec, res.Version, tt.want)
			}
			if res.Substituted {
				t.Errorf("Resolve(%q) substituted unexpectedly", tt.spec)
			}
		})
	}
}

func TestResolve_CatalogOnlyWithoutChecker(t *testing.T) {
	store := newCatalog(t, linux64, "1.2.0", "1.2.1")
	r := New(Options{Catalog: store})

	res, err := r.Resolve(context.Background(), version.MustParse("1.2"), linux64)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Version.String() != "1.2.1" || res.Probed {
		t.Errorf("Resolve() = %+v, want 1.2.1 without probing", res)
	}
}

func TestResolve_ClimbRecordsReleases(t *testing.T) {
	store := newCatalog(t, linux64, "1.2.0")
	checker := newFakeChecker("1.2.1", "1.2.2", "1.3.0", "1.3.1", "2.0.0")
	r := New(Options{Catalog: store, Checker: checker})

	tests := []struct {
		spec string
		want string
	}{
		{"1.2", "1.2.2"},
		{"1", "1.3.1"},
		{"", "2.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), version.MustParse(tt.spec), linux64)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.spec, err)
			}
			if res.Version.String() != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.spec, res.Version, tt.want)
			}
			if !res.Probed {
				t.Errorf("Resolve(%q) did not probe", tt.spec)
			}
		})
	}

	for _, v := range []string{"1.2.1", "1.2.2", "1.3.0", "1.3.1", "2.0.0"} {
		e, _ := catalog.NewEntry(version.MustParse(v), linux64)
		if !store.Has(e) {
			t.Errorf("catalog missing confirmed release %s", v)
		}
	}
	e, _ := catalog.NewEntry(version.MustParse("1.2.3"), linux64)
	if store.Has(e) {
		t.Error("catalog recorded a release that was never confirmed")
	}
}

func TestResolve_SecondRunUsesCatalog(t *testing.T) {
	store := newCatalog(t, linux64)
	checker := newFakeChecker("1.0.0", "1.0.1")
	r := New(Options{Catalog: store, Checker: checker})

	if _, err := r.Resolve(context.Background(), version.MustParse("1.0"), linux64); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	first := checker.Calls()

	res, err := r.Resolve(context.Background(), version.MustParse("1.0"), linux64)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if res.Version.String() != "1.0.1" {
		t.Errorf("Resolve() = %s, want 1.0.1", res.Version)
	}
	// Only the step past the newest known patch needs the network again.
	if got := checker.Calls() - first; got != 1 {
		t.Errorf("second Resolve() made %d upstream calls, want 1", got)
	}
}

func TestResolve_EmptyCatalogStartsAtFloor(t *testing.T) {
	checker := newFakeChecker("0.6.0", "0.6.1", "0.7.0", "1.0.0", "1.1.0", "1.1.1")
	r := New(Options{Catalog: newCatalog(t, linux64), Checker: checker})

	res, err := r.Resolve(context.Background(), version.Spec{}, linux64)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Version.String() != "1.1.1" {
		t.Errorf("Resolve() = %s, want 1.1.1", res.Version)
	}
}

func TestResolve_Substitution(t *testing.T) {
	store := newCatalog(t, linux64, "1.5.0", "1.6.2")
	r := New(Options{Catalog: store, Checker: newFakeChecker()})

	res, err := r.Resolve(context.Background(), version.MustParse("1.99"), linux64)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Substituted {
		t.Error("Resolve() did not flag substitution")
	}
	if res.Version.String() != "1.6.2" {
		t.Errorf("Resolve() = %s, want 1.6.2", res.Version)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		info    platform.Info
		catalog []string
		class   *errs.Class
	}{
		{
			name:  "unpublished_platform",
			spec:  "1",
			info:  platform.Info{System: platform.Windows, Arch: platform.ARMv7l},
			class: &fault.NoReleaseForPlatform,
		},
		{
			name:  "nothing_anywhere",
			spec:  "",
			info:  linux64,
			class: &fault.NoReleaseForPlatform,
		},
		{
			name:  "legacy_full",
			spec:  "0.5.2",
			info:  linux64,
			class: &fault.LegacyVersionRejected,
		},
		{
			name:    "legacy_prefix",
			spec:    "0.5",
			info:    linux64,
			catalog: []string{"0.6.0"},
			class:   &fault.LegacyVersionRejected,
		},
		{
			name:  "invalid_platform",
			spec:  "1",
			info:  platform.Info{System: "plan9", Arch: platform.X86_64},
			class: &fault.UnsupportedPlatform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCatalog(t, linux64, tt.catalog...)
			r := New(Options{Catalog: store, Checker: newFakeChecker()})
			_, err := r.Resolve(context.Background(), version.MustParse(tt.spec), tt.info)
			if !tt.class.Has(err) {
				t.Errorf("Resolve() error = %v, want class %q", err, string(*tt.class))
			}
		})
	}
}

func TestResolve_UnpublishedFailsWithoutNetwork(t *testing.T) {
	checker := newFakeChecker("1.0.0")
	r := New(Options{Catalog: newCatalog(t, linux64), Checker: checker})
	info := platform.Info{System: platform.FreeBSD, Arch: platform.AArch64}

	if _, err := r.Resolve(context.Background(), version.MustParse("1"), info); !fault.NoReleaseForPlatform.Has(err) {
		t.Fatalf("Resolve() error = %v, want NoReleaseForPlatform", err)
	}
	if checker.Calls() != 0 {
		t.Errorf("checker called %d times, want 0", checker.Calls())
	}
}

func TestResolve_CatalogOnlyPlatformSkipsProbing(t *testing.T) {
	armv7 := platform.Info{System: platform.Linux, Arch: platform.ARMv7l}
	checker := newFakeChecker("1.2.1")
	r := New(Options{Catalog: newCatalog(t, armv7, "1.2.0"), Checker: checker})

	res, err := r.Resolve(context.Background(), version.MustParse("1.2"), armv7)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Version.String() != "1.2.0" {
		t.Errorf("Resolve() = %s, want 1.2.0", res.Version)
	}
	if checker.Calls() != 0 {
		t.Errorf("checker called %d times, want 0", checker.Calls())
	}
}

func TestResolve_CheckerError(t *testing.T) {
	checker := newFakeChecker()
	checker.err = errors.New("template broken")
	r := New(Options{Catalog: newCatalog(t, linux64), Checker: checker})

	if _, err := r.Resolve(context.Background(), version.MustParse("1"), linux64); err == nil {
		t.Error("Resolve() error = nil, want checker error")
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]string{"windows/*", "mac/i386"}, []string{"linux/armv7"})
	if err != nil {
		t.Fatalf("ParsePolicy() error = %v", err)
	}

	tests := []struct {
		info        platform.Info
		unpublished bool
		catalogOnly bool
	}{
		{platform.Info{System: platform.Windows, Arch: platform.X86_64}, true, false},
		{platform.Info{System: platform.Windows, Arch: platform.AArch64}, true, false},
		{platform.Info{System: platform.MacOS, Arch: platform.I686}, true, false},
		{platform.Info{System: platform.MacOS, Arch: platform.X86_64}, false, false},
		{platform.Info{System: platform.Linux, Arch: platform.ARMv7l}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.info.String(), func(t *testing.T) {
			if got := p.IsUnpublished(tt.info); got != tt.unpublished {
				t.Errorf("IsUnpublished() = %v, want %v", got, tt.unpublished)
			}
			if got := p.IsCatalogOnly(tt.info); got != tt.catalogOnly {
				t.Errorf("IsCatalogOnly() = %v, want %v", got, tt.catalogOnly)
			}
		})
	}

	if _, err := ParsePolicy([]string{"linux"}, nil); err == nil {
		t.Error("ParsePolicy() accepted a pattern without arch")
	}
	if _, err := ParsePolicy(nil, []string{"beos/x86_64"}); err == nil {
		t.Error("ParsePolicy() accepted an unknown system")
	}
}
