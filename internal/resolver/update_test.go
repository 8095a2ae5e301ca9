package resolver

import (
	"context"
	"testing"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/catalog"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

func TestUpdateCatalog(t *testing.T) {
	store := newCatalog(t, linux64, "1.1.0")
	checker := newFakeChecker("1.1.0", "1.1.1", "1.2.0", "1.2.1", "latest")
	r := New(Options{Catalog: store, Checker: checker})

	armv7Windows := platform.Info{System: platform.Windows, Arch: platform.ARMv7l}
	report, err := r.UpdateCatalog(context.Background(), []platform.Info{linux64, armv7Windows})
	if err != nil {
		t.Fatalf("UpdateCatalog() error = %v", err)
	}

	if report.Added != 4 {
		t.Errorf("UpdateCatalog() added = %d, want 4", report.Added)
	}
	if report.Platforms != 1 {
		t.Errorf("UpdateCatalog() platforms = %d, want 1", report.Platforms)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != armv7Windows {
		t.Errorf("UpdateCatalog() skipped = %v, want [%s]", report.Skipped, armv7Windows)
	}

	for _, v := range []string{"1.1.1", "1.2.0", "1.2.1", "latest"} {
		e, _ := catalog.NewEntry(version.MustParse(v), linux64)
		if !store.Has(e) {
			t.Errorf("catalog missing %s after update", v)
		}
	}
}

func TestUpdateCatalog_Idempotent(t *testing.T) {
	store := newCatalog(t, linux64, "1.0.0")
	checker := newFakeChecker("1.0.0", "1.0.1")
	r := New(Options{Catalog: store, Checker: checker})

	if _, err := r.UpdateCatalog(context.Background(), []platform.Info{linux64}); err != nil {
		t.Fatalf("first UpdateCatalog() error = %v", err)
	}
	report, err := r.UpdateCatalog(context.Background(), []platform.Info{linux64})
	if err != nil {
		t.Fatalf("second UpdateCatalog() error = %v", err)
	}
	if report.Added != 0 {
		t.Errorf("second UpdateCatalog() added = %d, want 0", report.Added)
	}
}

func TestUpdateCatalog_RequiresChecker(t *testing.T) {
	r := New(Options{Catalog: newCatalog(t, linux64)})
	if _, err := r.UpdateCatalog(context.Background(), nil); err == nil {
		t.Error("UpdateCatalog() without checker error = nil")
	}
}
