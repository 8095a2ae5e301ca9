package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

const sampleIndex = `{
  "1.6.0": {
    "stable": true,
    "files": [
      {"os": "linux", "arch": "x86_64", "triplet": "x86_64-linux-gnu", "kind": "archive"},
      {"os": "linux", "arch": "x86_64", "triplet": "x86_64-linux-musl", "kind": "archive"},
      {"os": "winnt", "arch": "i686", "triplet": "i686-w64-mingw32", "kind": "installer"},
      {"os": "linux", "arch": "powerpc64le", "triplet": "powerpc64le-linux-gnu", "kind": "archive"}
    ]
  },
  "1.7.0-rc1": {
    "stable": false,
    "files": [
      {"os": "mac", "arch": "x86_64", "triplet": "x86_64-apple-darwin14", "kind": "archive"}
    ]
  },
  "0.5.2": {
    "stable": true,
    "files": [
      {"os": "linux", "arch": "x86_64", "triplet": "x86_64-linux-gnu", "kind": "archive"}
    ]
  }
}`

func newTestRefresher(t *testing.T, stableOnly bool) *Refresher {
	t.Helper()
	r, err := NewRefresher(RefresherOptions{Floor: version.MustParse("0.6.0"), StableOnly: stableOnly})
	if err != nil {
		t.Fatalf("NewRefresher() error = %v", err)
	}
	return r
}

func TestDecode(t *testing.T) {
	r := newTestRefresher(t, true)
	got, err := r.Decode([]byte(sampleIndex))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := map[string]bool{
		"1.6.0 linux/x86_64": true,
		"1.6.0 musl/x86_64":  true,
		"1.6.0 windows/i686": true,
	}
	if len(got) != len(want) {
		t.Fatalf("Decode() = %v, want %d entries", got, len(want))
	}
	for _, e := range got {
		if !want[e.String()] {
			t.Errorf("unexpected entry %s", e)
		}
	}
}

func TestDecode_BuildMetadata(t *testing.T) {
	r := newTestRefresher(t, true)
	got, err := r.Decode([]byte(`{
  "1.8.2+0": {
    "stable": true,
    "files": [{"os": "linux", "arch": "x86_64", "triplet": "x86_64-linux-gnu"}]
  }
}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 1 || got[0].Version != "1.8.2+0" {
		t.Errorf("Decode() = %v, want [1.8.2+0 linux/x86_64]", got)
	}
}

func TestDecode_IncludesUnstable(t *testing.T) {
	r := newTestRefresher(t, false)
	got, err := r.Decode([]byte(sampleIndex))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	found := false
	for _, e := range got {
		if e.Version == "1.7.0-rc1" {
			found = true
		}
		if e.Version == "0.5.2" {
			t.Error("release below floor was not dropped")
		}
	}
	if !found {
		t.Error("unstable release missing when StableOnly is false")
	}
}

func TestDecode_SchemaViolation(t *testing.T) {
	r := newTestRefresher(t, true)
	tests := []struct {
		name string
		body string
	}{
		{"not_json", `{`},
		{"missing_files", `{"1.6.0": {"stable": true}}`},
		{"wrong_type", `{"1.6.0": {"stable": "yes", "files": []}}`},
		{"file_missing_triplet", `{"1.6.0": {"stable": true, "files": [{"os": "linux", "arch": "x86_64"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Decode([]byte(tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})
	mux.HandleFunc("/versions.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleIndex))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store, err := Open("", Options{NoSeed: true})
	if err != nil {
		t.Fatal(err)
	}

	r := newTestRefresher(t, true)
	added, err := r.Refresh(context.Background(), store, []string{server.URL + "/broken.json", server.URL + "/versions.json"})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if added != 3 {
		t.Errorf("Refresh() added = %d, want 3", added)
	}

	added, err = r.Refresh(context.Background(), store, []string{server.URL + "/versions.json"})
	if err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if added != 0 {
		t.Errorf("second Refresh() added = %d, want 0", added)
	}
}

func TestRefresh_AllFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	store, _ := Open("", Options{NoSeed: true})
	_, err := newTestRefresher(t, true).Refresh(context.Background(), store, []string{server.URL + "/versions.json"})
	if !fault.NetworkUnavailable.Has(err) {
		t.Errorf("Refresh() error = %v, want NetworkUnavailable", err)
	}
}
