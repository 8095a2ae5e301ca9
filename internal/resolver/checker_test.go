package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/availability"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/source"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// flatProber reports the same latency for every URL.
type flatProber struct{}

func (flatProber) HostLatencies(ctx context.Context, urls []string) map[string]time.Duration {
	out := make(map[string]time.Duration, len(urls))
	for _, u := range urls {
		out[u] = time.Millisecond
	}
	return out
}

func newNetworkChecker(t *testing.T, templates ...string) *NetworkChecker {
	t.Helper()
	reg, err := source.NewRegistry([]source.ReleaseSource{
		{Name: "test", StableURLs: templates, Timeout: time.Second},
	}, source.Config{Prober: flatProber{}})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return &NetworkChecker{
		Registry: reg,
		Checker:  availability.New(availability.Options{}),
		Timeout:  time.Second,
	}
}

func TestNetworkChecker_Exists(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		if r.URL.Path == "/releases/julia-1.6.0-linux-x86_64.tar.gz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	n := newNetworkChecker(t, server.URL+"/missing/$filename", server.URL+"/releases/$filename")

	tests := []struct {
		version string
		want    bool
	}{
		{"1.6.0", true},
		{"1.6.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := n.Exists(context.Background(), version.MustParse(tt.version), linux64)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists(%s) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
	if atomic.LoadInt32(&hits) == 0 {
		t.Error("server never received a request")
	}
}

func TestNetworkChecker_BrokenTemplate(t *testing.T) {
	n := newNetworkChecker(t, "https://example.invalid/$nosuchkey")
	_, err := n.Exists(context.Background(), version.MustParse("1.6.0"), linux64)
	if !fault.MissingPlaceholder.Has(err) {
		t.Errorf("Exists() error = %v, want MissingPlaceholder", err)
	}
}
