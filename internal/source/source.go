// Package source holds the registry of release download sources and ranks
// their candidate URLs by host latency.
package source

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

// ReleaseSource is one upstream or mirror. URL fields hold templates
// rendered by package template. A ReleaseSource is not modified after
// construction.
type ReleaseSource struct {
	Name        string
	StableURLs  []string      // templates for numbered releases
	LatestURLs  []string      // templates for nightly builds, may be empty
	VersionsURL string        // versions index, may be empty
	Timeout     time.Duration // per-request bound for this source, 0 for the caller default
}

// Templates returns the URL templates for the release class of v.
func (s ReleaseSource) Templates(v version.Spec) []string {
	if v.Kind() == version.Latest {
		return s.LatestURLs
	}
	return s.StableURLs
}

// Validate checks the invariants NewRegistry relies on.
func (s ReleaseSource) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("source name is empty")
	}
	if len(s.StableURLs) == 0 {
		return fmt.Errorf("source %q has no release URL templates", s.Name)
	}
	for _, u := range append(append([]string(nil), s.StableURLs...), s.LatestURLs...) {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("source %q has an empty URL template", s.Name)
		}
	}
	if s.Timeout < 0 {
		return fmt.Errorf("source %q has a negative timeout", s.Name)
	}
	return nil
}

// clone returns a deep copy so registry state never aliases caller slices.
func (s ReleaseSource) clone() ReleaseSource {
	s.StableURLs = append([]string(nil), s.StableURLs...)
	s.LatestURLs = append([]string(nil), s.LatestURLs...)
	return s
}
