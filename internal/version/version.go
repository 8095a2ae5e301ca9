// Package version parses release version specifiers and orders concrete
// versions.
//
// A specifier is one of:
//
//	""        empty: the latest stable release ("stable" is an alias)
//	"1", "1.2" partial: the latest stable release with that prefix
//	"1.2.3"   full: exactly that release, optionally with pre-release and
//	          build metadata ("1.2.3-rc1+b5")
//	"latest"  the nightly build ("nightly" is an alias)
//
// Full and latest specifiers are terminal and never need resolution.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Kind classifies a specifier.
type Kind int

const (
	Empty Kind = iota
	Partial
	Full
	Latest
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Partial:
		return "partial"
	case Full:
		return "full"
	case Latest:
		return "latest"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// LatestName is the symbolic name of nightly builds.
const LatestName = "latest"

var specPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?(-[0-9A-Za-z.\-]+)?(\+[0-9A-Za-z.\-]+)?$`)

// Spec is a parsed version specifier. The zero value is the empty spec.
type Spec struct {
	kind     Kind
	segments []int
	pre      string
	build    string
	v        *goversion.Version
}

// Parse parses a specifier. A leading "v" is ignored.
func Parse(s string) (Spec, error) {
	raw := strings.TrimSpace(s)
	switch strings.ToLower(raw) {
	case "", "stable":
		return Spec{kind: Empty}, nil
	case "latest", "nightly":
		return Spec{kind: Latest}, nil
	}

	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "v"), "V")
	m := specPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Spec{}, fmt.Errorf("invalid version specifier %q", s)
	}

	var segs []int
	for _, part := range m[1:4] {
		if part == "" {
			break
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Spec{}, fmt.Errorf("invalid version specifier %q: %w", s, err)
		}
		segs = append(segs, n)
	}

	pre := strings.TrimPrefix(m[4], "-")
	build := strings.TrimPrefix(m[5], "+")
	if len(segs) < 3 {
		if pre != "" || build != "" {
			return Spec{}, fmt.Errorf("invalid version specifier %q: pre-release and build metadata require major.minor.patch", s)
		}
		return Spec{kind: Partial, segments: segs}, nil
	}

	v, err := goversion.NewSemver(trimmed)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid version specifier %q: %w", s, err)
	}
	return Spec{kind: Full, segments: segs, pre: pre, build: build, v: v}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Spec {
	spec, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return spec
}

// New returns the full version major.minor.patch.
func New(major, minor, patch int) Spec {
	return MustParse(fmt.Sprintf("%d.%d.%d", major, minor, patch))
}

// Kind returns the specifier kind.
func (s Spec) Kind() Kind { return s.kind }

// IsTerminal reports whether s needs no resolution.
func (s Spec) IsTerminal() bool { return s.kind == Full || s.kind == Latest }

// IsConcrete is an alias of IsTerminal for values stored in the catalog.
func (s Spec) IsConcrete() bool { return s.IsTerminal() }

// IsStable reports whether s is a full release without a pre-release tag.
func (s Spec) IsStable() bool { return s.kind == Full && s.pre == "" }

// Segments returns a copy of the numeric segments present in the specifier.
func (s Spec) Segments() []int {
	return append([]int(nil), s.segments...)
}

// Major returns the major segment, or 0 when absent.
func (s Spec) Major() int { return s.segment(0) }

// Minor returns the minor segment, or 0 when absent.
func (s Spec) Minor() int { return s.segment(1) }

// Patch returns the patch segment, or 0 when absent.
func (s Spec) Patch() int { return s.segment(2) }

func (s Spec) segment(i int) int {
	if i < len(s.segments) {
		return s.segments[i]
	}
	return 0
}

// String returns the canonical form: "", "1.2", "1.2.3-rc1+b5" or "latest".
func (s Spec) String() string {
	switch s.kind {
	case Empty:
		return ""
	case Latest:
		return LatestName
	}
	parts := make([]string, len(s.segments))
	for i, n := range s.segments {
		parts[i] = strconv.Itoa(n)
	}
	out := strings.Join(parts, ".")
	if s.pre != "" {
		out += "-" + s.pre
	}
	if s.build != "" {
		out += "+" + s.build
	}
	return out
}

// Equal reports whether two specifiers are identical.
func (s Spec) Equal(o Spec) bool {
	return s.kind == o.kind && s.String() == o.String()
}

// Compare orders two concrete versions. Pre-releases sort below their
// release, build metadata is ignored and "latest" sorts above everything. Non-concrete specs sort below
// all concrete ones, padded with zero segments.
func (s Spec) Compare(o Spec) int {
	if s.kind == Latest || o.kind == Latest {
		switch {
		case s.kind == o.kind:
			return 0
		case s.kind == Latest:
			return 1
		default:
			return -1
		}
	}
	if s.v != nil && o.v != nil {
		return s.v.Compare(o.v)
	}
	for i := 0; i < 3; i++ {
		a, b := s.segment(i), o.segment(i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	switch {
	case s.kind == o.kind:
		return 0
	case s.kind == Full:
		return 1
	case o.kind == Full:
		return -1
	}
	return 0
}

// NextPatch returns major.minor.(patch+1).
func (s Spec) NextPatch() Spec { return New(s.Major(), s.Minor(), s.Patch()+1) }

// NextMinor returns major.(minor+1).0.
func (s Spec) NextMinor() Spec { return New(s.Major(), s.Minor()+1, 0) }

// NextMajor returns (major+1).0.0.
func (s Spec) NextMajor() Spec { return New(s.Major()+1, 0, 0) }

// Floor returns the full version obtained by padding the specifier with
// zeros. "1" floors to 1.0.0; empty floors to 0.0.0.
func (s Spec) Floor() Spec {
	return New(s.Major(), s.Minor(), s.Patch())
}

// MatchesPrefix reports whether the concrete version v falls under prefix.
// Matching is segment-wise, so "1.1" matches 1.1.4 but not 1.10.0. The
// empty prefix matches every stable version; "latest" only matches itself.
func MatchesPrefix(v, prefix Spec) bool {
	switch prefix.kind {
	case Empty:
		return v.kind == Full
	case Latest:
		return v.kind == Latest
	case Full:
		return v.Equal(prefix)
	}
	if v.kind != Full {
		return false
	}
	for i, n := range prefix.segments {
		if v.segment(i) != n {
			return false
		}
	}
	return true
}

// BelowFloor reports whether every version the specifier can denote lies
// below floor. Only the segments the specifier carries are compared, so "0"
// is not below 0.6.0 while "0.5" and "0.5.9" are.
func BelowFloor(s, floor Spec) bool {
	switch s.kind {
	case Empty, Latest:
		return false
	case Full:
		return s.Compare(floor) < 0
	}
	for i, n := range s.segments {
		f := floor.segment(i)
		if n != f {
			return n < f
		}
	}
	return false
}

// Compare parses and compares two concrete version strings. Unparsable
// strings sort below valid ones and compare equal to each other.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

// Max returns the greatest of the given concrete versions, or false when
// vs is empty.
func Max(vs []Spec) (Spec, bool) {
	if len(vs) == 0 {
		return Spec{}, false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if v.Compare(best) > 0 {
			best = v
		}
	}
	return best, true
}
