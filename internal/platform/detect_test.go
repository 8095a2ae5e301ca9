package platform

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/shirou/gopsutil/v4/host"
)

// MockDetector is a test implementation of Detector.
type MockDetector struct {
	host *Host
	err  error
}

// NewMockDetector creates a mock detector with specified return values.
func NewMockDetector(h *Host, err error) Detector {
	return &MockDetector{host: h, err: err}
}

// Detect returns the pre-configured host and error.
func (m *MockDetector) Detect(ctx context.Context) (*Host, error) {
	return m.host, m.err
}

func stubDetector(stat *host.InfoStat, err error) *RealDetector {
	return &RealDetector{hostInfo: func(ctx context.Context) (*host.InfoStat, error) {
		return stat, err
	}}
}

func TestRealDetector_Detect(t *testing.T) {
	h, err := NewDetector().Detect(context.Background())
	if err != nil {
		// Hosts outside the release matrix (e.g. riscv64) are expected to fail.
		if _, archErr := ParseArch(runtime.GOARCH); archErr != nil {
			t.Skipf("unsupported test host: %v", err)
		}
		t.Fatalf("Detect() error = %v", err)
	}

	if !h.Valid() {
		t.Errorf("Detect() returned invalid info %v", h.Info)
	}
	if h.RawSystem == "" || h.RawArch == "" {
		t.Errorf("raw fields should be set: %+v", h)
	}
	if runtime.GOOS != "linux" && h.Distro != "" {
		t.Errorf("Distro should be empty on non-Linux, got %v", h.Distro)
	}
}

func TestRealDetector_Stubbed(t *testing.T) {
	tests := []struct {
		name       string
		stat       *host.InfoStat
		wantSystem System
		wantArch   Arch
		wantFamily string
	}{
		{
			name:       "ubuntu_amd64",
			stat:       &host.InfoStat{OS: "linux", KernelArch: "x86_64", Platform: "Ubuntu", PlatformFamily: "debian", PlatformVersion: "22.04"},
			wantSystem: Linux,
			wantArch:   X86_64,
			wantFamily: FamilyDebian,
		},
		{
			name:       "alpine_is_musl",
			stat:       &host.InfoStat{OS: "linux", KernelArch: "aarch64", Platform: "alpine", PlatformFamily: "alpine", PlatformVersion: "3.19.1"},
			wantSystem: Musl,
			wantArch:   AArch64,
			wantFamily: FamilyAlpine,
		},
		{
			name:       "macos_arm64",
			stat:       &host.InfoStat{OS: "darwin", KernelArch: "arm64"},
			wantSystem: MacOS,
			wantArch:   AArch64,
		},
		{
			name:       "windows_x86_64",
			stat:       &host.InfoStat{OS: "windows", KernelArch: "x86_64"},
			wantSystem: Windows,
			wantArch:   X86_64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := stubDetector(tt.stat, nil).Detect(context.Background())
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if h.System != tt.wantSystem {
				t.Errorf("System = %v, want %v", h.System, tt.wantSystem)
			}
			if h.Arch != tt.wantArch {
				t.Errorf("Arch = %v, want %v", h.Arch, tt.wantArch)
			}
			if h.Family != tt.wantFamily {
				t.Errorf("Family = %v, want %v", h.Family, tt.wantFamily)
			}
		})
	}
}

func TestRealDetector_UnsupportedArch(t *testing.T) {
	_, err := stubDetector(&host.InfoStat{OS: "linux", KernelArch: "s390x"}, nil).Detect(context.Background())
	if err == nil {
		t.Fatal("expected error for s390x")
	}
}

func TestRealDetector_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stubDetector(nil, errors.New("interrupted")).Detect(ctx)
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRealDetector_FallbackToRuntime(t *testing.T) {
	if _, err := ParseArch(runtime.GOARCH); err != nil {
		t.Skip("runtime architecture outside the release matrix")
	}
	if _, err := ParseSystem(runtime.GOOS); err != nil {
		t.Skip("runtime OS outside the release matrix")
	}

	h, err := stubDetector(nil, errors.New("no /etc/os-release")).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if h.RawSystem != runtime.GOOS || h.RawArch != runtime.GOARCH {
		t.Errorf("raw = %s/%s, want %s/%s", h.RawSystem, h.RawArch, runtime.GOOS, runtime.GOARCH)
	}
	if h.Distro != "" {
		t.Errorf("Distro should be empty on fallback, got %v", h.Distro)
	}
}

func TestMockDetector(t *testing.T) {
	want := &Host{Info: Info{System: FreeBSD, Arch: X86_64}}
	got, err := NewMockDetector(want, nil).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != want {
		t.Errorf("Detect() = %v, want %v", got, want)
	}
}
