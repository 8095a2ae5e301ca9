package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/source"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     commonFlags
		wantRest []string
		wantErr  bool
	}{
		{
			name:     "positional only",
			args:     []string{"1.6"},
			wantRest: []string{"1.6"},
		},
		{
			name:     "separate values",
			args:     []string{"--upstream", "TUNA", "--platform", "windows/x86_64", "latest"},
			want:     commonFlags{upstream: "TUNA", platform: "windows/x86_64"},
			wantRest: []string{"latest"},
		},
		{
			name: "inline values",
			args: []string{"--dest=/tmp/out", "--offline", "-v"},
			want: commonFlags{dest: "/tmp/out", offline: true, verbose: true},
		},
		{
			name: "help",
			args: []string{"-h"},
			want: commonFlags{help: true},
		},
		{
			name:    "missing value",
			args:    []string{"--upstream"},
			wantErr: true,
		},
		{
			name:    "unknown option",
			args:    []string{"--force"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
			if strings.Join(rest, " ") != strings.Join(tt.wantRest, " ") {
				t.Errorf("parseFlags() rest = %v, want %v", rest, tt.wantRest)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    platform.Info
		wantErr bool
	}{
		{"linux/x86_64", platform.Info{System: platform.Linux, Arch: platform.X86_64}, false},
		{"darwin/arm64", platform.Info{System: platform.MacOS, Arch: platform.AArch64}, false},
		{"linux", platform.Info{}, true},
		{"plan9/x86_64", platform.Info{}, true},
	}
	for _, tt := range tests {
		got, err := parsePlatform(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePlatform(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePlatform(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSpecArg(t *testing.T) {
	spec, err := specArg(nil)
	if err != nil || spec.Kind() != version.Empty {
		t.Errorf("specArg(nil) = %v, %v, want empty spec", spec, err)
	}
	spec, err = specArg([]string{"nightly"})
	if err != nil || spec.Kind() != version.Latest {
		t.Errorf("specArg(nightly) = %v, %v, want latest", spec, err)
	}
	if _, err := specArg([]string{"1", "2"}); err == nil {
		t.Error("specArg() accepted two specifiers")
	}
}

func TestPrintUpstreams(t *testing.T) {
	var buf bytes.Buffer
	printUpstreams(&buf, []source.Upstream{
		{Name: "TUNA", Host: "mirrors.tuna.tsinghua.edu.cn", Latency: 12 * time.Millisecond},
		{Name: "Official", Host: "julialang-s3.julialang.org", Latency: 180 * time.Millisecond},
	}, "TUNA")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("printUpstreams() wrote %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "* TUNA") {
		t.Errorf("scoped source not starred: %q", lines[1])
	}
	if !strings.Contains(lines[2], "180ms") {
		t.Errorf("latency not formatted: %q", lines[2])
	}
}
