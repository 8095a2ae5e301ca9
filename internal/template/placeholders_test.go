package template

import (
	"testing"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/relfetch/internal/version"
)

func TestPlaceholders_Full(t *testing.T) {
	tests := []struct {
		name string
		ver  string
		info platform.Info
		want map[string]string
	}{
		{
			name: "linux_x86_64",
			ver:  "1.6.0",
			info: platform.Info{System: platform.Linux, Arch: platform.X86_64},
			want: map[string]string{
				"system": "linux", "System": "Linux", "SYSTEM": "LINUX",
				"sys": "linux", "os": "linux",
				"architecture": "x86_64", "arch": "x64", "Arch": "X64", "ARCH": "X64",
				"osarch": "linux-x86_64", "Osarch": "Linux-x86_64", "OSarch": "LINUX-x86_64",
				"osbit": "linux64", "bit": "64", "extension": "tar.gz",
				"version": "1.6.0", "major_version": "1", "minor_version": "1.6", "patch_version": "1.6.0",
				"vmajor_version": "v1", "vminor_version": "v1.6", "vpatch_version": "v1.6.0",
				"Vminor_version": "V1.6",
				"filename":        "julia-1.6.0-linux-x86_64.tar.gz",
				"latest_filename": "julia-latest-linux64.tar.gz",
			},
		},
		{
			name: "windows_i686",
			ver:  "1.5.3",
			info: platform.Info{System: platform.Windows, Arch: platform.I686},
			want: map[string]string{
				"system": "windows", "sys": "winnt", "Sys": "Winnt", "SYS": "WINNT",
				"os": "win", "Os": "Win", "OS": "WIN",
				"arch": "x86", "osarch": "win32", "Osarch": "Win32", "OSarch": "WIN32",
				"bit": "32", "extension": "exe",
				"filename": "julia-1.5.3-win32.exe",
			},
		},
		{
			name: "macos_prerelease",
			ver:  "1.7.0-rc1",
			info: platform.Info{System: platform.MacOS, Arch: platform.X86_64},
			want: map[string]string{
				"sys": "mac", "osarch": "mac64", "Osarch": "Mac64", "OSarch": "MAC64",
				"version": "1.7.0-rc1", "patch_version": "1.7.0", "vpatch_version": "v1.7.0",
				"filename": "julia-1.7.0-rc1-mac64.dmg",
			},
		},
		{
			name: "linux_aarch64",
			ver:  "1.6.1",
			info: platform.Info{System: platform.Linux, Arch: platform.AArch64},
			want: map[string]string{
				"architecture": "ARMv8", "arch": "aarch64", "Arch": "Aarch64", "ARCH": "AARCH64",
				"osarch": "linux-aarch64", "osbit": "linuxaarch64",
				"filename": "julia-1.6.1-linux-aarch64.tar.gz",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Placeholders(version.MustParse(tt.ver), tt.info, Options{})
			if err != nil {
				t.Fatalf("Placeholders() error = %v", err)
			}
			for k, want := range tt.want {
				if got[k] != want {
					t.Errorf("%s = %q, want %q", k, got[k], want)
				}
			}
		})
	}
}

func TestPlaceholders_Latest(t *testing.T) {
	info := platform.Info{System: platform.Linux, Arch: platform.X86_64}
	got, err := Placeholders(version.MustParse("nightly"), info, Options{})
	if err != nil {
		t.Fatalf("Placeholders() error = %v", err)
	}

	for _, k := range []string{"version", "major_version", "minor_version", "patch_version", "vmajor_version", "vminor_version", "vpatch_version"} {
		if got[k] != "latest" {
			t.Errorf("%s = %q, want latest", k, got[k])
		}
	}
	if got["latest_filename"] != "julia-latest-linux64.tar.gz" {
		t.Errorf("latest_filename = %q", got["latest_filename"])
	}
}

func TestPlaceholders_Errors(t *testing.T) {
	valid := platform.Info{System: platform.Linux, Arch: platform.X86_64}

	if _, err := Placeholders(version.MustParse("1.2"), valid, Options{}); err == nil {
		t.Error("expected error for partial version")
	}

	_, err := Placeholders(version.MustParse("1.2.0"), platform.Info{System: "plan9", Arch: platform.X86_64}, Options{})
	if !fault.UnsupportedPlatform.Has(err) {
		t.Errorf("error = %v, want UnsupportedPlatform", err)
	}

	_, err = Placeholders(version.MustParse("1.2.0"), valid, Options{Filename: "pkg-$flavor.$extension"})
	if !fault.MissingPlaceholder.Has(err) {
		t.Errorf("error = %v, want MissingPlaceholder", err)
	}
}

func TestPlaceholders_Options(t *testing.T) {
	info := platform.Info{System: platform.FreeBSD, Arch: platform.X86_64}
	got, err := Placeholders(version.MustParse("1.6.0"), info, Options{
		Filename: "$pkg-$version-$osarch.$extension",
		Extra:    map[string]string{"pkg": "tool", "version": "overridden"},
	})
	if err != nil {
		t.Fatalf("Placeholders() error = %v", err)
	}
	if got["filename"] != "tool-1.6.0-freebsd-x86_64.tar.gz" {
		t.Errorf("filename = %q", got["filename"])
	}
}

func TestMirrorPath(t *testing.T) {
	info := platform.Info{System: platform.Linux, Arch: platform.X86_64}
	got, err := MirrorPath(version.MustParse("1.6.2"), info, Options{})
	if err != nil {
		t.Fatalf("MirrorPath() error = %v", err)
	}
	if want := "releases/v1.6/julia-1.6.2-linux-x86_64.tar.gz"; got != want {
		t.Errorf("MirrorPath() = %q, want %q", got, want)
	}
}
