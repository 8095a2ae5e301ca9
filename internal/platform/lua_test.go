package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestInjectPlatformTable_Linux(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	h := &Host{
		Info:      Info{System: Linux, Arch: X86_64},
		RawSystem: "linux",
		RawArch:   "x86_64",
		Distro:    "ubuntu",
		Family:    FamilyDebian,
		Version:   "22.04",
	}

	if err := InjectPlatformTable(L, h); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	tests := []struct {
		name string
		code string
		want lua.LValue
	}{
		{"system", `return platform.system`, lua.LString("linux")},
		{"arch", `return platform.arch`, lua.LString("x86_64")},
		{"sys", `return platform.sys`, lua.LString("linux")},
		{"os", `return platform.os`, lua.LString("linux")},
		{"osarch", `return platform.osarch`, lua.LString("linux-x86_64")},
		{"osbit", `return platform.osbit`, lua.LString("linux64")},
		{"extension", `return platform.extension`, lua.LString("tar.gz")},
		{"bits", `return platform.bits`, lua.LNumber(64)},
		{"is_linux", `return platform.is_linux`, lua.LTrue},
		{"is_musl", `return platform.is_musl`, lua.LFalse},
		{"is_macos", `return platform.is_macos`, lua.LFalse},
		{"is_windows", `return platform.is_windows`, lua.LFalse},
		{"is_64bit", `return platform.is_64bit`, lua.LTrue},
		{"distro.id", `return platform.distro.id`, lua.LString("ubuntu")},
		{"distro.family", `return platform.distro.family`, lua.LString("debian")},
		{"distro.version", `return platform.distro.version`, lua.LString("22.04")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err != nil {
				t.Fatalf("DoString(%q) error = %v", tt.code, err)
			}
			got := L.Get(-1)
			L.Pop(1)
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestInjectPlatformTable_Windows(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	h := &Host{Info: Info{System: Windows, Arch: I686}, RawSystem: "windows", RawArch: "386"}
	if err := InjectPlatformTable(L, h); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	if err := L.DoString(`
		assert(platform.is_windows == true, "is_windows")
		assert(platform.is_linux == false, "is_linux")
		assert(platform.sys == "winnt", "sys")
		assert(platform.osarch == "win32", "osarch")
		assert(platform.extension == "exe", "extension")
		assert(platform.distro == nil, "distro should be nil")
		assert(platform.is_64bit == false, "is_64bit")
	`); err != nil {
		t.Errorf("windows platform table: %v", err)
	}
}

func TestPlatformTable_ReadOnly(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	h := &Host{Info: Info{System: MacOS, Arch: X86_64}}
	if err := InjectPlatformTable(L, h); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	tests := []struct {
		name string
		code string
	}{
		{"modify_existing", `platform.system = "windows"`},
		{"add_new", `platform.custom = true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := L.DoString(tt.code)
			if err == nil {
				t.Fatalf("expected error for %q", tt.code)
			}
		})
	}

	if err := L.DoString(`assert(platform.system == "macos")`); err != nil {
		t.Errorf("platform table was modified: %v", err)
	}
}

func TestPlatformTable_WhenHelper(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	h := &Host{Info: Info{System: Musl, Arch: X86_64}, Distro: "alpine", Family: FamilyAlpine}
	if err := InjectPlatformTable(L, h); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	err := L.DoString(`
		urls = {
			platform.when(platform.is_musl, "https://example.org/musl/$filename"),
			platform.when(platform.is_windows, "https://example.org/win/$filename"),
		}
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	urls := L.GetGlobal("urls").(*lua.LTable)
	first := urls.RawGetInt(1)
	if s, ok := first.(lua.LString); !ok || !strings.Contains(string(s), "/musl/") {
		t.Errorf("urls[1] = %v, want musl url", first)
	}
	if urls.RawGetInt(2) != lua.LNil {
		t.Errorf("urls[2] = %v, want nil", urls.RawGetInt(2))
	}
}
