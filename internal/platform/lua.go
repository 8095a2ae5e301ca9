package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable creates a read-only platform table and injects it into the Lua state as a global.
// This should be called before loading any source configuration code.
func InjectPlatformTable(L *lua.LState, h *Host) error {
	platformTable := L.NewTable()

	// Canonical values and derived labels
	L.SetField(platformTable, "system", lua.LString(h.System))
	L.SetField(platformTable, "arch", lua.LString(h.Arch))
	L.SetField(platformTable, "sys", lua.LString(h.Sys()))
	L.SetField(platformTable, "os", lua.LString(h.OS()))
	L.SetField(platformTable, "osarch", lua.LString(h.OSArch()))
	L.SetField(platformTable, "osbit", lua.LString(h.OSBit()))
	L.SetField(platformTable, "extension", lua.LString(h.Extension()))
	L.SetField(platformTable, "bits", lua.LNumber(h.Bits()))

	// Raw detection data
	L.SetField(platformTable, "raw_system", lua.LString(h.RawSystem))
	L.SetField(platformTable, "raw_arch", lua.LString(h.RawArch))

	// OS booleans
	L.SetField(platformTable, "is_linux", lua.LBool(h.IsLinux()))
	L.SetField(platformTable, "is_musl", lua.LBool(h.System == Musl))
	L.SetField(platformTable, "is_macos", lua.LBool(h.System == MacOS))
	L.SetField(platformTable, "is_windows", lua.LBool(h.System == Windows))
	L.SetField(platformTable, "is_freebsd", lua.LBool(h.System == FreeBSD))
	L.SetField(platformTable, "is_64bit", lua.LBool(h.Bits() == 64))

	// Linux distribution (nil elsewhere)
	if h.IsLinux() && h.Distro != "" {
		distroTable := L.NewTable()
		L.SetField(distroTable, "id", lua.LString(h.Distro))
		L.SetField(distroTable, "family", lua.LString(h.Family))
		L.SetField(distroTable, "version", lua.LString(h.Version))
		L.SetField(platformTable, "distro", distroTable)
	} else {
		L.SetField(platformTable, "distro", lua.LNil)
	}

	// Helper function: when(condition, value)
	// Returns value if condition is true, nil otherwise
	whenFunc := L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	})
	L.SetField(platformTable, "when", whenFunc)

	L.SetGlobal("platform", makeReadOnly(L, platformTable))

	return nil
}

// makeReadOnly makes a Lua table read-only by creating a proxy table with a metatable.
// The proxy redirects reads to the original table but prevents all writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)

	return proxy
}
