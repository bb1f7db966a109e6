package lua

import (
	glua "github.com/yuin/gopher-lua"
)

// safeModules are the only modules plugin code may require. Everything else
// is rejected; there is no disk-backed module loading at all.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// restrict removes the escape hatches from a freshly opened state.
//
// Plugins get no dofile/loadfile/load, no io/os/debug, and a require that
// only resolves the safe built-in modules. All host functionality is bound
// explicitly under the API table.
func restrict(L *glua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, glua.LNil)
	}

	neuterPackage(L)
	installSafeRequire(L)
}

// neuterPackage clears package.path/cpath and drops everything from
// package.loaded except the safe modules, preventing pre-injected loaders
// from resurfacing.
func neuterPackage(L *glua.LState) {
	pkg := L.GetGlobal("package")
	pkgTable, ok := pkg.(*glua.LTable)
	if !ok {
		return
	}

	L.SetField(pkgTable, "path", glua.LString(""))
	L.SetField(pkgTable, "cpath", glua.LString(""))

	loaded, ok := L.GetField(pkgTable, "loaded").(*glua.LTable)
	if !ok {
		return
	}

	keep := map[string]bool{"_G": true, "package": true}
	for name := range safeModules {
		keep[name] = true
	}

	var remove []string
	loaded.ForEach(func(k, _ glua.LValue) {
		if ks, ok := k.(glua.LString); ok && !keep[string(ks)] {
			remove = append(remove, string(ks))
		}
	})
	for _, key := range remove {
		loaded.RawSetString(key, glua.LNil)
	}
}

// installSafeRequire replaces require with a whitelist-only resolver.
func installSafeRequire(L *glua.LState) {
	original := L.GetGlobal("require")

	L.SetGlobal("require", L.NewFunction(func(L *glua.LState) int {
		name := L.CheckString(1)

		if safeModules[name] {
			L.Push(original)
			L.Push(glua.LString(name))
			L.Call(1, 1)
			return 1
		}

		// RaiseError longjmps; the return is for the compiler.
		L.RaiseError("module %q is not available", name)
		return 0
	}))
}
