// Package lua wraps gopher-lua for plugin execution.
//
// Each plugin owns one State: a Lua interpreter opened with only the safe
// standard libraries, its module loader neutered, and every entry point
// serialized behind a mutex (gopher-lua states are not goroutine-safe).
// Calls into plugin code carry a context whose deadline is enforced through
// the interpreter's own context support, so runaway Lua is interrupted at
// the next VM checkpoint.
//
// The Bridge converts values across the Go/Lua boundary in both directions
// and wraps Go functions for use from Lua. Browser functionality is never
// exposed through Lua standard libraries; it arrives exclusively via the
// host API bound into the state before the plugin's entry file runs.
package lua
