// Package plugin implements the NebulaFusion plugin runtime.
//
// Plugins are directories holding a manifest.json and a Lua entry file.
// The Loader runs each plugin in its own sandboxed interpreter, captures
// its exported plugin table, and drives activate/deactivate against it.
// Hook callbacks registered through the API are dispatched by the hook
// bus with per-callback fault isolation; a plugin whose callback faults
// is deactivated, not crashed into the host.
//
// The Manager wires the full stack: security (permission checker, URL
// policy, audit log), the per-plugin resource sandboxes, the shared
// browser state, plugin discovery across the configured directories, and
// install/uninstall of plugin archives. Subpackages:
//
//	hook      fixed hook vocabulary and the dispatch bus
//	security  permissions, audit log, URL content policy
//	sandbox   per-plugin resource accounting and file confinement
//	lua       sandboxed gopher-lua wrapper and value bridge
//	api       the `nebula` table bound into plugin interpreters
package plugin
