// Package api builds the `nebula` table exposed to plugin Lua code.
//
// Bind installs one namespace per concern (tabs, bookmarks, history,
// downloads, cookies, storage, settings, ui, network, fs, hooks, log) on a
// plugin's interpreter. Every call crosses the security guard under the
// calling plugin's identity and is accounted against its sandbox; denied
// calls raise Lua errors the plugin can pcall around.
package api
