// Package browser holds the host-side browsing state plugins observe and
// manipulate: tabs, bookmarks, history, downloads, cookies, settings, and
// the UI surface. Stores are in-memory and goroutine-safe. Mutations emit
// the corresponding extension hook through the Notify callback so plugin
// callbacks fire without the stores knowing about the plugin layer.
package browser
