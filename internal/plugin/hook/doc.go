// Package hook implements the browser hook registry: a fixed vocabulary of
// extension points that plugins attach callbacks to, and a dispatcher that
// invokes those callbacks in registration order with per-callback fault
// isolation. A callback that panics, errors, or times out never prevents the
// remaining callbacks from running; the offending plugin is reported to a
// disable sink after dispatch completes.
package hook
