// Package security implements the plugin permission model and the guard
// hooks that gate privileged browser operations.
//
// Permissions are declared in a plugin's manifest and never change while the
// plugin is loaded. The Checker memoizes lookups and is invalidated only by
// explicit cache clears. API methods and hooks map to required permissions
// through static tables; an operation with no table entry requires no
// permission.
package security
