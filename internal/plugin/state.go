package plugin

// State tracks a plugin through its lifecycle.
type State int

const (
	// StateUnloaded means the plugin is known but has no interpreter.
	StateUnloaded State = iota

	// StateLoaded means the entry file ran but activate has not.
	StateLoaded

	// StateEnabled means the plugin is active and receiving hooks.
	StateEnabled

	// StateDisabled means the plugin was deactivated, by the user or by
	// the host after a fault or resource breach.
	StateDisabled
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
