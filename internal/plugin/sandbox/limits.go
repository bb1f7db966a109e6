package sandbox

// Limits are the per-plugin resource limits. A Sandbox snapshots them at
// construction; later configuration changes apply only to new sandboxes.
type Limits struct {
	// CPUPercent is the share of wall-clock time a plugin may spend
	// executing, in percent.
	CPUPercent float64 `yaml:"cpu_percent"`

	// MemoryMB is the memory ceiling in megabytes. Breaches are reported
	// but not enforced.
	MemoryMB float64 `yaml:"memory_mb"`

	// NetworkRequestsPerMinute bounds the trailing-minute request rate.
	// Breaches are reported but not enforced.
	NetworkRequestsPerMinute int `yaml:"network_requests_per_minute"`

	// FileAccessPaths are the directory roots a plugin may write under.
	FileAccessPaths []string `yaml:"file_access_paths"`
}

// DefaultLimits returns the stock plugin limits.
func DefaultLimits() Limits {
	return Limits{
		CPUPercent:               10,
		MemoryMB:                 100,
		NetworkRequestsPerMinute: 60,
		FileAccessPaths:          []string{"~/.nebulafusion/plugins"},
	}
}

// clone deep-copies the limits so a sandbox keeps an immutable snapshot.
func (l Limits) clone() Limits {
	out := l
	out.FileAccessPaths = make([]string, len(l.FileAccessPaths))
	copy(out.FileAccessPaths, l.FileAccessPaths)
	return out
}
