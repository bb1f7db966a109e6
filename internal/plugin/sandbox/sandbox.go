// Package sandbox tracks per-plugin resource usage against configured
// limits. One Sandbox exists per enabled plugin. CPU time is accounted by
// the plugin host around interpreter calls; API calls, network requests,
// and file accesses are logged at the API boundary. A background monitor
// compares usage against the limits snapshot on every tick.
//
// File access is the only synchronously enforced check. CPU, memory, and
// network breaches are reported to callbacks; policy (warn vs disable)
// belongs to the caller.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// sensitivePaths are always denied for reads unless covered by an allowed
// root. The settings file holds host configuration no plugin should see.
var sensitivePaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"~/.ssh",
	"~/.nebulafusion/settings.json",
}

// maxLogEntries bounds each access log.
const maxLogEntries = 1000

// defaultMonitorInterval is the tick period of the background monitor.
const defaultMonitorInterval = time.Second

// Usage is a point-in-time snapshot of a plugin's resource consumption.
type Usage struct {
	CPUTime         time.Duration
	CPUPercent      float64
	MemoryBytes     int64
	APICalls        int64
	NetworkRequests int64
	FileAccesses    int64
}

// APICallRecord is one logged API call.
type APICallRecord struct {
	Method string
	Time   time.Time
}

// NetworkRecord is one logged network request.
type NetworkRecord struct {
	URL    string
	Method string
	Time   time.Time
}

// FileAccessRecord is one logged file access.
type FileAccessRecord struct {
	Path string
	Mode string
	Time time.Time
}

// ExceededFunc receives resource limit breaches from the monitor.
type ExceededFunc func(plugin, resource string, value float64)

// ViolationFunc receives synchronous security violations (file access).
type ViolationFunc func(plugin, detail string)

// MemSampler returns the current memory footprint in bytes. The default
// samples process heap usage; per-plugin attribution is not available
// in-process, so treat the value as an upper bound.
type MemSampler func() int64

func heapSampler() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapAlloc)
}

// Sandbox tracks one plugin's resource usage.
type Sandbox struct {
	plugin string
	limits Limits

	mu           sync.Mutex
	cpuTime      time.Duration
	memoryBytes  int64
	apiLog       []APICallRecord
	networkLog   []NetworkRecord
	fileLog      []FileAccessRecord
	apiCalls     int64
	networkCount int64
	fileCount    int64

	// resolved allow-list and deny-list, absolute paths
	allowedRoots []string
	denied       []string

	onExceeded  ExceededFunc
	onViolation ViolationFunc
	memSample   MemSampler
	interval    time.Duration

	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithExceededFunc sets the limit breach callback.
func WithExceededFunc(fn ExceededFunc) Option {
	return func(s *Sandbox) { s.onExceeded = fn }
}

// WithViolationFunc sets the security violation callback.
func WithViolationFunc(fn ViolationFunc) Option {
	return func(s *Sandbox) { s.onViolation = fn }
}

// WithMemSampler replaces the memory sampler.
func WithMemSampler(fn MemSampler) Option {
	return func(s *Sandbox) { s.memSample = fn }
}

// WithMonitorInterval sets the monitor tick period.
func WithMonitorInterval(d time.Duration) Option {
	return func(s *Sandbox) { s.interval = d }
}

// New creates a sandbox for a plugin and starts its monitor goroutine.
// Call Shutdown to stop it.
func New(plugin string, limits Limits, opts ...Option) *Sandbox {
	s := &Sandbox{
		plugin:    plugin,
		limits:    limits.clone(),
		memSample: heapSampler,
		interval:  defaultMonitorInterval,
		started:   time.Now(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, root := range s.limits.FileAccessPaths {
		s.allowedRoots = append(s.allowedRoots, normalizePath(root))
	}
	for _, p := range sensitivePaths {
		s.denied = append(s.denied, normalizePath(p))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.monitor(ctx)

	return s
}

// Plugin returns the plugin this sandbox belongs to.
func (s *Sandbox) Plugin() string {
	return s.plugin
}

// Limits returns the limits snapshot taken at construction.
func (s *Sandbox) Limits() Limits {
	return s.limits.clone()
}

// AddCPUTime accounts plugin execution time. Called by the host around
// every interpreter call.
func (s *Sandbox) AddCPUTime(d time.Duration) {
	s.mu.Lock()
	s.cpuTime += d
	s.mu.Unlock()
}

// RecordAPICall logs one API facade call.
func (s *Sandbox) RecordAPICall(method string) {
	s.mu.Lock()
	s.apiCalls++
	s.apiLog = appendBounded(s.apiLog, APICallRecord{Method: method, Time: time.Now()})
	s.mu.Unlock()
}

// LogNetworkRequest logs a network request and checks the trailing-minute
// rate. A breach is reported, not blocked.
func (s *Sandbox) LogNetworkRequest(url, method string) {
	now := time.Now()

	s.mu.Lock()
	s.networkCount++
	s.networkLog = appendBounded(s.networkLog, NetworkRecord{URL: url, Method: method, Time: now})

	recent := 0
	cutoff := now.Add(-time.Minute)
	for i := len(s.networkLog) - 1; i >= 0; i-- {
		if s.networkLog[i].Time.Before(cutoff) {
			break
		}
		recent++
	}
	limit := s.limits.NetworkRequestsPerMinute
	onExceeded := s.onExceeded
	s.mu.Unlock()

	if limit > 0 && recent > limit {
		log.WithFields(log.Fields{"plugin": s.plugin, "requests": recent}).
			Warn("network request limit exceeded")
		if onExceeded != nil {
			onExceeded(s.plugin, "network_requests_per_minute", float64(recent))
		}
	}
}

// LogFileAccess logs a file access and decides whether it is permitted.
// Writes must land under an allowed root. Reads of sensitive paths are
// denied unless covered by an allowed root. This is the one synchronously
// enforced sandbox check.
func (s *Sandbox) LogFileAccess(path, mode string) bool {
	abs := normalizePath(path)

	s.mu.Lock()
	s.fileCount++
	s.fileLog = appendBounded(s.fileLog, FileAccessRecord{Path: abs, Mode: mode, Time: time.Now()})
	onViolation := s.onViolation
	s.mu.Unlock()

	allowed := false
	for _, root := range s.allowedRoots {
		if isWithin(abs, root) {
			allowed = true
			break
		}
	}

	if isWriteMode(mode) && !allowed {
		detail := "unauthorized file write: " + abs
		log.WithField("plugin", s.plugin).Warn(detail)
		if onViolation != nil {
			onViolation(s.plugin, detail)
		}
		return false
	}

	if !allowed {
		for _, deny := range s.denied {
			if isWithin(abs, deny) {
				detail := "unauthorized access to sensitive file: " + abs
				log.WithField("plugin", s.plugin).Warn(detail)
				if onViolation != nil {
					onViolation(s.plugin, detail)
				}
				return false
			}
		}
	}

	return true
}

// Usage returns a snapshot of current consumption.
func (s *Sandbox) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Usage{
		CPUTime:         s.cpuTime,
		CPUPercent:      s.cpuPercentLocked(),
		MemoryBytes:     s.memoryBytes,
		APICalls:        s.apiCalls,
		NetworkRequests: s.networkCount,
		FileAccesses:    s.fileCount,
	}
}

// APICallLog returns a copy of the API call log.
func (s *Sandbox) APICallLog() []APICallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]APICallRecord, len(s.apiLog))
	copy(out, s.apiLog)
	return out
}

// NetworkRequestLog returns a copy of the network request log.
func (s *Sandbox) NetworkRequestLog() []NetworkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NetworkRecord, len(s.networkLog))
	copy(out, s.networkLog)
	return out
}

// FileAccessLog returns a copy of the file access log.
func (s *Sandbox) FileAccessLog() []FileAccessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FileAccessRecord, len(s.fileLog))
	copy(out, s.fileLog)
	return out
}

// Shutdown stops the monitor and clears the logs. It blocks until the
// monitor goroutine has exited; no callback fires after Shutdown returns.
func (s *Sandbox) Shutdown() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done

		s.mu.Lock()
		s.apiLog = nil
		s.networkLog = nil
		s.fileLog = nil
		s.mu.Unlock()
	})
}

// monitor periodically compares usage against limits.
func (s *Sandbox) monitor(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkLimits()
		}
	}
}

func (s *Sandbox) checkLimits() {
	mem := s.memSample()

	s.mu.Lock()
	s.memoryBytes = mem
	cpuPercent := s.cpuPercentLocked()
	limits := s.limits
	onExceeded := s.onExceeded
	s.mu.Unlock()

	if limits.CPUPercent > 0 && cpuPercent > limits.CPUPercent {
		log.WithField("plugin", s.plugin).
			Warnf("cpu limit exceeded: %.1f%% (limit: %.1f%%)", cpuPercent, limits.CPUPercent)
		if onExceeded != nil {
			onExceeded(s.plugin, "cpu_percent", cpuPercent)
		}
	}

	memMB := float64(mem) / (1024 * 1024)
	if limits.MemoryMB > 0 && memMB > limits.MemoryMB {
		log.WithField("plugin", s.plugin).
			Warnf("memory limit exceeded: %.1fMB (limit: %.1fMB)", memMB, limits.MemoryMB)
		if onExceeded != nil {
			onExceeded(s.plugin, "memory_mb", memMB)
		}
	}
}

// cpuPercentLocked computes the share of wall-clock time spent executing.
// Caller must hold mu.
func (s *Sandbox) cpuPercentLocked() float64 {
	elapsed := time.Since(s.started)
	if elapsed <= 0 {
		return 0
	}
	return float64(s.cpuTime) / float64(elapsed) * 100
}

func appendBounded[T any](logSlice []T, rec T) []T {
	logSlice = append(logSlice, rec)
	if len(logSlice) > maxLogEntries {
		logSlice = logSlice[len(logSlice)-maxLogEntries:]
	}
	return logSlice
}

// normalizePath expands a leading ~ and makes the path absolute.
func normalizePath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// isWithin reports whether path equals root or is nested under it.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

func isWriteMode(mode string) bool {
	switch mode {
	case "w", "a", "w+", "a+", "wb", "ab", "write", "append":
		return true
	}
	return false
}

// String describes the sandbox for logs.
func (s *Sandbox) String() string {
	return fmt.Sprintf("sandbox(%s)", s.plugin)
}
