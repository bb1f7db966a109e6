package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/nebulafusion/nebula/internal/browser"
	"github.com/nebulafusion/nebula/internal/plugin/hook"
	"github.com/nebulafusion/nebula/internal/plugin/sandbox"
	"github.com/nebulafusion/nebula/internal/plugin/security"
)

// cpuHardLimitFactor is how far past its CPU limit a plugin may run
// before the manager disables it outright. Below this the breach is only
// audited.
const cpuHardLimitFactor = 5

// EventKind classifies manager events.
type EventKind string

const (
	EventLoaded      EventKind = "loaded"
	EventUnloaded    EventKind = "unloaded"
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
	EventFaulted     EventKind = "faulted"
	EventInstalled   EventKind = "installed"
	EventUninstalled EventKind = "uninstalled"
)

// Event notifies subscribers of a plugin lifecycle change.
type Event struct {
	Kind   EventKind
	Plugin string
	Detail string
}

// Config configures a Manager.
type Config struct {
	// Dirs are the plugin search directories. The first entry is the
	// user directory, where install and uninstall operate; on duplicate
	// plugin IDs the earlier directory wins.
	Dirs []string

	// DataRoot holds per-plugin private data. Defaults to
	// <user dir>/../plugin-data.
	DataRoot string

	// Limits are the per-plugin resource limits.
	Limits sandbox.Limits

	// BlockedURLs are blocked at startup.
	BlockedURLs []string
}

// Manager wires the whole plugin stack together: security, hook bus,
// browser state, and the loader. It is the single entry point the rest of
// the application uses.
type Manager struct {
	cfg Config

	audit   *security.AuditLog
	checker *security.Checker
	policy  *security.ContentPolicy
	guard   *security.Guard
	bus     *hook.Bus
	browser *browser.Browser
	loader  *Loader

	mu           sync.RWMutex
	observers    []func(Event)
	fingerprints map[string]string
}

// NewManager builds the plugin stack from configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Dirs) == 0 {
		return nil, errors.New("plugin: no plugin directories configured")
	}
	for i, dir := range cfg.Dirs {
		cfg.Dirs[i] = expandPath(dir)
	}
	if cfg.DataRoot == "" {
		cfg.DataRoot = filepath.Join(filepath.Dir(cfg.Dirs[0]), "plugin-data")
	}
	cfg.DataRoot = expandPath(cfg.DataRoot)
	if cfg.Limits.MemoryMB == 0 {
		cfg.Limits = sandbox.DefaultLimits()
	}
	if err := os.MkdirAll(cfg.Dirs[0], 0o755); err != nil {
		return nil, fmt.Errorf("plugin: create user directory: %w", err)
	}

	m := &Manager{cfg: cfg, fingerprints: make(map[string]string)}

	m.audit = security.NewAuditLog(0)
	perms := NewPermStore()
	m.checker = security.NewChecker(perms, m.audit)
	m.policy = security.NewContentPolicy(m.audit)
	m.guard = security.NewGuard(m.checker, m.policy, m.audit)

	for _, url := range cfg.BlockedURLs {
		m.policy.Block(url, "blocked by configuration")
	}

	m.bus = hook.NewBus(
		hook.WithGate(func(plugin string, h hook.Hook) bool {
			return m.guard.BeforeHookExecution(plugin, string(h))
		}),
		hook.WithDisableFunc(m.handleFault),
	)

	m.browser = browser.New(func(h hook.Hook, args ...interface{}) {
		m.bus.Trigger(context.Background(), h, args...)
	})

	m.loader = NewLoader(Deps{
		Browser:    m.browser,
		Bus:        m.bus,
		Guard:      m.guard,
		Checker:    m.checker,
		Audit:      m.audit,
		Limits:     cfg.Limits,
		DataRoot:   cfg.DataRoot,
		OnExceeded: m.handleExceeded,
	}, perms)

	return m, nil
}

// Browser returns the browser state shared with plugins.
func (m *Manager) Browser() *browser.Browser { return m.browser }

// Bus returns the hook bus.
func (m *Manager) Bus() *hook.Bus { return m.bus }

// Audit returns the security audit log.
func (m *Manager) Audit() *security.AuditLog { return m.audit }

// Policy returns the URL content policy.
func (m *Manager) Policy() *security.ContentPolicy { return m.policy }

// Subscribe registers an observer for manager events.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Manager) emit(kind EventKind, plugin, detail string) {
	m.mu.RLock()
	observers := make([]func(Event), len(m.observers))
	copy(observers, m.observers)
	m.mu.RUnlock()

	ev := Event{Kind: kind, Plugin: plugin, Detail: detail}
	for _, fn := range observers {
		fn(ev)
	}
}

// LoadAll discovers plugins in the configured directories, loads them,
// and activates each successfully loaded one. A plugin ID found in more
// than one directory is taken from the earliest directory only. Individual
// failures are logged and skipped.
func (m *Manager) LoadAll(ctx context.Context) {
	for _, dir := range m.discover() {
		id, err := m.loader.Load(ctx, dir)
		if err != nil {
			log.WithField("dir", dir).WithError(err).Error("plugin load failed")
			continue
		}
		m.rememberFingerprint(id, dir)
		m.emit(EventLoaded, id, dir)

		if err := m.loader.Activate(ctx, id); err != nil {
			log.WithField("plugin", id).WithError(err).Error("plugin activation failed")
			continue
		}
		m.emit(EventActivated, id, "")
	}

	// Announce startup once the whole set is active, so every plugin's
	// registrations are in place before the first delivery.
	m.bus.Trigger(ctx, hook.OnBrowserStart)
}

// discover returns plugin directories to load, deduplicated by plugin ID
// with the earliest search directory winning.
func (m *Manager) discover() []string {
	seen := make(map[string]string)
	var dirs []string

	for _, root := range m.cfg.Dirs {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			manifest, err := LoadManifestFromDir(dir)
			if err != nil {
				log.WithField("dir", dir).WithError(err).Warn("skipping plugin directory")
				continue
			}
			if prev, ok := seen[manifest.ID]; ok {
				log.WithFields(log.Fields{
					"plugin": manifest.ID,
					"dir":    dir,
					"using":  prev,
				}).Warn("duplicate plugin id, keeping earlier directory")
				continue
			}
			seen[manifest.ID] = dir
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Load loads and activates a single plugin directory.
func (m *Manager) Load(ctx context.Context, dir string) (string, error) {
	id, err := m.loader.Load(ctx, dir)
	if err != nil {
		return "", err
	}
	m.rememberFingerprint(id, dir)
	m.emit(EventLoaded, id, dir)

	if err := m.loader.Activate(ctx, id); err != nil {
		return id, err
	}
	m.emit(EventActivated, id, "")
	return id, nil
}

// Unload removes a plugin from the runtime.
func (m *Manager) Unload(ctx context.Context, id string) error {
	if err := m.loader.Unload(ctx, id); err != nil {
		return err
	}
	m.forgetFingerprint(id)
	m.emit(EventUnloaded, id, "")
	return nil
}

// Enable activates a loaded plugin.
func (m *Manager) Enable(ctx context.Context, id string) error {
	if err := m.loader.Activate(ctx, id); err != nil {
		return err
	}
	m.emit(EventActivated, id, "")
	return nil
}

// Disable deactivates a plugin without unloading it.
func (m *Manager) Disable(ctx context.Context, id string) error {
	if err := m.loader.Deactivate(ctx, id); err != nil {
		return err
	}
	m.emit(EventDeactivated, id, "")
	return nil
}

// Reload reloads a plugin from disk, preserving its enabled state.
func (m *Manager) Reload(ctx context.Context, id string) error {
	if err := m.loader.Reload(ctx, id); err != nil {
		return err
	}
	if info, ok := m.loader.Get(id); ok {
		m.rememberFingerprint(id, info.Dir)
	}
	return nil
}

// Plugins returns all loaded plugins in load order.
func (m *Manager) Plugins() []Info {
	return m.loader.Plugins()
}

// Get returns one plugin's snapshot.
func (m *Manager) Get(id string) (Info, bool) {
	return m.loader.Get(id)
}

// Shutdown unloads every plugin and stops the stack.
func (m *Manager) Shutdown(ctx context.Context) {
	m.bus.Trigger(ctx, hook.OnBrowserExit)
	m.loader.UnloadAll(ctx)
}

// handleFault is the bus's disable sink: a plugin whose callback faulted
// repeatedly or fatally is deactivated and the fault audited.
func (m *Manager) handleFault(plugin string, reason error) {
	detail := "hook callback fault"
	if reason != nil {
		detail = reason.Error()
	}
	m.audit.Record(security.EventSecurityViolation, plugin, detail, security.SeverityWarning)
	m.bus.UnregisterAll(plugin)

	if err := m.loader.Deactivate(context.Background(), plugin); err != nil {
		log.WithField("plugin", plugin).WithError(err).Warn("deactivate after fault failed")
		return
	}
	m.emit(EventFaulted, plugin, detail)
}

// handleExceeded receives sandbox resource breaches. Breaches are audited
// and, for CPU only, a runaway plugin far past its limit is disabled.
func (m *Manager) handleExceeded(plugin, resource string, value float64) {
	detail := fmt.Sprintf("%s usage %.1f over limit", resource, value)
	m.audit.Record(security.EventResourceExceeded, plugin, detail, security.SeverityWarning)

	if resource == "cpu_percent" && value > m.cfg.Limits.CPUPercent*cpuHardLimitFactor {
		// Called from the sandbox monitor goroutine; deactivate can
		// run plugin code, so it must not block the monitor.
		go func() {
			if err := m.loader.Deactivate(context.Background(), plugin); err == nil {
				m.emit(EventFaulted, plugin, detail)
			}
		}()
	}
}

// expandPath resolves a leading ~ against the home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
