package plugin

import (
	"context"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/nebulafusion/nebula/internal/plugin/security"
)

// PermStore holds the permission grants of loaded plugins. It is the
// security checker's PermissionSource, created before the loader so the
// two sides have no construction cycle.
type PermStore struct {
	mu     sync.RWMutex
	grants map[string][]security.Permission
}

// NewPermStore creates an empty permission store.
func NewPermStore() *PermStore {
	return &PermStore{grants: make(map[string][]security.Permission)}
}

// PluginPermissions implements security.PermissionSource.
func (p *PermStore) PluginPermissions(plugin string) ([]security.Permission, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	perms, ok := p.grants[plugin]
	return perms, ok
}

func (p *PermStore) set(plugin string, perms []security.Permission) {
	p.mu.Lock()
	p.grants[plugin] = perms
	p.mu.Unlock()
}

func (p *PermStore) remove(plugin string) {
	p.mu.Lock()
	delete(p.grants, plugin)
	p.mu.Unlock()
}

// Info is a read-only view of a loaded plugin.
type Info struct {
	Manifest Manifest
	State    State
	Dir      string
}

// record is the loader's book-keeping for one plugin.
type record struct {
	host  *Host
	state State
}

// Loader owns plugin lifecycles: load, activate, deactivate, reload, and
// unload. One plugin ID maps to at most one loaded instance.
type Loader struct {
	mu    sync.RWMutex
	deps  Deps
	perms *PermStore

	plugins map[string]*record
	order   []string
}

// NewLoader creates a Loader. perms must be the store backing the
// security checker in deps.
func NewLoader(deps Deps, perms *PermStore) *Loader {
	return &Loader{
		deps:    deps,
		perms:   perms,
		plugins: make(map[string]*record),
	}
}

// Load reads a plugin directory, runs its entry file, and leaves the
// plugin in StateLoaded. Loading an already-loaded ID is a no-op that
// returns the ID.
func (l *Loader) Load(ctx context.Context, dir string) (string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, dir)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	}

	m, err := LoadManifestFromDir(dir)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.plugins[m.ID]; ok {
		log.WithField("plugin", m.ID).Warn("plugin already loaded")
		return m.ID, nil
	}

	if _, err := os.Stat(m.EntryPath()); err != nil {
		return "", fmt.Errorf("%w: %s", ErrEntryMissing, m.EntryPath())
	}

	// Permissions must be visible before the entry file runs, since it
	// may call the API immediately.
	l.perms.set(m.ID, m.PermissionList())
	l.deps.Checker.ClearCacheFor(m.ID)

	h := newHost(m, l.deps)
	if err := h.load(ctx); err != nil {
		h.close()
		l.perms.remove(m.ID)
		l.deps.Checker.ClearCacheFor(m.ID)
		return "", fmt.Errorf("load %s: %w", m.ID, err)
	}

	l.plugins[m.ID] = &record{host: h, state: StateLoaded}
	l.order = append(l.order, m.ID)

	log.WithFields(log.Fields{"plugin": m.ID, "version": m.Version}).Info("plugin loaded")
	return m.ID, nil
}

// Activate calls the plugin's activate method and enables hook delivery.
func (l *Loader) Activate(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.plugins[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	if rec.state == StateEnabled {
		return nil
	}

	// A failed or declined activate leaves the plugin in its prior state.
	if err := rec.host.activate(ctx); err != nil {
		return fmt.Errorf("activate %s: %w", id, err)
	}
	rec.state = StateEnabled

	log.WithField("plugin", id).Info("plugin activated")
	return nil
}

// Deactivate calls the plugin's deactivate method and stops hook delivery.
func (l *Loader) Deactivate(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deactivateLocked(ctx, id)
}

func (l *Loader) deactivateLocked(ctx context.Context, id string) error {
	rec, ok := l.plugins[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	if rec.state != StateEnabled {
		return nil
	}

	err := rec.host.deactivate(ctx)
	rec.state = StateDisabled
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", id, err)
	}

	log.WithField("plugin", id).Info("plugin deactivated")
	return nil
}

// Unload deactivates the plugin if needed and releases its runtime.
func (l *Loader) Unload(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.plugins[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	if rec.state == StateEnabled {
		// Unload proceeds even when deactivate fails; the plugin is
		// going away regardless.
		if err := l.deactivateLocked(ctx, id); err != nil {
			log.WithField("plugin", id).WithError(err).Warn("deactivate during unload failed")
		}
	}

	rec.host.close()
	l.perms.remove(id)
	l.deps.Checker.ClearCacheFor(id)

	delete(l.plugins, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	log.WithField("plugin", id).Info("plugin unloaded")
	return nil
}

// Reload unloads and loads the plugin from its directory, preserving
// whether it was enabled.
func (l *Loader) Reload(ctx context.Context, id string) error {
	l.mu.RLock()
	rec, ok := l.plugins[id]
	if !ok {
		l.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	dir := rec.host.manifest.Dir()
	wasEnabled := rec.state == StateEnabled
	l.mu.RUnlock()

	if err := l.Unload(ctx, id); err != nil {
		return err
	}
	if _, err := l.Load(ctx, dir); err != nil {
		return err
	}
	if wasEnabled {
		return l.Activate(ctx, id)
	}
	return nil
}

// Get returns a snapshot of one plugin.
func (l *Loader) Get(id string) (Info, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.plugins[id]
	if !ok {
		return Info{}, false
	}
	return l.infoLocked(rec), true
}

// Plugins returns snapshots of all loaded plugins in load order.
func (l *Loader) Plugins() []Info {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Info, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.infoLocked(l.plugins[id]))
	}
	return out
}

// IsLoaded reports whether the ID refers to a loaded plugin.
func (l *Loader) IsLoaded(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.plugins[id]
	return ok
}

// UnloadAll unloads every plugin, most recently loaded first.
func (l *Loader) UnloadAll(ctx context.Context) {
	l.mu.RLock()
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	l.mu.RUnlock()

	for i := len(ids) - 1; i >= 0; i-- {
		if err := l.Unload(ctx, ids[i]); err != nil {
			log.WithField("plugin", ids[i]).WithError(err).Warn("unload failed")
		}
	}
}

func (l *Loader) infoLocked(rec *record) Info {
	return Info{
		Manifest: *rec.host.manifest,
		State:    rec.state,
		Dir:      rec.host.manifest.Dir(),
	}
}
