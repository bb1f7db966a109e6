package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nebulafusion/nebula/internal/plugin/security"
)

func newTestManager(t *testing.T, extraDirs ...string) *Manager {
	t.Helper()

	userDir := filepath.Join(t.TempDir(), "plugins")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(Config{
		Dirs:     append([]string{userDir}, extraDirs...),
		DataRoot: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}

// events collects manager events.
type events struct {
	mu   sync.Mutex
	seen []Event
}

func (e *events) record(ev Event) {
	e.mu.Lock()
	e.seen = append(e.seen, ev)
	e.mu.Unlock()
}

func (e *events) kinds(plugin string) []EventKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []EventKind
	for _, ev := range e.seen {
		if ev.Plugin == plugin {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func TestLoadAllFirstDirectoryWins(t *testing.T) {
	extra := t.TempDir()
	m := newTestManager(t, extra)

	// Same plugin ID in the user dir and the extra dir; the user dir
	// copy must win.
	userCopy := writePlugin(t, m.userDir(), "dup", `
		plugin = {}
		function plugin.activate() nebula.storage.set("from", "user") end
	`)
	writePlugin(t, extra, "dup", `
		plugin = {}
		function plugin.activate() nebula.storage.set("from", "extra") end
	`)
	writePlugin(t, extra, "only-extra", basicEntry)

	m.LoadAll(context.Background())

	plugins := m.Plugins()
	if len(plugins) != 2 {
		t.Fatalf("loaded %d plugins, want 2", len(plugins))
	}
	info, ok := m.Get("dup")
	if !ok || info.Dir != userCopy {
		t.Fatalf("dup loaded from %q, want user dir copy %q", info.Dir, userCopy)
	}
	if info.State != StateEnabled {
		t.Fatalf("dup state = %v, want enabled", info.State)
	}
}

func TestHookDispatchEndToEnd(t *testing.T) {
	m := newTestManager(t)

	// The plugin bookmarks every page a tab opens.
	writePlugin(t, m.userDir(), "auto-bookmark", `
		plugin = {}
		function plugin.activate()
			nebula.hooks.register("onTabCreated", function(id, url)
				nebula.bookmarks.add(url, "auto", "")
			end)
		end
	`, "tabs", "bookmarks")

	m.LoadAll(context.Background())
	m.Browser().Tabs.Open("https://example.com")

	marks := m.Browser().Bookmarks.FindByURL("https://example.com")
	if len(marks) != 1 {
		t.Fatalf("bookmarks = %v, want the opened URL bookmarked", marks)
	}
}

func TestHookGateBlocksUngrantedPlugin(t *testing.T) {
	m := newTestManager(t)

	// Registers a tabs hook without requesting the tabs permission, so
	// the gate must veto delivery.
	writePlugin(t, m.userDir(), "nosy", `
		plugin = {}
		function plugin.activate()
			nebula.hooks.register("onTabCreated", function(id, url)
				nebula.storage.set("saw", url)
			end)
		end
	`)

	m.LoadAll(context.Background())
	m.Browser().Tabs.Open("https://example.com")

	denials := m.Audit().Events(security.EventPermissionDenied, 0)
	if len(denials) == 0 {
		t.Fatal("gated dispatch should record a permission denial")
	}
}

func TestFaultingCallbackDisablesPlugin(t *testing.T) {
	m := newTestManager(t)
	evs := &events{}
	m.Subscribe(evs.record)

	writePlugin(t, m.userDir(), "faulty", `
		plugin = {}
		function plugin.activate()
			nebula.hooks.register("onTabCreated", function(id, url)
				error("boom")
			end)
		end
	`, "tabs")

	m.LoadAll(context.Background())
	m.Browser().Tabs.Open("https://example.com")

	info, _ := m.Get("faulty")
	if info.State != StateDisabled {
		t.Fatalf("state = %v, want disabled after fault", info.State)
	}

	found := false
	for _, kind := range evs.kinds("faulty") {
		if kind == EventFaulted {
			found = true
		}
	}
	if !found {
		t.Fatal("no faulted event emitted")
	}

	// The disabled plugin must not receive further dispatches.
	m.Browser().Tabs.Open("https://example.org")
	if got := len(m.Bus().RegisteredBy("faulty")); got != 0 {
		t.Fatalf("faulty plugin still has %d registrations", got)
	}
}

func TestBrowserStartReachesAllPluginsDespiteFault(t *testing.T) {
	m := newTestManager(t)

	// Three plugins on the startup hook: one faults, the other two
	// bookmark a marker page. Dispatch must reach all three and only the
	// faulter may be disabled.
	writePlugin(t, m.userDir(), "crasher", `
		plugin = {}
		function plugin.activate()
			nebula.hooks.register("onBrowserStart", function()
				error("boom")
			end)
		end
	`)
	for _, id := range []string{"greeter-a", "greeter-b"} {
		writePlugin(t, m.userDir(), id, `
			plugin = {}
			function plugin.activate()
				nebula.hooks.register("onBrowserStart", function()
					nebula.bookmarks.add("https://example.com/started", "started", "")
				end)
			end
		`, "bookmarks")
	}

	m.LoadAll(context.Background())

	marks := m.Browser().Bookmarks.FindByURL("https://example.com/started")
	if len(marks) != 2 {
		t.Fatalf("bookmarks = %d, want both surviving plugins to run", len(marks))
	}
	if info, _ := m.Get("crasher"); info.State != StateDisabled {
		t.Fatalf("crasher state = %v, want disabled", info.State)
	}
	for _, id := range []string{"greeter-a", "greeter-b"} {
		if info, _ := m.Get(id); info.State != StateEnabled {
			t.Fatalf("%s state = %v, want enabled", id, info.State)
		}
	}
}

func TestEnableDisableCycle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	writePlugin(t, m.userDir(), "toggler", basicEntry)
	m.LoadAll(ctx)

	if err := m.Disable(ctx, "toggler"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if info, _ := m.Get("toggler"); info.State != StateDisabled {
		t.Fatalf("state = %v, want disabled", info.State)
	}

	if err := m.Enable(ctx, "toggler"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if info, _ := m.Get("toggler"); info.State != StateEnabled {
		t.Fatalf("state = %v, want enabled", info.State)
	}

	if err := m.Enable(ctx, "ghost"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Enable(ghost) = %v, want ErrNotLoaded", err)
	}
}

func TestRescanReconcilesPluginSet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.LoadAll(ctx)
	if got := len(m.Plugins()); got != 0 {
		t.Fatalf("loaded %d plugins from empty dir", got)
	}

	// A plugin directory appearing after startup is picked up by rescan.
	dir := writePlugin(t, m.userDir(), "late", basicEntry)
	m.rescan(ctx)
	if info, ok := m.Get("late"); !ok || info.State != StateEnabled {
		t.Fatalf("late plugin not loaded by rescan: %+v", info)
	}

	// Removing the directory unloads the plugin on the next rescan.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	m.rescan(ctx)
	if _, ok := m.Get("late"); ok {
		t.Fatal("removed plugin still loaded after rescan")
	}
}

func TestRescanReloadsOnlyChangedPlugins(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// The entry file bookmarks a marker page every time it runs, so the
	// bookmark count tells how often each plugin was (re)loaded.
	entry := `
		plugin = {}
		nebula.bookmarks.add("https://example.com/loaded", "loaded", "")
	`
	writePlugin(t, m.userDir(), "steady", entry, "bookmarks")
	editedDir := writePlugin(t, m.userDir(), "edited", entry, "bookmarks")

	marker := func() int {
		return len(m.Browser().Bookmarks.FindByURL("https://example.com/loaded"))
	}

	m.LoadAll(ctx)
	if got := marker(); got != 2 {
		t.Fatalf("loads after LoadAll = %d, want 2", got)
	}

	// Nothing changed: rescan must not re-run any entry file.
	m.rescan(ctx)
	if got := marker(); got != 2 {
		t.Fatalf("loads after no-op rescan = %d, want 2", got)
	}

	// Touch one plugin's entry file; only that plugin reloads.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(editedDir, DefaultEntry), future, future); err != nil {
		t.Fatal(err)
	}
	m.rescan(ctx)
	if got := marker(); got != 3 {
		t.Fatalf("loads after edit rescan = %d, want 3", got)
	}
}

func TestBlockedURLsFromConfig(t *testing.T) {
	userDir := filepath.Join(t.TempDir(), "plugins")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(Config{
		Dirs:        []string{userDir},
		DataRoot:    t.TempDir(),
		BlockedURLs: []string{"https://bad.example"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Shutdown(context.Background())

	if !m.Policy().IsBlocked("https://bad.example") {
		t.Fatal("configured URL not blocked")
	}
}
