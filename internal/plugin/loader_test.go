package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nebulafusion/nebula/internal/browser"
	"github.com/nebulafusion/nebula/internal/plugin/hook"
	"github.com/nebulafusion/nebula/internal/plugin/sandbox"
	"github.com/nebulafusion/nebula/internal/plugin/security"
)

// writePlugin creates a plugin directory under root and returns it.
func writePlugin(t *testing.T, root, id, entry string, perms ...string) string {
	t.Helper()

	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	permJSON := ""
	for i, p := range perms {
		if i > 0 {
			permJSON += ","
		}
		permJSON += fmt.Sprintf("%q", p)
	}
	manifest := fmt.Sprintf(`{
		"id": %q, "name": %q, "version": "1.0.0",
		"author": "test", "description": "test plugin",
		"permissions": [%s]
	}`, id, id, permJSON)

	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultEntry), []byte(entry), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

const basicEntry = `
plugin = {}
function plugin.activate() end
function plugin.deactivate() end
`

func newTestLoader(t *testing.T) (*Loader, *security.Checker, *hook.Bus) {
	t.Helper()

	perms := NewPermStore()
	audit := security.NewAuditLog(0)
	checker := security.NewChecker(perms, audit)
	policy := security.NewContentPolicy(audit)
	guard := security.NewGuard(checker, policy, audit)
	bus := hook.NewBus()

	limits := sandbox.DefaultLimits()
	limits.FileAccessPaths = []string{t.TempDir()}

	l := NewLoader(Deps{
		Browser:  browser.New(nil),
		Bus:      bus,
		Guard:    guard,
		Checker:  checker,
		Audit:    audit,
		Limits:   limits,
		DataRoot: t.TempDir(),
	}, perms)
	t.Cleanup(func() { l.UnloadAll(context.Background()) })

	return l, checker, bus
}

func TestLoadErrorTaxonomy(t *testing.T) {
	l, _, _ := newTestLoader(t)
	ctx := context.Background()
	root := t.TempDir()

	if _, err := l.Load(ctx, filepath.Join(root, "missing")); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("missing dir: %v, want ErrPathNotFound", err)
	}

	file := filepath.Join(root, "afile")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(ctx, file); !errors.Is(err, ErrNotADirectory) {
		t.Errorf("file path: %v, want ErrNotADirectory", err)
	}

	empty := filepath.Join(root, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(ctx, empty); !errors.Is(err, ErrManifestMissing) {
		t.Errorf("no manifest: %v, want ErrManifestMissing", err)
	}

	noEntry := writePlugin(t, root, "no-entry", basicEntry)
	if err := os.Remove(filepath.Join(noEntry, DefaultEntry)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(ctx, noEntry); !errors.Is(err, ErrEntryMissing) {
		t.Errorf("no entry: %v, want ErrEntryMissing", err)
	}
}

func TestLoadRequiresPluginExport(t *testing.T) {
	l, _, _ := newTestLoader(t)
	dir := writePlugin(t, t.TempDir(), "no-export", `x = 1`)

	if _, err := l.Load(context.Background(), dir); !errors.Is(err, ErrNoPluginExport) {
		t.Fatalf("err = %v, want ErrNoPluginExport", err)
	}
	if l.IsLoaded("no-export") {
		t.Fatal("failed plugin should not be registered")
	}
}

func TestLoadIsIdempotentPerID(t *testing.T) {
	l, _, _ := newTestLoader(t)
	ctx := context.Background()
	dir := writePlugin(t, t.TempDir(), "once", basicEntry)

	id, err := l.Load(ctx, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	again, err := l.Load(ctx, dir)
	if err != nil || again != id {
		t.Fatalf("second Load = (%q, %v), want (%q, nil)", again, err, id)
	}
	if len(l.Plugins()) != 1 {
		t.Fatalf("plugin count = %d, want 1", len(l.Plugins()))
	}
}

func TestActivateRunsHookRegistration(t *testing.T) {
	l, _, bus := newTestLoader(t)
	ctx := context.Background()

	entry := `
		plugin = {}
		function plugin.activate()
			nebula.hooks.register("onTabCreated", function(id, url) end)
		end
		function plugin.deactivate() end
	`
	dir := writePlugin(t, t.TempDir(), "hooky", entry, "tabs")

	id, err := l.Load(ctx, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := bus.RegisteredBy(id); len(got) != 0 {
		t.Fatalf("hooks registered before activate: %v", got)
	}

	if err := l.Activate(ctx, id); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	got := bus.RegisteredBy(id)
	if len(got) != 1 || got[0] != hook.OnTabCreated {
		t.Fatalf("RegisteredBy = %v", got)
	}

	info, _ := l.Get(id)
	if info.State != StateEnabled {
		t.Fatalf("state = %v, want enabled", info.State)
	}
}

func TestUnloadClearsRegistrationsAndPermissions(t *testing.T) {
	l, checker, bus := newTestLoader(t)
	ctx := context.Background()

	entry := `
		plugin = {}
		function plugin.activate()
			nebula.hooks.register("onBookmarkAdded", function() end)
		end
	`
	dir := writePlugin(t, t.TempDir(), "cleanup", entry, "bookmarks")

	id, err := l.Load(ctx, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Activate(ctx, id); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !checker.Has(id, security.PermissionBookmarks) {
		t.Fatal("permission missing while loaded")
	}

	if err := l.Unload(ctx, id); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if l.IsLoaded(id) {
		t.Fatal("still loaded")
	}
	if len(bus.RegisteredBy(id)) != 0 {
		t.Fatal("hook registrations survived unload")
	}
	if checker.Has(id, security.PermissionBookmarks) {
		t.Fatal("permission survived unload")
	}
	if err := l.Unload(ctx, id); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("second Unload = %v, want ErrNotLoaded", err)
	}
}

func TestReloadPreservesEnabledState(t *testing.T) {
	l, _, _ := newTestLoader(t)
	ctx := context.Background()
	root := t.TempDir()

	enabled := writePlugin(t, root, "stays-on", basicEntry)
	id1, err := l.Load(ctx, enabled)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Activate(ctx, id1); err != nil {
		t.Fatal(err)
	}

	disabled := writePlugin(t, root, "stays-off", basicEntry)
	id2, err := l.Load(ctx, disabled)
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Reload(ctx, id1); err != nil {
		t.Fatalf("Reload enabled: %v", err)
	}
	if err := l.Reload(ctx, id2); err != nil {
		t.Fatalf("Reload loaded-only: %v", err)
	}

	if info, _ := l.Get(id1); info.State != StateEnabled {
		t.Errorf("reloaded plugin state = %v, want enabled", info.State)
	}
	if info, _ := l.Get(id2); info.State != StateLoaded {
		t.Errorf("reloaded plugin state = %v, want loaded", info.State)
	}
}

func TestLifecycleMethodsAreOptional(t *testing.T) {
	l, _, _ := newTestLoader(t)
	ctx := context.Background()
	dir := writePlugin(t, t.TempDir(), "bare", `plugin = {}`)

	id, err := l.Load(ctx, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Activate(ctx, id); err != nil {
		t.Fatalf("Activate without method: %v", err)
	}
	if err := l.Deactivate(ctx, id); err != nil {
		t.Fatalf("Deactivate without method: %v", err)
	}
}

func TestActivateFailureKeepsState(t *testing.T) {
	l, _, _ := newTestLoader(t)
	ctx := context.Background()

	entry := `
		plugin = {}
		function plugin.activate() error("nope") end
	`
	dir := writePlugin(t, t.TempDir(), "broken", entry)

	id, err := l.Load(ctx, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Activate(ctx, id); err == nil {
		t.Fatal("Activate should fail")
	}
	if info, _ := l.Get(id); info.State != StateLoaded {
		t.Fatalf("state = %v, want loaded after failed activate", info.State)
	}
}

func TestActivateReturningFalseDeclines(t *testing.T) {
	l, _, _ := newTestLoader(t)
	ctx := context.Background()

	entry := `
		plugin = {}
		function plugin.activate() return false end
	`
	dir := writePlugin(t, t.TempDir(), "declines", entry)

	id, err := l.Load(ctx, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Activate(ctx, id); !errors.Is(err, ErrActivateRejected) {
		t.Fatalf("Activate = %v, want ErrActivateRejected", err)
	}
	if info, _ := l.Get(id); info.State != StateLoaded {
		t.Fatalf("state = %v, want loaded after declined activate", info.State)
	}

	// A truthy return activates normally.
	okDir := writePlugin(t, t.TempDir(), "accepts", `
		plugin = {}
		function plugin.activate() return true end
	`)
	okID, err := l.Load(ctx, okDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Activate(ctx, okID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if info, _ := l.Get(okID); info.State != StateEnabled {
		t.Fatalf("state = %v, want enabled", info.State)
	}
}
