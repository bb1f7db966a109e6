package api

import (
	"strings"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/nebulafusion/nebula/internal/browser"
	"github.com/nebulafusion/nebula/internal/plugin/lua"
	"github.com/nebulafusion/nebula/internal/plugin/sandbox"
	"github.com/nebulafusion/nebula/internal/plugin/security"
)

// grantSource grants a fixed permission set to every plugin.
type grantSource struct {
	perms []security.Permission
}

func (s grantSource) PluginPermissions(string) ([]security.Permission, bool) {
	return s.perms, true
}

// stubHooks records hook registrations.
type stubHooks struct {
	registered   []string
	unregistered []string
}

func (s *stubHooks) Register(name string, _ *glua.LFunction) error {
	s.registered = append(s.registered, name)
	return nil
}

func (s *stubHooks) Unregister(name string) error {
	s.unregistered = append(s.unregistered, name)
	return nil
}

type fixture struct {
	state   *lua.State
	browser *browser.Browser
	hooks   *stubHooks
	sandbox *sandbox.Sandbox
	audit   *security.AuditLog
}

func newFixture(t *testing.T, perms ...security.Permission) *fixture {
	t.Helper()

	audit := security.NewAuditLog(0)
	checker := security.NewChecker(grantSource{perms: perms}, audit)
	policy := security.NewContentPolicy(audit)
	guard := security.NewGuard(checker, policy, audit)

	limits := sandbox.DefaultLimits()
	limits.FileAccessPaths = []string{t.TempDir()}
	sb := sandbox.New("test-plugin", limits, sandbox.WithMonitorInterval(time.Hour))
	t.Cleanup(sb.Shutdown)

	state := lua.NewState()
	t.Cleanup(state.Close)

	f := &fixture{
		state:   state,
		browser: browser.New(nil),
		hooks:   &stubHooks{},
		sandbox: sb,
		audit:   audit,
	}

	err := Bind(state.LuaState(), Options{
		PluginID: "test-plugin",
		Browser:  f.browser,
		Guard:    guard,
		Sandbox:  sb,
		Hooks:    f.hooks,
		DataDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return f
}

func (f *fixture) run(t *testing.T, code string) error {
	t.Helper()
	return f.state.LuaState().DoString(code)
}

func TestBindRequiresOptions(t *testing.T) {
	s := lua.NewState()
	defer s.Close()

	if err := Bind(s.LuaState(), Options{}); err == nil {
		t.Fatal("Bind with empty options should fail")
	}
}

func TestTabsGrantedPlugin(t *testing.T) {
	f := newFixture(t, security.PermissionTabs)

	code := `
		local tab = nebula.tabs.create("https://example.com")
		created_id = tab.id
		tabs = nebula.tabs.list()
	`
	if err := f.run(t, code); err != nil {
		t.Fatalf("run: %v", err)
	}

	tabs := f.browser.Tabs.List()
	if len(tabs) != 1 || tabs[0].URL != "https://example.com" {
		t.Fatalf("tabs = %v", tabs)
	}
	id := f.state.GetGlobal("created_id").String()
	if id != tabs[0].ID {
		t.Fatalf("created_id = %q, want %q", id, tabs[0].ID)
	}
}

func TestTabsDeniedWithoutPermission(t *testing.T) {
	f := newFixture(t, security.PermissionBookmarks)

	err := f.run(t, `nebula.tabs.create("https://example.com")`)
	if err == nil {
		t.Fatal("expected permission error")
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("err = %v", err)
	}
	if len(f.browser.Tabs.List()) != 0 {
		t.Fatal("tab created despite denial")
	}
	if len(f.audit.EventsFor("test-plugin")) == 0 {
		t.Fatal("denial not audited")
	}
}

func TestNavigationToMaliciousURLDenied(t *testing.T) {
	f := newFixture(t, security.PermissionTabs)

	err := f.run(t, `nebula.tabs.create("https://phishing.example.com")`)
	if err == nil {
		t.Fatal("malicious URL should be denied")
	}
	if len(f.browser.Tabs.List()) != 0 {
		t.Fatal("tab created despite malicious URL")
	}
}

func TestBookmarksRoundtripFromLua(t *testing.T) {
	f := newFixture(t, security.PermissionBookmarks)

	code := `
		local bm = nebula.bookmarks.add("https://go.dev", "Go", "dev")
		nebula.bookmarks.remove(bm.id)
		remaining = #nebula.bookmarks.list()
	`
	if err := f.run(t, code); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.state.GetGlobal("remaining"); got != glua.LNumber(0) {
		t.Fatalf("remaining = %v, want 0", got)
	}
}

func TestStorageRoundtrip(t *testing.T) {
	f := newFixture(t)

	code := `
		nebula.storage.set("prefs.theme", "dark")
		nebula.storage.set("count", 3)
		theme = nebula.storage.get("prefs.theme")
		count = nebula.storage.get("count")
		missing = nebula.storage.get("nope")
	`
	if err := f.run(t, code); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.state.GetGlobal("theme").String(); got != "dark" {
		t.Fatalf("theme = %q", got)
	}
	if got := f.state.GetGlobal("count"); got != glua.LNumber(3) {
		t.Fatalf("count = %v", got)
	}
	if got := f.state.GetGlobal("missing"); got != glua.LNil {
		t.Fatalf("missing = %v, want nil", got)
	}

	if err := f.run(t, `nebula.storage.delete("prefs.theme"); after = nebula.storage.get("prefs.theme")`); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.state.GetGlobal("after"); got != glua.LNil {
		t.Fatalf("after delete = %v, want nil", got)
	}
}

func TestHooksRegisterThroughService(t *testing.T) {
	f := newFixture(t)

	code := `
		nebula.hooks.register("onTabCreated", function(id, url) end)
		nebula.hooks.unregister("onTabCreated")
	`
	if err := f.run(t, code); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.hooks.registered) != 1 || f.hooks.registered[0] != "onTabCreated" {
		t.Fatalf("registered = %v", f.hooks.registered)
	}
	if len(f.hooks.unregistered) != 1 {
		t.Fatalf("unregistered = %v", f.hooks.unregistered)
	}
}

func TestUIButtonsTaggedWithPlugin(t *testing.T) {
	f := newFixture(t, security.PermissionAll)

	if err := f.run(t, `btn = nebula.ui.add_toolbar_button("Label", "Tip")`); err != nil {
		t.Fatalf("run: %v", err)
	}
	buttons := f.browser.UI.ToolbarButtons()
	if len(buttons) != 1 || buttons[0].Plugin != "test-plugin" {
		t.Fatalf("buttons = %v", buttons)
	}
}

func TestAPICallsAccountedInSandbox(t *testing.T) {
	f := newFixture(t, security.PermissionBookmarks)

	if err := f.run(t, `nebula.bookmarks.list()`); err != nil {
		t.Fatalf("run: %v", err)
	}
	calls := f.sandbox.APICallLog()
	if len(calls) != 1 || calls[0].Method != "get_bookmarks" {
		t.Fatalf("api call log = %v", calls)
	}
}

func TestFSConfinedToAllowedRoots(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, `nebula.fs.write("/etc/evil.txt", "x")`)
	if err == nil {
		t.Fatal("write outside allowed roots should fail")
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("err = %v", err)
	}
}
