package api

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	glua "github.com/yuin/gopher-lua"

	"github.com/nebulafusion/nebula/internal/browser"
	"github.com/nebulafusion/nebula/internal/plugin/lua"
	"github.com/nebulafusion/nebula/internal/plugin/sandbox"
	"github.com/nebulafusion/nebula/internal/plugin/security"
)

// GlobalName is the Lua global the API is bound under.
const GlobalName = "nebula"

// ErrDenied is raised into Lua when the guard rejects a call.
var ErrDenied = errors.New("permission denied")

// HookService registers hook callbacks on behalf of one plugin. The
// plugin identity is fixed by whoever constructs the service.
type HookService interface {
	Register(name string, fn *glua.LFunction) error
	Unregister(name string) error
}

// Options carries everything a plugin's API surface needs.
type Options struct {
	PluginID string
	Browser  *browser.Browser
	Guard    *security.Guard
	Sandbox  *sandbox.Sandbox
	Hooks    HookService

	// DataDir is the plugin's private storage directory.
	DataDir string

	// Log receives the plugin's log output; nil falls back to the
	// standard logger.
	Log *log.Entry
}

func (o *Options) validate() error {
	switch {
	case o.PluginID == "":
		return errors.New("api: PluginID is required")
	case o.Browser == nil:
		return errors.New("api: Browser is required")
	case o.Guard == nil:
		return errors.New("api: Guard is required")
	case o.Sandbox == nil:
		return errors.New("api: Sandbox is required")
	case o.Hooks == nil:
		return errors.New("api: Hooks is required")
	}
	return nil
}

// binder holds the per-plugin state shared by all namespace bindings.
type binder struct {
	L      *glua.LState
	bridge *lua.Bridge
	opts   Options
	logger *log.Entry
}

// Bind installs the `nebula` global on L. Call before the plugin's entry
// file runs; L must not be executing concurrently.
func Bind(L *glua.LState, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	logger := opts.Log
	if logger == nil {
		logger = log.WithField("plugin", opts.PluginID)
	}

	b := &binder{
		L:      L,
		bridge: lua.NewBridge(L),
		opts:   opts,
		logger: logger,
	}

	root := L.NewTable()
	root.RawSetString("plugin_id", glua.LString(opts.PluginID))

	root.RawSetString("log", b.logTable())
	root.RawSetString("hooks", b.hooksTable())
	root.RawSetString("tabs", b.tabsTable())
	root.RawSetString("bookmarks", b.bookmarksTable())
	root.RawSetString("history", b.historyTable())
	root.RawSetString("downloads", b.downloadsTable())
	root.RawSetString("cookies", b.cookiesTable())
	root.RawSetString("storage", b.storageTable())
	root.RawSetString("settings", b.settingsTable())
	root.RawSetString("ui", b.uiTable())
	root.RawSetString("network", b.networkTable())
	root.RawSetString("fs", b.fsTable())

	L.SetGlobal(GlobalName, root)
	return nil
}

// guard accounts the call against the sandbox and runs it past the
// security guard. Methods with no permission mapping pass.
func (b *binder) guard(method string) error {
	b.opts.Sandbox.RecordAPICall(method)
	if !b.opts.Guard.BeforeAPICall(b.opts.PluginID, method) {
		return fmt.Errorf("%w: %s", ErrDenied, method)
	}
	return nil
}

// fn wraps a Go function as a Lua function on a new table entry.
func (b *binder) fn(tbl *glua.LTable, name string, f func(args []interface{}) (interface{}, error)) {
	tbl.RawSetString(name, b.L.NewFunction(b.bridge.WrapGoFunc(f)))
}

func argString(args []interface{}, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

func argInt(args []interface{}, i int) int64 {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func argBool(args []interface{}, i int) bool {
	if i >= len(args) {
		return false
	}
	v, _ := args[i].(bool)
	return v
}
