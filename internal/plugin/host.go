package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	glua "github.com/yuin/gopher-lua"

	"github.com/nebulafusion/nebula/internal/browser"
	"github.com/nebulafusion/nebula/internal/plugin/api"
	"github.com/nebulafusion/nebula/internal/plugin/hook"
	plua "github.com/nebulafusion/nebula/internal/plugin/lua"
	"github.com/nebulafusion/nebula/internal/plugin/sandbox"
	"github.com/nebulafusion/nebula/internal/plugin/security"
)

// ExportName is the global table a plugin's entry file must define. Its
// activate and deactivate fields, when present, are called on enable and
// disable.
const ExportName = "plugin"

// Deps are the shared collaborators every plugin host uses.
type Deps struct {
	Browser *browser.Browser
	Bus     *hook.Bus
	Guard   *security.Guard
	Checker *security.Checker
	Audit   *security.AuditLog

	// Limits apply to each plugin's sandbox.
	Limits sandbox.Limits

	// DataRoot holds one private data directory per plugin.
	DataRoot string

	// OnExceeded receives sandbox resource breaches.
	OnExceeded sandbox.ExceededFunc
}

// Host runs one loaded plugin: its interpreter, sandbox, and export table.
type Host struct {
	manifest *Manifest
	deps     Deps

	state   *plua.State
	sandbox *sandbox.Sandbox
	export  *glua.LTable
	logger  *log.Entry
}

// newHost creates the runtime for a plugin without executing any code.
func newHost(m *Manifest, deps Deps) *Host {
	logger := log.WithField("plugin", m.ID)

	opts := []sandbox.Option{}
	if deps.OnExceeded != nil {
		opts = append(opts, sandbox.WithExceededFunc(deps.OnExceeded))
	}
	if deps.Audit != nil {
		audit := deps.Audit
		id := m.ID
		opts = append(opts, sandbox.WithViolationFunc(func(_, detail string) {
			audit.Record(security.EventSecurityViolation, id, detail, security.SeverityCritical)
		}))
	}

	return &Host{
		manifest: m,
		deps:     deps,
		sandbox:  sandbox.New(m.ID, deps.Limits, opts...),
		logger:   logger,
	}
}

// load binds the API, runs the entry file, and captures the export table.
func (h *Host) load(ctx context.Context) error {
	h.state = plua.NewState()

	err := api.Bind(h.state.LuaState(), api.Options{
		PluginID: h.manifest.ID,
		Browser:  h.deps.Browser,
		Guard:    h.deps.Guard,
		Sandbox:  h.sandbox,
		Hooks:    &hookBinding{host: h},
		DataDir:  filepath.Join(h.deps.DataRoot, h.manifest.ID),
		Log:      h.logger,
	})
	if err != nil {
		return fmt.Errorf("bind api: %w", err)
	}

	start := time.Now()
	err = h.state.DoFile(ctx, h.manifest.EntryPath())
	h.sandbox.AddCPUTime(time.Since(start))
	if err != nil {
		return fmt.Errorf("run entry: %w", err)
	}

	export, ok := h.state.GetGlobal(ExportName).(*glua.LTable)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPluginExport, h.manifest.ID)
	}
	h.export = export
	return nil
}

// activate calls the export table's activate method if it has one. An
// explicit false return declines activation; no return is a success.
func (h *Host) activate(ctx context.Context) error {
	results, err := h.callLifecycle(ctx, "activate")
	if err != nil {
		return err
	}
	if len(results) > 0 && results[0] == glua.LFalse {
		return fmt.Errorf("%w: %s", ErrActivateRejected, h.manifest.ID)
	}
	return nil
}

// deactivate calls the export table's deactivate method if it has one.
func (h *Host) deactivate(ctx context.Context) error {
	_, err := h.callLifecycle(ctx, "deactivate")
	return err
}

func (h *Host) callLifecycle(ctx context.Context, method string) ([]glua.LValue, error) {
	if h.export == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, h.manifest.ID)
	}

	start := time.Now()
	results, err := h.state.CallField(ctx, h.export, method)
	h.sandbox.AddCPUTime(time.Since(start))

	// Lifecycle methods are optional.
	if errors.Is(err, plua.ErrNotFunction) {
		return nil, nil
	}
	return results, err
}

// close tears the plugin down: hook registrations, toolbar buttons,
// sandbox, and interpreter.
func (h *Host) close() {
	h.deps.Bus.UnregisterAll(h.manifest.ID)
	h.deps.Browser.UI.RemoveToolbarButtons(h.manifest.ID)
	h.sandbox.Shutdown()
	if h.state != nil {
		h.state.Close()
	}
}

// hookBinding implements api.HookService for one host. Callbacks stay Lua
// functions; dispatch converts arguments under the state lock and bills
// execution time to the plugin's sandbox.
type hookBinding struct {
	host *Host
}

func (hb *hookBinding) Register(name string, fn *glua.LFunction) error {
	h := hook.Hook(name)
	if !hook.IsAvailable(h) {
		return fmt.Errorf("%w: %s", hook.ErrUnknownHook, name)
	}

	host := hb.host
	cb := func(ctx context.Context, args ...interface{}) error {
		start := time.Now()
		_, err := host.state.CallWithValues(ctx, fn, args...)
		host.sandbox.AddCPUTime(time.Since(start))
		return err
	}

	return host.deps.Bus.Register(h, host.manifest.ID, cb)
}

func (hb *hookBinding) Unregister(name string) error {
	return hb.host.deps.Bus.Unregister(hook.Hook(name), hb.host.manifest.ID)
}
