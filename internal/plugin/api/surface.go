package api

import (
	"errors"
	"fmt"

	glua "github.com/yuin/gopher-lua"
)

// logTable binds nebula.log. Output flows through the host logger tagged
// with the plugin ID; no permission is required to log.
func (b *binder) logTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "debug", func(args []interface{}) (interface{}, error) {
		b.logger.Debug(argString(args, 0))
		return nil, nil
	})
	b.fn(t, "info", func(args []interface{}) (interface{}, error) {
		b.logger.Info(argString(args, 0))
		return nil, nil
	})
	b.fn(t, "warn", func(args []interface{}) (interface{}, error) {
		b.logger.Warn(argString(args, 0))
		return nil, nil
	})
	b.fn(t, "error", func(args []interface{}) (interface{}, error) {
		b.logger.Error(argString(args, 0))
		return nil, nil
	})

	return t
}

// hooksTable binds nebula.hooks.register/unregister. The callback stays a
// Lua function; registration goes through the host so gating and fault
// isolation apply on dispatch.
func (b *binder) hooksTable() *glua.LTable {
	t := b.L.NewTable()

	t.RawSetString("register", b.L.NewFunction(func(L *glua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)

		b.opts.Sandbox.RecordAPICall("hooks.register")
		if err := b.opts.Hooks.Register(name, fn); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	}))

	t.RawSetString("unregister", b.L.NewFunction(func(L *glua.LState) int {
		name := L.CheckString(1)

		b.opts.Sandbox.RecordAPICall("hooks.unregister")
		if err := b.opts.Hooks.Unregister(name); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return 0
	}))

	return t
}

// settingsTable binds nebula.settings.
func (b *binder) settingsTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "get", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_browser_settings"); err != nil {
			return nil, err
		}
		v, ok := b.opts.Browser.Settings.Get(argString(args, 0))
		if !ok {
			return nil, nil
		}
		return v, nil
	})

	b.fn(t, "set", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_browser_settings"); err != nil {
			return nil, err
		}
		key := argString(args, 0)
		if key == "" {
			return nil, errors.New("settings key is required")
		}
		if len(args) < 2 {
			return nil, errors.New("settings value is required")
		}
		b.opts.Browser.Settings.Set(key, args[1])
		return nil, nil
	})

	b.fn(t, "all", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_browser_settings"); err != nil {
			return nil, err
		}
		return b.opts.Browser.Settings.All(), nil
	})

	return t
}

// uiTable binds nebula.ui.
func (b *binder) uiTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "add_toolbar_button", func(args []interface{}) (interface{}, error) {
		if err := b.guard("add_toolbar_button"); err != nil {
			return nil, err
		}
		id := b.opts.Browser.UI.AddToolbarButton(b.opts.PluginID, argString(args, 0), argString(args, 1))
		return id, nil
	})

	b.fn(t, "notify", func(args []interface{}) (interface{}, error) {
		if err := b.guard("show_notification"); err != nil {
			return nil, err
		}
		note := b.opts.Browser.UI.Notify(b.opts.PluginID, argString(args, 0), argString(args, 1))
		return note.ID, nil
	})

	b.fn(t, "set_status", func(args []interface{}) (interface{}, error) {
		if err := b.guard("set_status"); err != nil {
			return nil, err
		}
		b.opts.Browser.UI.SetStatus(argString(args, 0))
		return nil, nil
	})

	return t
}

// fsTable binds nebula.fs. Access is confined by the sandbox's allowed
// roots; every operation is logged against the plugin.
func (b *binder) fsTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "read", func(args []interface{}) (interface{}, error) {
		if err := b.guard("fs_read"); err != nil {
			return nil, err
		}
		path := argString(args, 0)
		if !b.opts.Sandbox.LogFileAccess(path, "read") {
			return nil, fmt.Errorf("%w: read %s", ErrDenied, path)
		}
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	})

	b.fn(t, "write", func(args []interface{}) (interface{}, error) {
		if err := b.guard("fs_write"); err != nil {
			return nil, err
		}
		path := argString(args, 0)
		if !b.opts.Sandbox.LogFileAccess(path, "write") {
			return nil, fmt.Errorf("%w: write %s", ErrDenied, path)
		}
		return nil, writeFile(path, []byte(argString(args, 1)))
	})

	b.fn(t, "exists", func(args []interface{}) (interface{}, error) {
		if err := b.guard("fs_stat"); err != nil {
			return nil, err
		}
		path := argString(args, 0)
		if !b.opts.Sandbox.LogFileAccess(path, "read") {
			return nil, fmt.Errorf("%w: stat %s", ErrDenied, path)
		}
		return fileExists(path), nil
	})

	return t
}
