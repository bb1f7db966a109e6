package api

import (
	"errors"
	"fmt"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/nebulafusion/nebula/internal/browser"
)

// tabsTable binds nebula.tabs. Method names follow the permission map, so
// every entry is gated on the tabs permission.
func (b *binder) tabsTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "list", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_tabs"); err != nil {
			return nil, err
		}
		return tabsToValues(b.opts.Browser.Tabs.List()), nil
	})

	b.fn(t, "current", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_current_tab"); err != nil {
			return nil, err
		}
		tab, ok := b.opts.Browser.Tabs.Active()
		if !ok {
			return nil, nil
		}
		return tab, nil
	})

	b.fn(t, "create", func(args []interface{}) (interface{}, error) {
		if err := b.guard("create_tab"); err != nil {
			return nil, err
		}
		url := argString(args, 0)
		if !b.opts.Guard.AllowURL(b.opts.PluginID, "tab_create", url) {
			return nil, fmt.Errorf("%w: navigation to %s", ErrDenied, url)
		}
		return b.opts.Browser.Tabs.Open(url), nil
	})

	b.fn(t, "close", func(args []interface{}) (interface{}, error) {
		if err := b.guard("close_tab"); err != nil {
			return nil, err
		}
		return nil, b.opts.Browser.Tabs.Close(argString(args, 0))
	})

	b.fn(t, "select", func(args []interface{}) (interface{}, error) {
		if err := b.guard("select_tab"); err != nil {
			return nil, err
		}
		return nil, b.opts.Browser.Tabs.Select(argString(args, 0))
	})

	b.fn(t, "navigate", func(args []interface{}) (interface{}, error) {
		if err := b.guard("navigate"); err != nil {
			return nil, err
		}
		id, url := argString(args, 0), argString(args, 1)
		if !b.opts.Guard.AllowURL(b.opts.PluginID, "navigation", url) {
			return nil, fmt.Errorf("%w: navigation to %s", ErrDenied, url)
		}
		return nil, b.opts.Browser.Tabs.Navigate(id, url)
	})

	return t
}

func tabsToValues(tabs []browser.Tab) []interface{} {
	out := make([]interface{}, len(tabs))
	for i, tab := range tabs {
		out[i] = tab
	}
	return out
}

func (b *binder) bookmarksTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "list", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_bookmarks"); err != nil {
			return nil, err
		}
		items := b.opts.Browser.Bookmarks.List()
		out := make([]interface{}, len(items))
		for i, bm := range items {
			out[i] = bm
		}
		return out, nil
	})

	b.fn(t, "add", func(args []interface{}) (interface{}, error) {
		if err := b.guard("add_bookmark"); err != nil {
			return nil, err
		}
		return b.opts.Browser.Bookmarks.Add(argString(args, 0), argString(args, 1), argString(args, 2)), nil
	})

	b.fn(t, "remove", func(args []interface{}) (interface{}, error) {
		if err := b.guard("remove_bookmark"); err != nil {
			return nil, err
		}
		return nil, b.opts.Browser.Bookmarks.Remove(argString(args, 0))
	})

	return t
}

func (b *binder) historyTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "list", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_history"); err != nil {
			return nil, err
		}
		items := b.opts.Browser.History.List()
		out := make([]interface{}, len(items))
		for i, e := range items {
			out[i] = e
		}
		return out, nil
	})

	b.fn(t, "search", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_history"); err != nil {
			return nil, err
		}
		items := b.opts.Browser.History.Search(argString(args, 0))
		out := make([]interface{}, len(items))
		for i, e := range items {
			out[i] = e
		}
		return out, nil
	})

	b.fn(t, "clear", func(args []interface{}) (interface{}, error) {
		if err := b.guard("clear_history"); err != nil {
			return nil, err
		}
		b.opts.Browser.History.Clear()
		return nil, nil
	})

	return t
}

func (b *binder) downloadsTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "list", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_downloads"); err != nil {
			return nil, err
		}
		items := b.opts.Browser.Downloads.List()
		out := make([]interface{}, len(items))
		for i, dl := range items {
			out[i] = dl
		}
		return out, nil
	})

	b.fn(t, "start", func(args []interface{}) (interface{}, error) {
		if err := b.guard("download_file"); err != nil {
			return nil, err
		}
		url := argString(args, 0)
		if !b.opts.Guard.AllowURL(b.opts.PluginID, "download", url) {
			return nil, fmt.Errorf("%w: download from %s", ErrDenied, url)
		}
		return b.opts.Browser.Downloads.Start(url, argString(args, 1), argInt(args, 2)), nil
	})

	b.fn(t, "pause", func(args []interface{}) (interface{}, error) {
		if err := b.guard("pause_download"); err != nil {
			return nil, err
		}
		return nil, b.opts.Browser.Downloads.Pause(argString(args, 0))
	})

	b.fn(t, "resume", func(args []interface{}) (interface{}, error) {
		if err := b.guard("resume_download"); err != nil {
			return nil, err
		}
		return nil, b.opts.Browser.Downloads.Resume(argString(args, 0))
	})

	b.fn(t, "cancel", func(args []interface{}) (interface{}, error) {
		if err := b.guard("cancel_download"); err != nil {
			return nil, err
		}
		return nil, b.opts.Browser.Downloads.Cancel(argString(args, 0))
	})

	return t
}

func (b *binder) cookiesTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "get", func(args []interface{}) (interface{}, error) {
		if err := b.guard("get_cookies"); err != nil {
			return nil, err
		}
		domain := argString(args, 0)
		items := b.opts.Browser.Cookies.ForDomain(domain)
		out := make([]interface{}, len(items))
		for i, c := range items {
			out[i] = c
		}
		return out, nil
	})

	b.fn(t, "set", func(args []interface{}) (interface{}, error) {
		if err := b.guard("set_cookie"); err != nil {
			return nil, err
		}
		cookie := browser.Cookie{
			Domain:   argString(args, 0),
			Name:     argString(args, 1),
			Value:    argString(args, 2),
			Path:     argString(args, 3),
			Secure:   argBool(args, 4),
			HTTPOnly: argBool(args, 5),
		}
		if cookie.Path == "" {
			cookie.Path = "/"
		}
		if cookie.Domain == "" || cookie.Name == "" {
			return nil, errors.New("cookie domain and name are required")
		}
		cookie.Expires = time.Now().Add(24 * time.Hour)
		b.opts.Browser.Cookies.Set(cookie)
		return nil, nil
	})

	b.fn(t, "remove", func(args []interface{}) (interface{}, error) {
		if err := b.guard("remove_cookie"); err != nil {
			return nil, err
		}
		path := argString(args, 2)
		if path == "" {
			path = "/"
		}
		return nil, b.opts.Browser.Cookies.Remove(argString(args, 0), path, argString(args, 1))
	})

	return t
}
