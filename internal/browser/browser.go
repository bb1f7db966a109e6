package browser

import (
	"errors"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// ErrNotFound is returned when a referenced item does not exist.
var ErrNotFound = errors.New("browser: not found")

// Notify delivers a hook event to the plugin layer. Stores call it after
// every mutation; a nil Notify is replaced with a no-op.
type Notify func(h hook.Hook, args ...interface{})

// Browser aggregates the host-side state plugins interact with.
type Browser struct {
	Tabs      *Tabs
	Bookmarks *Bookmarks
	History   *History
	Downloads *Downloads
	Cookies   *Cookies
	Settings  *Settings
	UI        *UI
}

// New creates a Browser whose stores emit hook events through notify.
func New(notify Notify) *Browser {
	if notify == nil {
		notify = func(hook.Hook, ...interface{}) {}
	}
	return &Browser{
		Tabs:      newTabs(notify),
		Bookmarks: newBookmarks(notify),
		History:   newHistory(notify),
		Downloads: newDownloads(notify),
		Cookies:   newCookies(notify),
		Settings:  newSettings(notify),
		UI:        newUI(notify),
	}
}
