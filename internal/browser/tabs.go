package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// Tabs manages open tabs. The first tab opened becomes the active one;
// closing the active tab promotes the next remaining tab.
type Tabs struct {
	mu     sync.RWMutex
	notify Notify
	tabs   []*Tab
	active string
}

func newTabs(notify Notify) *Tabs {
	return &Tabs{notify: notify}
}

// Open creates a tab on url and returns a copy of it.
func (t *Tabs) Open(url string) Tab {
	t.mu.Lock()
	tab := &Tab{
		ID:        uuid.NewString(),
		URL:       url,
		CreatedAt: time.Now(),
	}
	t.tabs = append(t.tabs, tab)
	if t.active == "" {
		t.active = tab.ID
	}
	out := *tab
	t.mu.Unlock()

	t.notify(hook.OnTabCreated, out.ID, out.URL)
	return out
}

// Close removes a tab.
func (t *Tabs) Close(id string) error {
	t.mu.Lock()
	idx := -1
	for i, tab := range t.tabs {
		if tab.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: tab %s", ErrNotFound, id)
	}
	t.tabs = append(t.tabs[:idx], t.tabs[idx+1:]...)

	promoted := ""
	if t.active == id {
		t.active = ""
		if len(t.tabs) > 0 {
			t.active = t.tabs[0].ID
			promoted = t.active
		}
	}
	t.mu.Unlock()

	t.notify(hook.OnTabClosed, id)
	if promoted != "" {
		t.notify(hook.OnTabSelected, promoted)
	}
	return nil
}

// Select makes a tab the active one.
func (t *Tabs) Select(id string) error {
	t.mu.Lock()
	if t.find(id) == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: tab %s", ErrNotFound, id)
	}
	t.active = id
	t.mu.Unlock()

	t.notify(hook.OnTabSelected, id)
	return nil
}

// Navigate points a tab at a new URL.
func (t *Tabs) Navigate(id, url string) error {
	t.mu.Lock()
	tab := t.find(id)
	if tab == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: tab %s", ErrNotFound, id)
	}
	tab.URL = url
	t.mu.Unlock()

	t.notify(hook.OnTabURLChanged, id, url)
	t.notify(hook.OnURLChanged, url)
	return nil
}

// SetTitle updates a tab's title, typically once the page has loaded.
func (t *Tabs) SetTitle(id, title string) error {
	t.mu.Lock()
	tab := t.find(id)
	if tab == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: tab %s", ErrNotFound, id)
	}
	tab.Title = title
	t.mu.Unlock()

	t.notify(hook.OnTabTitleChanged, id, title)
	return nil
}

// Get returns a copy of the tab with the given ID.
func (t *Tabs) Get(id string) (Tab, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tab := t.find(id); tab != nil {
		return *tab, true
	}
	return Tab{}, false
}

// Active returns the currently selected tab.
func (t *Tabs) Active() (Tab, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tab := t.find(t.active); tab != nil {
		return *tab, true
	}
	return Tab{}, false
}

// List returns all tabs in open order.
func (t *Tabs) List() []Tab {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Tab, len(t.tabs))
	for i, tab := range t.tabs {
		out[i] = *tab
	}
	return out
}

// find returns the stored tab or nil. Caller must hold mu.
func (t *Tabs) find(id string) *Tab {
	for _, tab := range t.tabs {
		if tab.ID == id {
			return tab
		}
	}
	return nil
}
