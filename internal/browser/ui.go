package browser

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// ToolbarButton is a plugin-contributed toolbar entry. Clicking it calls
// back into the owning plugin.
type ToolbarButton struct {
	ID      string `json:"id"`
	Plugin  string `json:"plugin"`
	Label   string `json:"label"`
	Tooltip string `json:"tooltip"`
}

// Notification is a transient user-facing message.
type Notification struct {
	ID      string    `json:"id"`
	Plugin  string    `json:"plugin"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// UI is the surface plugins extend: toolbar buttons, notifications, and
// the status bar text.
type UI struct {
	mu      sync.RWMutex
	notify  Notify
	buttons []ToolbarButton
	notes   []Notification
	status  string
}

func newUI(notify Notify) *UI {
	return &UI{notify: notify}
}

// AddToolbarButton registers a button owned by plugin and returns its ID.
func (u *UI) AddToolbarButton(plugin, label, tooltip string) string {
	btn := ToolbarButton{
		ID:      uuid.NewString(),
		Plugin:  plugin,
		Label:   label,
		Tooltip: tooltip,
	}

	u.mu.Lock()
	u.buttons = append(u.buttons, btn)
	u.mu.Unlock()

	u.notify(hook.OnToolbarCreated, btn.ID, plugin)
	return btn.ID
}

// RemoveToolbarButtons drops every button owned by plugin and reports how
// many were removed. Called when a plugin is unloaded.
func (u *UI) RemoveToolbarButtons(plugin string) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	kept := u.buttons[:0]
	removed := 0
	for _, btn := range u.buttons {
		if btn.Plugin == plugin {
			removed++
			continue
		}
		kept = append(kept, btn)
	}
	u.buttons = kept
	return removed
}

// ToolbarButtons returns all registered buttons in registration order.
func (u *UI) ToolbarButtons() []ToolbarButton {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]ToolbarButton, len(u.buttons))
	copy(out, u.buttons)
	return out
}

// Notify posts a notification on behalf of plugin.
func (u *UI) Notify(plugin, title, message string) Notification {
	note := Notification{
		ID:      uuid.NewString(),
		Plugin:  plugin,
		Title:   title,
		Message: message,
		Time:    time.Now(),
	}

	u.mu.Lock()
	u.notes = append(u.notes, note)
	u.mu.Unlock()

	return note
}

// Notifications returns all posted notifications in order.
func (u *UI) Notifications() []Notification {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]Notification, len(u.notes))
	copy(out, u.notes)
	return out
}

// SetStatus updates the status bar text.
func (u *UI) SetStatus(text string) {
	u.mu.Lock()
	u.status = text
	u.mu.Unlock()
}

// Status returns the current status bar text.
func (u *UI) Status() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.status
}
