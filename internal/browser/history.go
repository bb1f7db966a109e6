package browser

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// History records page visits, newest first.
type History struct {
	mu     sync.RWMutex
	notify Notify
	items  []*HistoryEntry
}

func newHistory(notify Notify) *History {
	return &History{notify: notify}
}

// Record adds a visit and returns a copy of the entry.
func (h *History) Record(url, title string) HistoryEntry {
	h.mu.Lock()
	entry := &HistoryEntry{
		ID:        uuid.NewString(),
		URL:       url,
		Title:     title,
		VisitedAt: time.Now(),
	}
	h.items = append([]*HistoryEntry{entry}, h.items...)
	out := *entry
	h.mu.Unlock()

	h.notify(hook.OnHistoryAdded, out.URL, out.Title)
	return out
}

// Remove deletes one entry.
func (h *History) Remove(id string) error {
	h.mu.Lock()
	idx := -1
	for i, e := range h.items {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return fmt.Errorf("%w: history entry %s", ErrNotFound, id)
	}
	url := h.items[idx].URL
	h.items = append(h.items[:idx], h.items[idx+1:]...)
	h.mu.Unlock()

	h.notify(hook.OnHistoryRemoved, url)
	return nil
}

// Clear drops the entire history.
func (h *History) Clear() {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()

	h.notify(hook.OnHistoryCleared)
}

// Search returns entries whose URL or title contains the query,
// case-insensitively, newest first.
func (h *History) Search(query string) []HistoryEntry {
	q := strings.ToLower(query)

	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []HistoryEntry
	for _, e := range h.items {
		if strings.Contains(strings.ToLower(e.URL), q) || strings.Contains(strings.ToLower(e.Title), q) {
			out = append(out, *e)
		}
	}
	return out
}

// List returns all entries, newest first.
func (h *History) List() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, len(h.items))
	for i, e := range h.items {
		out[i] = *e
	}
	return out
}
