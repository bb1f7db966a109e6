package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// Bookmarks manages saved pages, grouped into flat named folders.
type Bookmarks struct {
	mu     sync.RWMutex
	notify Notify
	items  []*Bookmark
}

func newBookmarks(notify Notify) *Bookmarks {
	return &Bookmarks{notify: notify}
}

// Add saves a bookmark and returns a copy of it.
func (b *Bookmarks) Add(url, title, folder string) Bookmark {
	b.mu.Lock()
	bm := &Bookmark{
		ID:      uuid.NewString(),
		URL:     url,
		Title:   title,
		Folder:  folder,
		AddedAt: time.Now(),
	}
	b.items = append(b.items, bm)
	out := *bm
	b.mu.Unlock()

	b.notify(hook.OnBookmarkAdded, out.ID, out.URL, out.Title)
	return out
}

// Remove deletes a bookmark by ID.
func (b *Bookmarks) Remove(id string) error {
	b.mu.Lock()
	idx := -1
	for i, bm := range b.items {
		if bm.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: bookmark %s", ErrNotFound, id)
	}
	url := b.items[idx].URL
	b.items = append(b.items[:idx], b.items[idx+1:]...)
	b.mu.Unlock()

	b.notify(hook.OnBookmarkRemoved, id, url)
	return nil
}

// Update changes a bookmark's title or folder.
func (b *Bookmarks) Update(id, title, folder string) error {
	b.mu.Lock()
	var found *Bookmark
	for _, bm := range b.items {
		if bm.ID == id {
			found = bm
			break
		}
	}
	if found == nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: bookmark %s", ErrNotFound, id)
	}
	found.Title = title
	found.Folder = folder
	b.mu.Unlock()

	b.notify(hook.OnBookmarkUpdated, id, title)
	return nil
}

// FindByURL returns all bookmarks pointing at url.
func (b *Bookmarks) FindByURL(url string) []Bookmark {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Bookmark
	for _, bm := range b.items {
		if bm.URL == url {
			out = append(out, *bm)
		}
	}
	return out
}

// List returns all bookmarks in insertion order.
func (b *Bookmarks) List() []Bookmark {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Bookmark, len(b.items))
	for i, bm := range b.items {
		out[i] = *bm
	}
	return out
}
