package browser

import (
	"errors"
	"sync"
	"testing"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// recorder captures emitted hooks for assertions.
type recorder struct {
	mu    sync.Mutex
	hooks []hook.Hook
}

func (r *recorder) notify(h hook.Hook, args ...interface{}) {
	r.mu.Lock()
	r.hooks = append(r.hooks, h)
	r.mu.Unlock()
}

func (r *recorder) count(h hook.Hook) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.hooks {
		if got == h {
			n++
		}
	}
	return n
}

func TestTabsLifecycle(t *testing.T) {
	rec := &recorder{}
	b := New(rec.notify)

	first := b.Tabs.Open("https://example.com")
	second := b.Tabs.Open("https://example.org")

	if active, ok := b.Tabs.Active(); !ok || active.ID != first.ID {
		t.Fatalf("active tab = %v, want first tab", active.ID)
	}
	if len(b.Tabs.List()) != 2 {
		t.Fatalf("tab count = %d, want 2", len(b.Tabs.List()))
	}

	if err := b.Tabs.Navigate(first.ID, "https://example.com/page"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	got, _ := b.Tabs.Get(first.ID)
	if got.URL != "https://example.com/page" {
		t.Fatalf("tab URL = %q after navigate", got.URL)
	}

	// Closing the active tab promotes the remaining one.
	if err := b.Tabs.Close(first.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if active, ok := b.Tabs.Active(); !ok || active.ID != second.ID {
		t.Fatalf("active after close = %v, want second tab", active.ID)
	}

	if err := b.Tabs.Close("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Close(missing) = %v, want ErrNotFound", err)
	}

	if rec.count(hook.OnTabCreated) != 2 {
		t.Errorf("onTabCreated fired %d times, want 2", rec.count(hook.OnTabCreated))
	}
	if rec.count(hook.OnTabClosed) != 1 {
		t.Errorf("onTabClosed fired %d times, want 1", rec.count(hook.OnTabClosed))
	}
	if rec.count(hook.OnTabURLChanged) != 1 || rec.count(hook.OnURLChanged) != 1 {
		t.Error("navigate should fire both onTabUrlChanged and onUrlChanged")
	}
}

func TestBookmarksAddRemove(t *testing.T) {
	rec := &recorder{}
	b := New(rec.notify)

	bm := b.Bookmarks.Add("https://example.com", "Example", "work")
	if got := b.Bookmarks.FindByURL("https://example.com"); len(got) != 1 || got[0].ID != bm.ID {
		t.Fatalf("FindByURL = %v", got)
	}

	if err := b.Bookmarks.Update(bm.ID, "Renamed", "personal"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := b.Bookmarks.List()[0]; got.Title != "Renamed" || got.Folder != "personal" {
		t.Fatalf("updated bookmark = %+v", got)
	}

	if err := b.Bookmarks.Remove(bm.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(b.Bookmarks.List()) != 0 {
		t.Fatal("bookmark not removed")
	}

	if rec.count(hook.OnBookmarkAdded) != 1 || rec.count(hook.OnBookmarkUpdated) != 1 || rec.count(hook.OnBookmarkRemoved) != 1 {
		t.Error("bookmark hooks not emitted once each")
	}
}

func TestHistorySearchAndClear(t *testing.T) {
	rec := &recorder{}
	b := New(rec.notify)

	b.History.Record("https://go.dev", "The Go Programming Language")
	b.History.Record("https://example.com", "Example Domain")

	if got := b.History.Search("go"); len(got) != 1 || got[0].URL != "https://go.dev" {
		t.Fatalf("Search(go) = %v", got)
	}
	// Newest first.
	if list := b.History.List(); list[0].URL != "https://example.com" {
		t.Fatalf("List order wrong: %v", list[0].URL)
	}

	b.History.Clear()
	if len(b.History.List()) != 0 {
		t.Fatal("history not cleared")
	}
	if rec.count(hook.OnHistoryCleared) != 1 {
		t.Error("onHistoryCleared not emitted")
	}
}

func TestDownloadTransitions(t *testing.T) {
	rec := &recorder{}
	b := New(rec.notify)

	dl := b.Downloads.Start("https://example.com/file.zip", "file.zip", 1000)
	if err := b.Downloads.Progress(dl.ID, 500); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if err := b.Downloads.Pause(dl.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := b.Downloads.Resume(dl.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := b.Downloads.Complete(dl.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, ok := b.Downloads.Get(dl.ID)
	if !ok || got.State != DownloadComplete || got.BytesReceived != 500 {
		t.Fatalf("download = %+v", got)
	}

	for _, h := range []hook.Hook{
		hook.OnDownloadStart, hook.OnDownloadProgress, hook.OnDownloadPaused,
		hook.OnDownloadResumed, hook.OnDownloadComplete,
	} {
		if rec.count(h) != 1 {
			t.Errorf("%s fired %d times, want 1", h, rec.count(h))
		}
	}

	b.Downloads.Clear()
	if len(b.Downloads.List()) != 0 {
		t.Fatal("downloads not cleared")
	}
}

func TestCookiesRoundtrip(t *testing.T) {
	rec := &recorder{}
	b := New(rec.notify)

	b.Cookies.Set(Cookie{Name: "session", Value: "abc", Domain: "example.com", Path: "/"})
	b.Cookies.Set(Cookie{Name: "pref", Value: "1", Domain: "example.com", Path: "/"})
	b.Cookies.Set(Cookie{Name: "session", Value: "xyz", Domain: "other.com", Path: "/"})

	got, ok := b.Cookies.Get("example.com", "/", "session")
	if !ok || got.Value != "abc" {
		t.Fatalf("Get = %+v, ok=%v", got, ok)
	}
	if got := b.Cookies.ForDomain("example.com"); len(got) != 2 {
		t.Fatalf("ForDomain = %d cookies, want 2", len(got))
	}

	if err := b.Cookies.Remove("example.com", "/", "session"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := b.Cookies.Remove("example.com", "/", "session"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove = %v, want ErrNotFound", err)
	}

	b.Cookies.Clear()
	if rec.count(hook.OnCookiesCleared) != 1 {
		t.Error("onCookiesCleared not emitted")
	}
}

func TestSettingsThemeEmitsBothHooks(t *testing.T) {
	rec := &recorder{}
	b := New(rec.notify)

	b.Settings.Set("homepage", "https://example.com")
	b.Settings.Set("theme", "light")

	if v, _ := b.Settings.Get("theme"); v != "light" {
		t.Fatalf("theme = %v", v)
	}
	if rec.count(hook.OnSettingsChanged) != 2 {
		t.Errorf("onSettingsChanged fired %d times, want 2", rec.count(hook.OnSettingsChanged))
	}
	if rec.count(hook.OnThemeChanged) != 1 {
		t.Errorf("onThemeChanged fired %d times, want 1", rec.count(hook.OnThemeChanged))
	}
}

func TestUIToolbarOwnership(t *testing.T) {
	b := New(nil)

	b.UI.AddToolbarButton("plugin-a", "A", "")
	b.UI.AddToolbarButton("plugin-b", "B", "")
	b.UI.AddToolbarButton("plugin-a", "A2", "")

	if removed := b.UI.RemoveToolbarButtons("plugin-a"); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	rest := b.UI.ToolbarButtons()
	if len(rest) != 1 || rest[0].Plugin != "plugin-b" {
		t.Fatalf("remaining buttons = %v", rest)
	}

	note := b.UI.Notify("plugin-b", "hi", "message")
	if note.ID == "" || len(b.UI.Notifications()) != 1 {
		t.Fatal("notification not recorded")
	}

	b.UI.SetStatus("ready")
	if b.UI.Status() != "ready" {
		t.Fatal("status not set")
	}
}
