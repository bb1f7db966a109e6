package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// Downloads tracks file transfers. State transitions emit the matching
// download hooks; progress updates emit onDownloadProgress.
type Downloads struct {
	mu     sync.RWMutex
	notify Notify
	items  []*Download
}

func newDownloads(notify Notify) *Downloads {
	return &Downloads{notify: notify}
}

// Start registers a new active download.
func (d *Downloads) Start(url, filename string, totalBytes int64) Download {
	d.mu.Lock()
	dl := &Download{
		ID:         uuid.NewString(),
		URL:        url,
		Filename:   filename,
		State:      DownloadActive,
		TotalBytes: totalBytes,
		StartedAt:  time.Now(),
	}
	d.items = append(d.items, dl)
	out := *dl
	d.mu.Unlock()

	d.notify(hook.OnDownloadStart, out.ID, out.URL, out.Filename)
	return out
}

// Progress records received bytes on an active download.
func (d *Downloads) Progress(id string, bytesReceived int64) error {
	d.mu.Lock()
	dl := d.find(id)
	if dl == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: download %s", ErrNotFound, id)
	}
	dl.BytesReceived = bytesReceived
	total := dl.TotalBytes
	d.mu.Unlock()

	d.notify(hook.OnDownloadProgress, id, bytesReceived, total)
	return nil
}

// Complete marks a download finished.
func (d *Downloads) Complete(id string) error {
	return d.transition(id, DownloadComplete, hook.OnDownloadComplete)
}

// Fail marks a download failed and reports the cause.
func (d *Downloads) Fail(id string, cause error) error {
	d.mu.Lock()
	dl := d.find(id)
	if dl == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: download %s", ErrNotFound, id)
	}
	dl.State = DownloadFailed
	d.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	d.notify(hook.OnDownloadError, id, msg)
	return nil
}

// Cancel aborts a download.
func (d *Downloads) Cancel(id string) error {
	return d.transition(id, DownloadCanceled, hook.OnDownloadCanceled)
}

// Pause suspends an active download.
func (d *Downloads) Pause(id string) error {
	return d.transition(id, DownloadPaused, hook.OnDownloadPaused)
}

// Resume reactivates a paused download.
func (d *Downloads) Resume(id string) error {
	return d.transition(id, DownloadActive, hook.OnDownloadResumed)
}

// Remove drops one download from the list.
func (d *Downloads) Remove(id string) error {
	d.mu.Lock()
	idx := -1
	for i, dl := range d.items {
		if dl.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: download %s", ErrNotFound, id)
	}
	d.items = append(d.items[:idx], d.items[idx+1:]...)
	d.mu.Unlock()

	d.notify(hook.OnDownloadRemoved, id)
	return nil
}

// Clear drops all downloads.
func (d *Downloads) Clear() {
	d.mu.Lock()
	d.items = nil
	d.mu.Unlock()

	d.notify(hook.OnDownloadsCleared)
}

// Get returns a copy of one download.
func (d *Downloads) Get(id string) (Download, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if dl := d.find(id); dl != nil {
		return *dl, true
	}
	return Download{}, false
}

// List returns all downloads in start order.
func (d *Downloads) List() []Download {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Download, len(d.items))
	for i, dl := range d.items {
		out[i] = *dl
	}
	return out
}

func (d *Downloads) transition(id string, state DownloadState, h hook.Hook) error {
	d.mu.Lock()
	dl := d.find(id)
	if dl == nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: download %s", ErrNotFound, id)
	}
	dl.State = state
	d.mu.Unlock()

	d.notify(h, id)
	return nil
}

// find returns the stored download or nil. Caller must hold mu.
func (d *Downloads) find(id string) *Download {
	for _, dl := range d.items {
		if dl.ID == id {
			return dl
		}
	}
	return nil
}
