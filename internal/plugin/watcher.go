package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// rescanDebounce batches bursts of filesystem events into one rescan.
const rescanDebounce = 500 * time.Millisecond

// Watch reloads the plugin set when the plugin directories change: new
// directories are loaded, changed plugins are reloaded, and removed ones
// are unloaded. Blocks until ctx is canceled.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range m.cfg.Dirs {
		if err := w.Add(dir); err != nil {
			log.WithField("dir", dir).WithError(err).Warn("cannot watch plugin directory")
		}
	}

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(rescanDebounce)
			} else {
				timer.Reset(rescanDebounce)
			}
			pending = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("plugin watcher error")

		case <-pending:
			pending = nil
			m.rescan(ctx)
		}
	}
}

// rescan reconciles the loaded plugin set against the directories.
func (m *Manager) rescan(ctx context.Context) {
	present := make(map[string]string)
	for _, dir := range m.discover() {
		manifest, err := LoadManifestFromDir(dir)
		if err != nil {
			continue
		}
		present[manifest.ID] = dir
	}

	// Unload plugins whose directories are gone.
	for _, info := range m.Plugins() {
		if _, ok := present[info.Manifest.ID]; ok {
			continue
		}
		if err := m.Unload(ctx, info.Manifest.ID); err != nil {
			log.WithField("plugin", info.Manifest.ID).WithError(err).Warn("unload after removal failed")
		}
	}

	// Load new plugins; reload known ones only when their directory
	// contents changed, so untouched plugins keep their interpreter state.
	for id, dir := range present {
		if m.loader.IsLoaded(id) {
			if dirFingerprint(dir) == m.fingerprint(id) {
				continue
			}
			if err := m.Reload(ctx, id); err != nil {
				log.WithField("plugin", id).WithError(err).Warn("reload failed")
			}
			continue
		}
		if _, err := m.Load(ctx, dir); err != nil {
			log.WithField("dir", dir).WithError(err).Warn("load failed")
		}
	}
}

// dirFingerprint summarizes a plugin directory's contents: file count,
// total size, and newest modification time. Cheap to compute and enough to
// tell an edited plugin from an untouched one.
func dirFingerprint(dir string) string {
	var (
		count  int
		size   int64
		newest time.Time
	)
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		count++
		size += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return fmt.Sprintf("%d:%d:%d", count, size, newest.UnixNano())
}

func (m *Manager) rememberFingerprint(id, dir string) {
	m.setFingerprint(id, dirFingerprint(dir))
}

func (m *Manager) setFingerprint(id, fp string) {
	m.mu.Lock()
	m.fingerprints[id] = fp
	m.mu.Unlock()
}

func (m *Manager) fingerprint(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fingerprints[id]
}

func (m *Manager) forgetFingerprint(id string) {
	m.mu.Lock()
	delete(m.fingerprints, id)
	m.mu.Unlock()
}
