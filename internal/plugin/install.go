package plugin

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// maxArchiveFileSize bounds a single extracted file.
const maxArchiveFileSize = 50 << 20 // 50 MiB

// Install extracts a plugin zip archive into the user plugin directory,
// then loads and activates it. An existing installation of the same
// plugin ID is replaced; if it is currently loaded it is unloaded first.
func (m *Manager) Install(ctx context.Context, archivePath string) (string, error) {
	tmp, err := os.MkdirTemp("", "nebula-install-*")
	if err != nil {
		return "", fmt.Errorf("install: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := extractZip(archivePath, tmp); err != nil {
		return "", fmt.Errorf("install: %w", err)
	}

	srcDir, err := findPluginRoot(tmp)
	if err != nil {
		return "", err
	}

	manifest, err := LoadManifestFromDir(srcDir)
	if err != nil {
		return "", err
	}

	if m.loader.IsLoaded(manifest.ID) {
		if err := m.Unload(ctx, manifest.ID); err != nil {
			return "", fmt.Errorf("install: unload existing: %w", err)
		}
	}

	dest := filepath.Join(m.userDir(), manifest.ID)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("install: %w", err)
	}
	if err := copyTree(srcDir, dest); err != nil {
		return "", fmt.Errorf("install: %w", err)
	}

	id, err := m.Load(ctx, dest)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"plugin": id, "dir": dest}).Info("plugin installed")
	m.emit(EventInstalled, id, dest)
	return id, nil
}

// Uninstall unloads a plugin and deletes its directory. Only plugins
// living in the user plugin directory can be uninstalled.
func (m *Manager) Uninstall(ctx context.Context, id string) error {
	info, ok := m.loader.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	userDir, err := filepath.Abs(m.userDir())
	if err != nil {
		return fmt.Errorf("uninstall: %w", err)
	}
	dir, err := filepath.Abs(info.Dir)
	if err != nil {
		return fmt.Errorf("uninstall: %w", err)
	}
	if rel, err := filepath.Rel(userDir, dir); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is in %s", ErrNotInstalled, id, info.Dir)
	}

	if err := m.Unload(ctx, id); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("uninstall: %w", err)
	}

	log.WithField("plugin", id).Info("plugin uninstalled")
	m.emit(EventUninstalled, id, dir)
	return nil
}

func (m *Manager) userDir() string {
	return m.cfg.Dirs[0]
}

// extractZip unpacks an archive into dest, refusing paths that escape it.
func extractZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if rel, err := filepath.Rel(dest, target); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, io.LimitReader(src, maxArchiveFileSize))
	return err
}

// findPluginRoot locates the directory holding the manifest: the
// extraction root itself or the shallowest directory below it.
func findPluginRoot(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found != "" {
			return fs.SkipAll
		}
		if !d.IsDir() && d.Name() == ManifestFileName {
			found = filepath.Dir(path)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("install: %w", err)
	}
	if found == "" {
		return "", ErrNoManifestInArchive
	}
	return found, nil
}

// copyTree copies a directory recursively.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
