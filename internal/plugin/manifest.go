package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nebulafusion/nebula/internal/plugin/security"
)

// ManifestFileName is the manifest file every plugin directory must carry.
const ManifestFileName = "manifest.json"

// DefaultEntry is the entry file used when the manifest does not name one.
const DefaultEntry = "init.lua"

// idPattern constrains plugin IDs to filesystem- and log-friendly names.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Manifest describes a plugin's identity, entry point, and requirements.
type Manifest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`

	// Entry is the Lua file run at load, relative to the plugin
	// directory. Defaults to init.lua.
	Entry string `json:"entry"`

	Homepage string `json:"homepage,omitempty"`
	License  string `json:"license,omitempty"`

	// Permissions the plugin requests. Only the declarable permission
	// names are accepted; in particular "all" cannot be requested from
	// a manifest.
	Permissions []string `json:"permissions"`

	// Settings are plugin-defined defaults exposed to the plugin code.
	Settings map[string]interface{} `json:"settings,omitempty"`

	// dir is the plugin directory the manifest was loaded from.
	dir string
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}

	m.dir = filepath.Dir(path)
	if m.Entry == "" {
		m.Entry = DefaultEntry
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir reads the manifest inside a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrManifestMissing, dir)
	}
	return LoadManifest(path)
}

// Validate checks required fields and the permission list. It fails on
// the first problem found.
func (m *Manifest) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"id", m.ID},
		{"name", m.Name},
		{"version", m.Version},
		{"author", m.Author},
		{"description", m.Description},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidManifest, r.field)
		}
	}

	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: id %q must match %s", ErrInvalidManifest, m.ID, idPattern)
	}

	for _, p := range m.Permissions {
		if !security.IsDeclarable(security.Permission(p)) {
			return fmt.Errorf("%w: unknown permission %q", ErrInvalidManifest, p)
		}
	}

	return nil
}

// Dir returns the plugin directory the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}

// EntryPath returns the absolute path of the entry file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.dir, m.Entry)
}

// PermissionList converts the manifest's permission names to typed
// permissions.
func (m *Manifest) PermissionList() []security.Permission {
	out := make([]security.Permission, len(m.Permissions))
	for i, p := range m.Permissions {
		out[i] = security.Permission(p)
	}
	return out
}
