package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const templateEntry = `-- %[1]s entry point.

plugin = {}

function plugin.activate()
    nebula.log.info("%[1]s activated")
    nebula.hooks.register("onTabCreated", function(id, url)
        nebula.log.debug("tab created: " .. url)
    end)
end

function plugin.deactivate()
    nebula.log.info("%[1]s deactivated")
end
`

const templateReadme = `# %[1]s

A NebulaFusion plugin. Edit init.lua to change its behavior and
manifest.json to request permissions.
`

// CreateTemplate scaffolds a new plugin in the user plugin directory and
// returns the created directory. The directory must not already exist.
func (m *Manager) CreateTemplate(id, name, author string) (string, error) {
	manifest := Manifest{
		ID:          id,
		Name:        name,
		Version:     "0.1.0",
		Author:      author,
		Description: name + " plugin",
		Entry:       DefaultEntry,
		Permissions: []string{"tabs"},
	}
	if err := manifest.Validate(); err != nil {
		return "", err
	}

	dir := filepath.Join(m.userDir(), id)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("plugin directory already exists: %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create template: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("create template: %w", err)
	}

	files := map[string]string{
		ManifestFileName: string(data) + "\n",
		DefaultEntry:     fmt.Sprintf(templateEntry, name),
		"README.md":      fmt.Sprintf(templateReadme, name),
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("create template: %w", err)
		}
	}
	return dir, nil
}
