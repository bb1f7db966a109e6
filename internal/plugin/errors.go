package plugin

import "errors"

// Errors returned by plugin loading and lifecycle operations.
var (
	// ErrPathNotFound indicates the plugin directory does not exist.
	ErrPathNotFound = errors.New("plugin path not found")

	// ErrNotADirectory indicates the plugin path is not a directory.
	ErrNotADirectory = errors.New("plugin path is not a directory")

	// ErrManifestMissing indicates the directory has no manifest.json.
	ErrManifestMissing = errors.New("plugin manifest not found")

	// ErrInvalidManifest indicates the manifest fails validation.
	ErrInvalidManifest = errors.New("invalid plugin manifest")

	// ErrEntryMissing indicates the manifest's entry file does not exist.
	ErrEntryMissing = errors.New("plugin entry file not found")

	// ErrNoPluginExport indicates the entry file did not define a global
	// `plugin` table.
	ErrNoPluginExport = errors.New("entry file does not define a plugin table")

	// ErrNotLoaded indicates the plugin ID is not loaded.
	ErrNotLoaded = errors.New("plugin not loaded")

	// ErrActivateRejected indicates the plugin's activate method returned
	// false, declining activation.
	ErrActivateRejected = errors.New("plugin activate returned false")

	// ErrNotInstalled indicates the plugin is not in the user plugin
	// directory, so it cannot be uninstalled.
	ErrNotInstalled = errors.New("plugin is not installed in the user directory")

	// ErrNoManifestInArchive indicates an install archive contains no
	// plugin.
	ErrNoManifestInArchive = errors.New("archive contains no plugin manifest")
)
