package api

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	glua "github.com/yuin/gopher-lua"
)

const storageFile = "storage.json"

// storageTable binds nebula.storage: a per-plugin JSON document persisted
// under the plugin's data directory. Keys are gjson paths, so nested
// access like "prefs.theme" works without the plugin managing structure.
func (b *binder) storageTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "get", func(args []interface{}) (interface{}, error) {
		if err := b.guard("storage_get"); err != nil {
			return nil, err
		}
		doc, err := b.readStorage()
		if err != nil {
			return nil, err
		}
		res := gjson.Get(doc, argString(args, 0))
		if !res.Exists() {
			return nil, nil
		}
		return res.Value(), nil
	})

	b.fn(t, "set", func(args []interface{}) (interface{}, error) {
		if err := b.guard("storage_set"); err != nil {
			return nil, err
		}
		key := argString(args, 0)
		if key == "" {
			return nil, errors.New("storage key is required")
		}
		if len(args) < 2 {
			return nil, errors.New("storage value is required")
		}
		doc, err := b.readStorage()
		if err != nil {
			return nil, err
		}
		doc, err = sjson.Set(doc, key, args[1])
		if err != nil {
			return nil, fmt.Errorf("storage set: %w", err)
		}
		return nil, b.writeStorage(doc)
	})

	b.fn(t, "delete", func(args []interface{}) (interface{}, error) {
		if err := b.guard("storage_delete"); err != nil {
			return nil, err
		}
		doc, err := b.readStorage()
		if err != nil {
			return nil, err
		}
		doc, err = sjson.Delete(doc, argString(args, 0))
		if err != nil {
			return nil, fmt.Errorf("storage delete: %w", err)
		}
		return nil, b.writeStorage(doc)
	})

	b.fn(t, "keys", func(args []interface{}) (interface{}, error) {
		if err := b.guard("storage_keys"); err != nil {
			return nil, err
		}
		doc, err := b.readStorage()
		if err != nil {
			return nil, err
		}
		var keys []interface{}
		gjson.Parse(doc).ForEach(func(key, _ gjson.Result) bool {
			keys = append(keys, key.String())
			return true
		})
		return keys, nil
	})

	b.fn(t, "clear", func(args []interface{}) (interface{}, error) {
		if err := b.guard("storage_clear"); err != nil {
			return nil, err
		}
		return nil, b.writeStorage("{}")
	})

	return t
}

func (b *binder) storagePath() string {
	return filepath.Join(b.opts.DataDir, storageFile)
}

func (b *binder) readStorage() (string, error) {
	data, err := os.ReadFile(b.storagePath())
	if errors.Is(err, os.ErrNotExist) {
		return "{}", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage read: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("storage file %s is corrupt", b.storagePath())
	}
	return string(data), nil
}

func (b *binder) writeStorage(doc string) error {
	if err := os.MkdirAll(b.opts.DataDir, 0o755); err != nil {
		return fmt.Errorf("storage write: %w", err)
	}
	if err := os.WriteFile(b.storagePath(), []byte(doc), 0o644); err != nil {
		return fmt.Errorf("storage write: %w", err)
	}
	return nil
}
