package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	glua "github.com/yuin/gopher-lua"
)

const (
	requestTimeout  = 30 * time.Second
	maxResponseSize = 10 << 20 // 10 MiB
)

// httpClient is shared across plugins; per-plugin accounting happens in
// the sandbox, not the transport.
var httpClient = &http.Client{Timeout: requestTimeout}

// networkTable binds nebula.network. Requests pass the URL content check
// and are counted against the plugin's request rate.
func (b *binder) networkTable() *glua.LTable {
	t := b.L.NewTable()

	b.fn(t, "get", func(args []interface{}) (interface{}, error) {
		return b.httpRequest(http.MethodGet, argString(args, 0), "")
	})

	b.fn(t, "post", func(args []interface{}) (interface{}, error) {
		return b.httpRequest(http.MethodPost, argString(args, 0), argString(args, 1))
	})

	return t
}

func (b *binder) httpRequest(method, url, body string) (interface{}, error) {
	if err := b.guard("network_request"); err != nil {
		return nil, err
	}
	if !b.opts.Guard.AllowURL(b.opts.PluginID, "network_request", url) {
		return nil, fmt.Errorf("%w: request to %s", ErrDenied, url)
	}
	b.opts.Sandbox.LogNetworkRequest(url, method)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("network: read response: %w", err)
	}

	return map[string]interface{}{
		"status": int64(resp.StatusCode),
		"body":   string(data),
	}, nil
}

// File helpers shared with the fs bindings.

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("fs: %w", err)
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	full := expandHome(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("fs: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("fs: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(expandHome(path))
	return err == nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
