package browser

import (
	"sync"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// Settings is the browser's key/value configuration store. Every change
// emits onSettingsChanged; changing "theme" additionally emits
// onThemeChanged.
type Settings struct {
	mu     sync.RWMutex
	notify Notify
	values map[string]interface{}
}

func newSettings(notify Notify) *Settings {
	return &Settings{
		notify: notify,
		values: map[string]interface{}{
			"theme":         "dark",
			"homepage":      "about:blank",
			"search_engine": "https://duckduckgo.com/?q=",
		},
	}
}

// Get returns a setting value.
func (s *Settings) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a setting value.
func (s *Settings) Set(key string, value interface{}) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	s.notify(hook.OnSettingsChanged, key, value)
	if key == "theme" {
		s.notify(hook.OnThemeChanged, value)
	}
}

// All returns a copy of every setting.
func (s *Settings) All() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
