package browser

import (
	"fmt"
	"sync"

	"github.com/nebulafusion/nebula/internal/plugin/hook"
)

// Cookies stores cookies keyed by domain, path, and name.
type Cookies struct {
	mu     sync.RWMutex
	notify Notify
	items  map[string]Cookie
}

func newCookies(notify Notify) *Cookies {
	return &Cookies{notify: notify, items: make(map[string]Cookie)}
}

func cookieKey(domain, path, name string) string {
	return domain + "|" + path + "|" + name
}

// Set adds or replaces a cookie.
func (c *Cookies) Set(cookie Cookie) {
	c.mu.Lock()
	c.items[cookieKey(cookie.Domain, cookie.Path, cookie.Name)] = cookie
	c.mu.Unlock()

	c.notify(hook.OnCookieAdded, cookie.Domain, cookie.Name)
}

// Get returns one cookie.
func (c *Cookies) Get(domain, path, name string) (Cookie, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cookie, ok := c.items[cookieKey(domain, path, name)]
	return cookie, ok
}

// Remove deletes one cookie.
func (c *Cookies) Remove(domain, path, name string) error {
	key := cookieKey(domain, path, name)

	c.mu.Lock()
	if _, ok := c.items[key]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: cookie %s on %s", ErrNotFound, name, domain)
	}
	delete(c.items, key)
	c.mu.Unlock()

	c.notify(hook.OnCookieRemoved, domain, name)
	return nil
}

// ForDomain returns all cookies stored for a domain.
func (c *Cookies) ForDomain(domain string) []Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Cookie
	for _, cookie := range c.items {
		if cookie.Domain == domain {
			out = append(out, cookie)
		}
	}
	return out
}

// Clear drops every cookie.
func (c *Cookies) Clear() {
	c.mu.Lock()
	c.items = make(map[string]Cookie)
	c.mu.Unlock()

	c.notify(hook.OnCookiesCleared)
}
