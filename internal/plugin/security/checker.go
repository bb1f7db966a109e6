package security

import (
	"strings"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// PermissionSource resolves the declared permissions of a loaded plugin.
// ok is false when the plugin is not loaded.
type PermissionSource interface {
	PluginPermissions(plugin string) ([]Permission, bool)
}

// Checker answers permission queries against plugin manifests.
//
// Results are memoized per (plugin, permission) pair. The cache is never
// expired or invalidated implicitly; callers that unload or reload a plugin
// must call ClearCacheFor themselves.
type Checker struct {
	source PermissionSource
	cache  *gocache.Cache
	audit  *AuditLog
}

// NewChecker creates a permission checker backed by the given source.
// The audit log may be nil, in which case denials are only logged.
func NewChecker(source PermissionSource, audit *AuditLog) *Checker {
	return &Checker{
		source: source,
		cache:  gocache.New(gocache.NoExpiration, 0),
		audit:  audit,
	}
}

func cacheKey(plugin string, p Permission) string {
	return plugin + ":" + string(p)
}

// Has reports whether a plugin holds a permission, either directly or
// through the "all" wildcard. Unknown plugins hold nothing.
func (c *Checker) Has(plugin string, p Permission) bool {
	key := cacheKey(plugin, p)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(bool)
	}

	perms, ok := c.source.PluginPermissions(plugin)
	if !ok {
		return false
	}

	granted := false
	for _, held := range perms {
		if held == p || held == PermissionAll {
			granted = true
			break
		}
	}

	c.cache.Set(key, granted, gocache.NoExpiration)
	return granted
}

// Request asks for a permission on behalf of a plugin. There is no
// interactive grant flow: a plugin either declared the permission or the
// request is denied and recorded.
func (c *Checker) Request(plugin string, p Permission, reason string) bool {
	if c.Has(plugin, p) {
		return true
	}

	if reason == "" {
		reason = "permission not granted"
	}
	log.WithFields(log.Fields{
		"plugin":     plugin,
		"permission": p,
	}).Warnf("permission requested: %s", reason)

	if c.audit != nil {
		c.audit.Record(EventPermissionDenied, plugin, string(p)+": "+reason, SeverityWarning)
	}
	return false
}

// ClearCache drops every memoized result.
func (c *Checker) ClearCache() {
	c.cache.Flush()
}

// ClearCacheFor drops memoized results for a single plugin.
func (c *Checker) ClearCacheFor(plugin string) {
	prefix := plugin + ":"
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}
