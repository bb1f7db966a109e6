package security

import (
	"fmt"
)

// Guard gates privileged browser operations performed on behalf of plugins.
//
// Every check runs the permission test first and, for URL-bearing
// operations, the content policy second, short-circuiting on the first
// failure. Denials are recorded in the audit log. Calls without a plugin
// identity are host-initiated and always allowed.
type Guard struct {
	checker *Checker
	policy  *ContentPolicy
	audit   *AuditLog
}

// NewGuard creates a guard. The audit log may be nil.
func NewGuard(checker *Checker, policy *ContentPolicy, audit *AuditLog) *Guard {
	return &Guard{checker: checker, policy: policy, audit: audit}
}

func (g *Guard) denyPermission(plugin string, p Permission, detail string) bool {
	if g.audit != nil {
		g.audit.Record(EventPermissionDenied, plugin,
			fmt.Sprintf("%s: %s", p, detail), SeverityWarning)
	}
	return false
}

func (g *Guard) denyURL(plugin, operation, url string) bool {
	if g.audit != nil {
		g.audit.Record(EventSecurityViolation, plugin,
			fmt.Sprintf("%s: insecure URL blocked: %s", operation, url), SeverityCritical)
	}
	return false
}

// checkPermission is the common permission step. An empty plugin identity
// means the host itself is acting.
func (g *Guard) checkPermission(plugin string, p Permission, detail string) bool {
	if plugin == "" {
		return true
	}
	if !g.checker.Has(plugin, p) {
		return g.denyPermission(plugin, p, detail)
	}
	return true
}

// BeforeTabCreated gates tab creation.
func (g *Guard) BeforeTabCreated(plugin string) bool {
	return g.checkPermission(plugin, PermissionTabs, "permission denied to create tab")
}

// BeforeTabClosed gates tab closing.
func (g *Guard) BeforeTabClosed(plugin string) bool {
	return g.checkPermission(plugin, PermissionTabs, "permission denied to close tab")
}

// AllowURL runs only the content policy step: blocklist, HTTPS, and
// malicious indicators. Used by operations whose permission was already
// checked, or that need no permission at all. Host-initiated calls pass.
func (g *Guard) AllowURL(plugin, operation, url string) bool {
	if plugin == "" {
		return true
	}
	if !g.policy.CheckURL(url).Secure {
		return g.denyURL(plugin, operation, url)
	}
	return true
}

// BeforeNavigation gates navigation to a URL.
func (g *Guard) BeforeNavigation(plugin, url string) bool {
	if !g.checkPermission(plugin, PermissionNavigation,
		"permission denied to navigate to "+url) {
		return false
	}
	if plugin != "" && !g.policy.CheckURL(url).Secure {
		return g.denyURL(plugin, "navigation", url)
	}
	return true
}

// BeforeResourceLoad gates loading a sub-resource.
func (g *Guard) BeforeResourceLoad(plugin, url string) bool {
	if !g.checkPermission(plugin, PermissionContent,
		"permission denied to load resource "+url) {
		return false
	}
	if plugin != "" && !g.policy.CheckURL(url).Secure {
		return g.denyURL(plugin, "resource_load", url)
	}
	return true
}

// BeforeScriptExecution gates script injection on a page.
func (g *Guard) BeforeScriptExecution(plugin, url string) bool {
	return g.checkPermission(plugin, PermissionContent,
		"permission denied to execute script on "+url)
}

// BeforeDOMModification gates DOM mutation.
func (g *Guard) BeforeDOMModification(plugin string) bool {
	return g.checkPermission(plugin, PermissionContent,
		"permission denied to modify DOM")
}

// BeforeCookieSet gates writing a cookie.
func (g *Guard) BeforeCookieSet(plugin string) bool {
	return g.checkPermission(plugin, PermissionCookies,
		"permission denied to set cookie")
}

// BeforeCookieRead gates reading cookies.
func (g *Guard) BeforeCookieRead(plugin string) bool {
	return g.checkPermission(plugin, PermissionCookies,
		"permission denied to read cookie")
}

// BeforeDownload gates starting a download.
func (g *Guard) BeforeDownload(plugin, url string) bool {
	if !g.checkPermission(plugin, PermissionDownloads,
		"permission denied to download file") {
		return false
	}
	if plugin != "" && !g.policy.CheckURL(url).Secure {
		return g.denyURL(plugin, "download", url)
	}
	return true
}

// BeforeAPICall gates a plugin API method. Methods with no mapped
// permission are allowed.
func (g *Guard) BeforeAPICall(plugin, method string) bool {
	p, ok := PermissionForMethod(method)
	if !ok {
		return true
	}
	return g.checkPermission(plugin, p,
		"permission denied to call API method "+method)
}

// BeforeHookExecution gates delivery of a hook to a plugin. Hooks with no
// mapped permission are allowed, as are hooks mapped to permissions outside
// the manifest vocabulary: no manifest can declare those, so vetoing them
// would make the hook undeliverable to every plugin. Satisfies the hook bus
// gate contract.
func (g *Guard) BeforeHookExecution(plugin, hookName string) bool {
	p, ok := PermissionForHook(hookName)
	if !ok || !IsDeclarable(p) {
		return true
	}
	return g.checkPermission(plugin, p,
		"permission denied to execute hook "+hookName)
}
