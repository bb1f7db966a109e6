package security

// Permission is a capability a plugin declares in its manifest.
type Permission string

// Permissions accepted in plugin manifests.
const (
	PermissionTabs           Permission = "tabs"
	PermissionBookmarks      Permission = "bookmarks"
	PermissionHistory        Permission = "history"
	PermissionDownloads      Permission = "downloads"
	PermissionCookies        Permission = "cookies"
	PermissionStorage        Permission = "storage"
	PermissionWebRequest     Permission = "webRequest"
	PermissionNotifications  Permission = "notifications"
	PermissionContextMenus   Permission = "contextMenus"
	PermissionClipboardRead  Permission = "clipboardRead"
	PermissionClipboardWrite Permission = "clipboardWrite"
	PermissionToolbar        Permission = "toolbar"
)

// PermissionAll grants every permission. The checker honors it, but it is
// deliberately absent from the manifest vocabulary: a manifest declaring
// "all" fails validation, while a grant table constructed elsewhere may
// still carry it.
const PermissionAll Permission = "all"

// Permissions only reachable through PermissionAll. No manifest can declare
// them directly, so the operations they guard are effectively reserved.
const (
	PermissionBrowser             Permission = "browser"
	PermissionNavigation          Permission = "navigation"
	PermissionContent             Permission = "content"
	PermissionUI                  Permission = "ui"
	PermissionSettings            Permission = "settings"
	PermissionRealityAugmentation Permission = "reality_augmentation"
	PermissionCollaborative       Permission = "collaborative"
	PermissionContentTransform    Permission = "content_transform"
	PermissionTimeTravel          Permission = "time_travel"
	PermissionDimensionalTabs     Permission = "dimensional_tabs"
	PermissionVoiceCommands       Permission = "voice_commands"
)

// manifestPermissions is the validation whitelist for manifest declarations.
var manifestPermissions = map[Permission]bool{
	PermissionTabs:           true,
	PermissionBookmarks:      true,
	PermissionHistory:        true,
	PermissionDownloads:      true,
	PermissionCookies:        true,
	PermissionStorage:        true,
	PermissionWebRequest:     true,
	PermissionNotifications:  true,
	PermissionContextMenus:   true,
	PermissionClipboardRead:  true,
	PermissionClipboardWrite: true,
	PermissionToolbar:        true,
}

// IsDeclarable reports whether a permission may appear in a manifest.
func IsDeclarable(p Permission) bool {
	return manifestPermissions[p]
}

// ManifestPermissions returns the manifest permission vocabulary.
func ManifestPermissions() []Permission {
	perms := make([]Permission, 0, len(manifestPermissions))
	for _, p := range []Permission{
		PermissionTabs, PermissionBookmarks, PermissionHistory,
		PermissionDownloads, PermissionCookies, PermissionStorage,
		PermissionWebRequest, PermissionNotifications, PermissionContextMenus,
		PermissionClipboardRead, PermissionClipboardWrite, PermissionToolbar,
	} {
		perms = append(perms, p)
	}
	return perms
}

// methodPermissions maps API methods to the permission required to call them.
// Methods absent from the table require no permission.
var methodPermissions = map[string]Permission{
	// Browser API
	"get_browser_info": PermissionBrowser,
	"get_version":      PermissionBrowser,
	"restart":          PermissionBrowser,
	"exit":             PermissionBrowser,

	// Tab API
	"get_tabs":        PermissionTabs,
	"get_current_tab": PermissionTabs,
	"create_tab":      PermissionTabs,
	"close_tab":       PermissionTabs,
	"select_tab":      PermissionTabs,
	"move_tab":        PermissionTabs,
	"get_tab_info":    PermissionTabs,

	// Navigation API
	"navigate":        PermissionNavigation,
	"go_back":         PermissionNavigation,
	"go_forward":      PermissionNavigation,
	"reload":          PermissionNavigation,
	"stop":            PermissionNavigation,
	"get_current_url": PermissionNavigation,

	// Content API
	"get_page_html": PermissionContent,
	"get_page_dom":  PermissionContent,
	"inject_css":    PermissionContent,
	"inject_js":     PermissionContent,
	"modify_dom":    PermissionContent,

	// UI API
	"add_toolbar_button":    PermissionUI,
	"add_menu_item":         PermissionUI,
	"add_context_menu_item": PermissionUI,
	"show_notification":     PermissionUI,
	"create_panel":          PermissionUI,

	// Data API
	"get_bookmarks":   PermissionBookmarks,
	"add_bookmark":    PermissionBookmarks,
	"remove_bookmark": PermissionBookmarks,
	"get_history":     PermissionHistory,
	"clear_history":   PermissionHistory,
	"get_cookies":     PermissionCookies,
	"set_cookie":      PermissionCookies,
	"remove_cookie":   PermissionCookies,

	// Download API
	"download_file":   PermissionDownloads,
	"pause_download":  PermissionDownloads,
	"resume_download": PermissionDownloads,
	"cancel_download": PermissionDownloads,
	"get_downloads":   PermissionDownloads,

	// Settings API
	"get_browser_settings":   PermissionSettings,
	"register_settings_page": PermissionSettings,

	// Extended features API
	"start_reality_augmentation":  PermissionRealityAugmentation,
	"start_collaborative_session": PermissionCollaborative,
	"transform_content":           PermissionContentTransform,
	"take_time_snapshot":          PermissionTimeTravel,
	"organize_dimensional_tabs":   PermissionDimensionalTabs,
	"register_voice_command":      PermissionVoiceCommands,
}

// hookPermissions maps hooks to the permission required to receive them.
// Hooks absent from the table require no permission.
var hookPermissions = map[string]Permission{
	// Browser lifecycle
	"onBrowserStart":    PermissionBrowser,
	"onBrowserExit":     PermissionBrowser,
	"onSettingsChanged": PermissionSettings,

	// Tabs
	"onTabCreated":    PermissionTabs,
	"beforeTabClosed": PermissionTabs,
	"onTabClosed":     PermissionTabs,
	"onTabSelected":   PermissionTabs,
	"onTabMoved":      PermissionTabs,

	// Navigation
	"beforeNavigation":   PermissionNavigation,
	"afterNavigation":    PermissionNavigation,
	"onPageStartLoad":    PermissionNavigation,
	"onPageLoadProgress": PermissionNavigation,
	"onPageFinishLoad":   PermissionNavigation,
	"onPageError":        PermissionNavigation,

	// Content
	"beforeDOMLoad": PermissionContent,
	"afterDOMLoad":  PermissionContent,
	"onHTMLModify":  PermissionContent,
	"onCSSModify":   PermissionContent,
	"onJSExecute":   PermissionContent,

	// UI
	"onToolbarCreated":   PermissionUI,
	"onMenuCreated":      PermissionUI,
	"onContextMenu":      PermissionUI,
	"onStatusBarUpdate":  PermissionUI,
	"onAddressBarUpdate": PermissionUI,

	// Data
	"onBookmarkAdded":   PermissionBookmarks,
	"onBookmarkRemoved": PermissionBookmarks,
	"onHistoryAdded":    PermissionHistory,
	"onHistoryRemoved":  PermissionHistory,
	"onCookieSet":       PermissionCookies,
	"onCookieRemoved":   PermissionCookies,
	"onCookiesCleared":  PermissionCookies,

	// Downloads
	"onDownloadStart":    PermissionDownloads,
	"onDownloadProgress": PermissionDownloads,
	"onDownloadComplete": PermissionDownloads,
	"onDownloadError":    PermissionDownloads,
	"onDownloadCanceled": PermissionDownloads,

	// Extended features
	"onRealityAugmentation":  PermissionRealityAugmentation,
	"onCollaborativeSession": PermissionCollaborative,
	"onContentTransform":     PermissionContentTransform,
	"onTimeTravelSnapshot":   PermissionTimeTravel,
	"onDimensionalTabChange": PermissionDimensionalTabs,
	"onVoiceCommand":         PermissionVoiceCommands,
}

// PermissionForMethod returns the permission an API method requires.
// ok is false when the method carries no requirement.
func PermissionForMethod(method string) (Permission, bool) {
	p, ok := methodPermissions[method]
	return p, ok
}

// PermissionForHook returns the permission a hook requires.
// ok is false when the hook carries no requirement.
func PermissionForHook(hookName string) (Permission, bool) {
	p, ok := hookPermissions[hookName]
	return p, ok
}
