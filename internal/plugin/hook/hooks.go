package hook

// Hook identifies a browser extension point.
type Hook string

// Browser lifecycle hooks.
const (
	OnBrowserStart   Hook = "onBrowserStart"
	OnBrowserExit    Hook = "onBrowserExit"
	OnProfileCreated Hook = "onProfileCreated"
)

// Tab hooks.
const (
	OnTabCreated      Hook = "onTabCreated"
	OnTabClosed       Hook = "onTabClosed"
	OnTabSelected     Hook = "onTabSelected"
	OnTabTitleChanged Hook = "onTabTitleChanged"
	OnTabURLChanged   Hook = "onTabUrlChanged"
)

// Page and navigation hooks.
const (
	OnPageLoading Hook = "onPageLoading"
	OnPageLoaded  Hook = "onPageLoaded"
	OnURLChanged  Hook = "onUrlChanged"
)

// Download hooks.
const (
	OnDownloadStart    Hook = "onDownloadStart"
	OnDownloadProgress Hook = "onDownloadProgress"
	OnDownloadComplete Hook = "onDownloadComplete"
	OnDownloadError    Hook = "onDownloadError"
	OnDownloadCanceled Hook = "onDownloadCanceled"
	OnDownloadPaused   Hook = "onDownloadPaused"
	OnDownloadResumed  Hook = "onDownloadResumed"
	OnDownloadsCleared Hook = "onDownloadsCleared"
	OnDownloadRemoved  Hook = "onDownloadRemoved"
)

// Bookmark hooks.
const (
	OnBookmarkAdded         Hook = "onBookmarkAdded"
	OnBookmarkRemoved       Hook = "onBookmarkRemoved"
	OnBookmarkUpdated       Hook = "onBookmarkUpdated"
	OnBookmarkFolderAdded   Hook = "onBookmarkFolderAdded"
	OnBookmarkFolderRemoved Hook = "onBookmarkFolderRemoved"
	OnBookmarkFolderRenamed Hook = "onBookmarkFolderRenamed"
	OnBookmarksImported     Hook = "onBookmarksImported"
	OnBookmarksExported     Hook = "onBookmarksExported"
)

// History hooks.
const (
	OnHistoryAdded   Hook = "onHistoryAdded"
	OnHistoryRemoved Hook = "onHistoryRemoved"
	OnHistoryCleared Hook = "onHistoryCleared"
)

// Cookie hooks.
const (
	OnCookieAdded    Hook = "onCookieAdded"
	OnCookieRemoved  Hook = "onCookieRemoved"
	OnCookiesCleared Hook = "onCookiesCleared"
)

// UI hooks.
const (
	OnContextMenu       Hook = "onContextMenu"
	OnToolbarCreated    Hook = "onToolbarCreated"
	OnStatusBarCreated  Hook = "onStatusBarCreated"
	OnAddressBarCreated Hook = "onAddressBarCreated"
)

// Settings hooks.
const (
	OnSettingsChanged Hook = "onSettingsChanged"
	OnThemeChanged    Hook = "onThemeChanged"
)

// Extended feature hooks.
const (
	OnRealityAugmentation  Hook = "onRealityAugmentation"
	OnCollaborativeSession Hook = "onCollaborativeSession"
	OnContentTransform     Hook = "onContentTransform"
	OnTimeTravelSnapshot   Hook = "onTimeTravelSnapshot"
	OnDimensionalTabChange Hook = "onDimensionalTabChange"
	OnVoiceCommand         Hook = "onVoiceCommand"
)

// availableHooks is the complete hook vocabulary. Registration against any
// other name is rejected.
var availableHooks = []Hook{
	OnBrowserStart, OnBrowserExit, OnProfileCreated,
	OnTabCreated, OnTabClosed, OnTabSelected, OnTabTitleChanged, OnTabURLChanged,
	OnPageLoading, OnPageLoaded,
	OnURLChanged,
	OnDownloadStart, OnDownloadProgress, OnDownloadComplete, OnDownloadError,
	OnDownloadCanceled, OnDownloadPaused, OnDownloadResumed, OnDownloadsCleared,
	OnDownloadRemoved,
	OnBookmarkAdded, OnBookmarkRemoved, OnBookmarkUpdated,
	OnBookmarkFolderAdded, OnBookmarkFolderRemoved, OnBookmarkFolderRenamed,
	OnBookmarksImported, OnBookmarksExported,
	OnHistoryAdded, OnHistoryRemoved, OnHistoryCleared,
	OnCookieAdded, OnCookieRemoved, OnCookiesCleared,
	OnContextMenu,
	OnToolbarCreated, OnStatusBarCreated, OnAddressBarCreated,
	OnSettingsChanged, OnThemeChanged,
	OnRealityAugmentation, OnCollaborativeSession, OnContentTransform,
	OnTimeTravelSnapshot, OnDimensionalTabChange, OnVoiceCommand,
}

// AvailableHooks returns the hook vocabulary in declaration order.
func AvailableHooks() []Hook {
	out := make([]Hook, len(availableHooks))
	copy(out, availableHooks)
	return out
}

// IsAvailable reports whether h is part of the hook vocabulary.
func IsAvailable(h Hook) bool {
	for _, known := range availableHooks {
		if known == h {
			return true
		}
	}
	return false
}
