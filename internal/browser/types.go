package browser

import "time"

// Tab is one open page.
type Tab struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
}

// Bookmark is a saved page reference.
type Bookmark struct {
	ID      string    `json:"id"`
	URL     string    `json:"url"`
	Title   string    `json:"title"`
	Folder  string    `json:"folder"`
	AddedAt time.Time `json:"added_at"`
}

// HistoryEntry records one page visit.
type HistoryEntry struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	VisitedAt time.Time `json:"visited_at"`
}

// DownloadState tracks a download through its lifecycle.
type DownloadState string

const (
	DownloadActive   DownloadState = "active"
	DownloadPaused   DownloadState = "paused"
	DownloadComplete DownloadState = "complete"
	DownloadCanceled DownloadState = "canceled"
	DownloadFailed   DownloadState = "failed"
)

// Download is one file transfer.
type Download struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Filename      string        `json:"filename"`
	State         DownloadState `json:"state"`
	BytesReceived int64         `json:"bytes_received"`
	TotalBytes    int64         `json:"total_bytes"`
	StartedAt     time.Time     `json:"started_at"`
}

// Cookie is an HTTP cookie visible to plugins with the cookies permission.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}
