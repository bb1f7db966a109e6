package security

import (
	"strings"
	"sync"
	"time"
)

// defaultMaliciousIndicators are substrings that mark a URL as malicious.
var defaultMaliciousIndicators = []string{
	"phishing",
	"malware",
	"scam",
	"virus",
	"trojan",
	"exploit",
}

// URLStatus is the result of a content security check.
type URLStatus struct {
	Secure    bool
	HTTPS     bool
	Blocked   bool
	Malicious bool
}

// BlockedURL is an entry in the blocklist.
type BlockedURL struct {
	URL    string
	Reason string
	Time   time.Time
}

// ContentPolicy decides whether URLs are safe to navigate to, load, or
// download from. A URL is secure iff it uses HTTPS, is not blocklisted, and
// contains no malicious indicator substring.
type ContentPolicy struct {
	mu         sync.RWMutex
	blocked    map[string]BlockedURL
	indicators []string
	audit      *AuditLog
}

// NewContentPolicy creates a content policy with the default indicator set.
// The audit log may be nil.
func NewContentPolicy(audit *AuditLog) *ContentPolicy {
	indicators := make([]string, len(defaultMaliciousIndicators))
	copy(indicators, defaultMaliciousIndicators)
	return &ContentPolicy{
		blocked:    make(map[string]BlockedURL),
		indicators: indicators,
		audit:      audit,
	}
}

// CheckURL evaluates a URL against the policy.
func (p *ContentPolicy) CheckURL(url string) URLStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := URLStatus{
		HTTPS: strings.HasPrefix(url, "https://"),
	}
	_, status.Blocked = p.blocked[url]

	lower := strings.ToLower(url)
	for _, indicator := range p.indicators {
		if strings.Contains(lower, indicator) {
			status.Malicious = true
			break
		}
	}

	status.Secure = status.HTTPS && !status.Blocked && !status.Malicious
	return status
}

// IsBlocked reports whether the exact URL is on the blocklist.
func (p *ContentPolicy) IsBlocked(url string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.blocked[url]
	return ok
}

// Block adds a URL to the blocklist. Blocking an already blocked URL is a
// no-op that keeps the original reason.
func (p *ContentPolicy) Block(url, reason string) {
	p.mu.Lock()
	if _, ok := p.blocked[url]; ok {
		p.mu.Unlock()
		return
	}
	p.blocked[url] = BlockedURL{URL: url, Reason: reason, Time: time.Now()}
	p.mu.Unlock()

	if p.audit != nil {
		p.audit.Record(EventURLBlocked, "", "URL blocked: "+reason, SeverityWarning)
	}
}

// Unblock removes a URL from the blocklist.
func (p *ContentPolicy) Unblock(url string) {
	p.mu.Lock()
	_, ok := p.blocked[url]
	delete(p.blocked, url)
	p.mu.Unlock()

	if ok && p.audit != nil {
		p.audit.Record(EventURLUnblocked, "", "URL unblocked", SeverityInfo)
	}
}

// BlockedURLs returns the blocklist, newest first.
func (p *ContentPolicy) BlockedURLs() []BlockedURL {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]BlockedURL, 0, len(p.blocked))
	for _, b := range p.blocked {
		out = append(out, b)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Time.After(out[i].Time) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
