package security

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType classifies an audit event.
type EventType string

// Audit event types.
const (
	EventPermissionDenied  EventType = "permission_denied"
	EventSecurityViolation EventType = "security_violation"
	EventResourceExceeded  EventType = "resource_limit_exceeded"
	EventURLBlocked        EventType = "url_blocked"
	EventURLUnblocked      EventType = "url_unblocked"
)

// Severity levels for audit events.
const (
	SeverityInfo     = 1
	SeverityWarning  = 2
	SeverityCritical = 3
)

// Event is a single audit record.
type Event struct {
	ID       string
	Type     EventType
	Plugin   string
	Detail   string
	Severity int
	Time     time.Time
}

// Observer receives audit events as they are recorded.
type Observer func(Event)

// defaultAuditCapacity bounds the in-memory event store.
const defaultAuditCapacity = 1000

// AuditLog is a bounded, append-only store of security events.
// When full, the oldest events are dropped.
type AuditLog struct {
	mu        sync.RWMutex
	events    []Event
	capacity  int
	observers []Observer
}

// NewAuditLog creates an audit log. capacity <= 0 uses the default.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &AuditLog{capacity: capacity}
}

// Observe registers an observer for future events.
func (a *AuditLog) Observe(obs Observer) {
	if obs == nil {
		return
	}
	a.mu.Lock()
	a.observers = append(a.observers, obs)
	a.mu.Unlock()
}

// Record appends an event and notifies observers.
func (a *AuditLog) Record(typ EventType, plugin, detail string, severity int) Event {
	ev := Event{
		ID:       uuid.NewString(),
		Type:     typ,
		Plugin:   plugin,
		Detail:   detail,
		Severity: severity,
		Time:     time.Now(),
	}

	a.mu.Lock()
	a.events = append(a.events, ev)
	if len(a.events) > a.capacity {
		a.events = a.events[len(a.events)-a.capacity:]
	}
	observers := make([]Observer, len(a.observers))
	copy(observers, a.observers)
	a.mu.Unlock()

	if severity >= SeverityWarning {
		log.WithFields(log.Fields{
			"event":  typ,
			"plugin": plugin,
		}).Warn(detail)
	}

	for _, obs := range observers {
		obs(ev)
	}
	return ev
}

// Events returns recorded events, newest last, optionally filtered by type
// and minimum severity. A zero-valued filter matches everything.
func (a *AuditLog) Events(typ EventType, minSeverity int) []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Event, 0, len(a.events))
	for _, ev := range a.events {
		if typ != "" && ev.Type != typ {
			continue
		}
		if ev.Severity < minSeverity {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// EventsFor returns events recorded against a single plugin.
func (a *AuditLog) EventsFor(plugin string) []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []Event
	for _, ev := range a.events {
		if ev.Plugin == plugin {
			out = append(out, ev)
		}
	}
	return out
}

// Clear removes all recorded events.
func (a *AuditLog) Clear() {
	a.mu.Lock()
	a.events = nil
	a.mu.Unlock()
}
