package hook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registry errors.
var (
	// ErrUnknownHook is returned when a hook name is not in the vocabulary.
	ErrUnknownHook = errors.New("unknown hook")

	// ErrNotRegistered is returned when unregistering a callback that was
	// never registered.
	ErrNotRegistered = errors.New("hook not registered by plugin")
)

// Callback is a plugin hook callback. The context carries the per-call
// deadline; implementations that run plugin code must honor it.
type Callback func(ctx context.Context, args ...interface{}) error

// Gate is consulted before each delivery. Returning false skips the delivery
// for that plugin without affecting other registrations.
type Gate func(plugin string, h Hook) bool

// DisableFunc receives plugins whose callbacks faulted during dispatch.
// It is invoked after the dispatch loop completes, never from inside it,
// so implementations may safely call back into the registry.
type DisableFunc func(plugin string, reason error)

// registration pairs a plugin with its callback. Order within a hook's slice
// is registration order and determines dispatch order.
type registration struct {
	plugin string
	cb     Callback
}

// Bus is the hook registry and dispatcher.
type Bus struct {
	mu      sync.RWMutex
	entries map[Hook][]registration

	gate        Gate
	disable     DisableFunc
	callTimeout time.Duration
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithGate sets the per-delivery gate.
func WithGate(g Gate) BusOption {
	return func(b *Bus) { b.gate = g }
}

// WithDisableFunc sets the sink for faulting plugins.
func WithDisableFunc(fn DisableFunc) BusOption {
	return func(b *Bus) { b.disable = fn }
}

// WithCallTimeout sets the wall-clock budget for a single callback.
// Zero disables the timeout.
func WithCallTimeout(d time.Duration) BusOption {
	return func(b *Bus) { b.callTimeout = d }
}

// NewBus creates a Bus with every hook in the vocabulary initialized.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		entries: make(map[Hook][]registration, len(availableHooks)),
	}
	for _, h := range availableHooks {
		b.entries[h] = nil
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetDisableFunc replaces the disable sink. The orchestrator is usually
// constructed after the bus, so this is wired late.
func (b *Bus) SetDisableFunc(fn DisableFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disable = fn
}

// SetGate replaces the per-delivery gate.
func (b *Bus) SetGate(g Gate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = g
}

// Register attaches a plugin callback to a hook. Re-registering replaces the
// previous callback in place, keeping the original dispatch position.
func (b *Bus) Register(h Hook, plugin string, cb Callback) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs, ok := b.entries[h]
	if !ok {
		log.WithFields(log.Fields{"hook": h, "plugin": plugin}).Warn("hook not found")
		return fmt.Errorf("%w: %s", ErrUnknownHook, h)
	}

	for i, reg := range regs {
		if reg.plugin == plugin {
			regs[i].cb = cb
			return nil
		}
	}

	b.entries[h] = append(regs, registration{plugin: plugin, cb: cb})
	log.WithFields(log.Fields{"hook": h, "plugin": plugin}).Debug("hook registered")
	return nil
}

// Unregister removes a plugin's callback from a hook.
func (b *Bus) Unregister(h Hook, plugin string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs, ok := b.entries[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHook, h)
	}

	for i, reg := range regs {
		if reg.plugin == plugin {
			b.entries[h] = append(regs[:i], regs[i+1:]...)
			log.WithFields(log.Fields{"hook": h, "plugin": plugin}).Debug("hook unregistered")
			return nil
		}
	}
	return fmt.Errorf("%w: %s by %s", ErrNotRegistered, h, plugin)
}

// UnregisterAll removes every callback a plugin has registered.
func (b *Bus) UnregisterAll(plugin string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for h, regs := range b.entries {
		for i, reg := range regs {
			if reg.plugin == plugin {
				b.entries[h] = append(regs[:i], regs[i+1:]...)
				break
			}
		}
	}
}

// RegisteredBy returns the hooks a plugin has callbacks on, in vocabulary order.
func (b *Bus) RegisteredBy(plugin string) []Hook {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var hooks []Hook
	for _, h := range availableHooks {
		for _, reg := range b.entries[h] {
			if reg.plugin == plugin {
				hooks = append(hooks, h)
				break
			}
		}
	}
	return hooks
}

// Registrations returns the plugins attached to a hook in dispatch order.
func (b *Bus) Registrations(h Hook) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	regs := b.entries[h]
	plugins := make([]string, 0, len(regs))
	for _, reg := range regs {
		plugins = append(plugins, reg.plugin)
	}
	return plugins
}

// Trigger dispatches a hook to every registered callback in registration
// order. A callback failure is logged and recorded but never stops dispatch.
// Plugins that faulted are handed to the disable sink after the loop.
func (b *Bus) Trigger(ctx context.Context, h Hook, args ...interface{}) {
	b.mu.RLock()
	regs, ok := b.entries[h]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	gate := b.gate
	disable := b.disable
	b.mu.RUnlock()

	if !ok {
		log.WithField("hook", h).Warn("hook not found")
		return
	}
	if len(snapshot) == 0 {
		return
	}

	log.WithField("hook", h).Debug("triggering hook")

	type fault struct {
		plugin string
		err    error
	}
	var faults []fault

	for _, reg := range snapshot {
		if gate != nil && !gate(reg.plugin, h) {
			log.WithFields(log.Fields{"hook": h, "plugin": reg.plugin}).
				Debug("hook delivery vetoed")
			continue
		}

		if err := b.invoke(ctx, reg.cb, args); err != nil {
			log.WithFields(log.Fields{"hook": h, "plugin": reg.plugin}).
				WithError(err).Error("hook callback failed")
			faults = append(faults, fault{plugin: reg.plugin, err: err})
		}
	}

	if disable == nil {
		return
	}
	seen := make(map[string]bool, len(faults))
	for _, f := range faults {
		if seen[f.plugin] {
			continue
		}
		seen[f.plugin] = true
		disable(f.plugin, fmt.Errorf("hook %s: %w", h, f.err))
	}
}

// invoke runs a single callback under the call timeout with panic recovery.
func (b *Bus) invoke(ctx context.Context, cb Callback, args []interface{}) (err error) {
	if b.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook callback panic: %v", r)
		}
	}()
	return cb(ctx, args...)
}
