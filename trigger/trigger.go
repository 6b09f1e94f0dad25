// Package trigger implements the background notification framework that
// tells a policy "something noteworthy just happened": a fixed rate, a cron
// schedule, or a pubsub message. Every trigger is pausable through a shared,
// per-control-topic Gate.
package trigger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/arkive/bus"
)

// Handle is the lifecycle of a constructed trigger. Close stops whatever
// background activity the trigger started (goroutine, subscription) and
// must be safe to call exactly once.
type Handle interface {
	Close() error
}

// Factory constructs a trigger's Handle. notify has already been wrapped
// with the gate check; implementations call it unconditionally whenever
// they'd otherwise fire. sub is the bus used for any trigger that itself
// needs to subscribe to a data topic (pubsub); rate and cron ignore it.
type Factory func(args map[string]any, sub bus.Subscriber, notify func()) (Handle, error)

// ErrUnknownTrigger is returned when a config names an unregistered trigger type.
var ErrUnknownTrigger = errors.New("unknown trigger type")

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a named trigger factory. Called from each reference
// trigger's init().
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic("trigger: duplicate registration for " + name)
	}
	registry[name] = factory
}

func lookup(name string) (Factory, error) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}
	return factory, nil
}

// Config is a trigger's declarative configuration, matching a policy's
// `triggers[]` entry.
type Config struct {
	Type         string
	Args         map[string]any
	ControlTopic string
}

// Validate dry-constructs a trigger against a throwaway in-memory bus and
// immediately closes it, surfacing config errors (unknown type, missing or
// out-of-range args) at startup.
func Validate(cfg Config) error {
	factory, err := lookup(cfg.Type)
	if err != nil {
		return err
	}
	handle, err := factory(cfg.Args, bus.NewMemBus(), func() {})
	if err != nil {
		return fmt.Errorf("trigger %q: %w", cfg.Type, err)
	}
	return handle.Close()
}

// Trigger wraps a constructed Handle with its own pause/resume gate
// subscription (§4.2: a trigger with at least one configured control topic
// starts DISABLED; with none, it starts ENABLED).
type Trigger struct {
	handle Handle
	gate   *GateSubscription
}

// New constructs a Trigger from cfg, falling back to inheritedControlTopic
// when cfg has none of its own, and subscribing to sub for both the gate
// and (if applicable) the trigger's own data topic.
func New(cfg Config, inheritedControlTopic string, sub bus.Subscriber, notify func()) (*Trigger, error) {
	factory, err := lookup(cfg.Type)
	if err != nil {
		return nil, err
	}

	controlTopic := cfg.ControlTopic
	if controlTopic == "" {
		controlTopic = inheritedControlTopic
	}
	gate := Subscribe(sub, controlTopic)

	gatedNotify := func() {
		if gate.Enabled() {
			notify()
		}
	}

	handle, err := factory(cfg.Args, sub, gatedNotify)
	if err != nil {
		gate.Close()
		return nil, fmt.Errorf("trigger %q: %w", cfg.Type, err)
	}

	return &Trigger{handle: handle, gate: gate}, nil
}

// Close stops the underlying Handle and releases the gate subscription.
func (t *Trigger) Close() error {
	err := t.handle.Close()
	t.gate.Close()
	return err
}
