// Package policy implements the save/drop/defer decision framework: a
// process-wide registry of named policy constructors, and the pause/resume
// gate every constructed policy is wrapped in.
package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/trigger"
)

// SaveDecision is a policy's verdict for a single packet.
type SaveDecision int

const (
	// Save means the packet should be written to the current output file.
	Save SaveDecision = iota
	// Drop means the packet should be discarded without being written.
	Drop
	// Defer means the packet's fate is not yet decided; it (and everything
	// behind it in the buffer) must wait.
	Defer
)

func (d SaveDecision) String() string {
	switch d {
	case Save:
		return "SAVE"
	case Drop:
		return "DROP"
	case Defer:
		return "DEFER"
	default:
		return "UNKNOWN"
	}
}

// Base is the decision logic a concrete policy type implements. All four
// methods are invoked under the owning Recorder's mutex, except OnTrigger,
// which arrives on a trigger's own goroutine and is serialized by Policy
// itself before reaching Base.
type Base interface {
	// OnPacket is notified when a packet is accepted into the buffer.
	OnPacket(pkt bus.Packet)
	// OnDrop is notified when a packet leaves the buffer, via SAVE or DROP.
	OnDrop(pkt bus.Packet)
	// OnTrigger marks recent/upcoming packets as interesting. Only called
	// while the policy is enabled.
	OnTrigger()
	// ShouldSave returns this policy's verdict for pkt.
	ShouldSave(pkt bus.Packet) SaveDecision
}

// Factory constructs a Base from a policy's raw args.
type Factory func(args map[string]any) (Base, error)

// ErrUnknownPolicy is returned when a config names an unregistered policy type.
var ErrUnknownPolicy = errors.New("unknown policy type")

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a named policy factory. Called from each reference policy's
// init(). Panics on duplicate registration, which can only happen from a
// programming error at link time.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic("policy: duplicate registration for " + name)
	}
	registry[name] = factory
}

func lookup(name string) (Factory, error) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return factory, nil
}

// Config is a policy's declarative configuration, matching a Rule's
// `policies[]` entry.
type Config struct {
	Type                string
	Args                map[string]any
	Triggers            []trigger.Config
	TriggerControlTopic string
}

// Validate dry-constructs the policy (and each of its triggers) against a
// throwaway in-memory bus, surfacing InvalidConfig errors (unknown type,
// missing required arg, out-of-range value) at startup instead of the
// first time a matching stream is discovered.
func Validate(cfg Config) error {
	factory, err := lookup(cfg.Type)
	if err != nil {
		return err
	}
	if _, err := factory(cfg.Args); err != nil {
		return fmt.Errorf("policy %q: %w", cfg.Type, err)
	}
	for _, tcfg := range cfg.Triggers {
		if err := trigger.Validate(tcfg); err != nil {
			return fmt.Errorf("policy %q trigger: %w", cfg.Type, err)
		}
	}
	return nil
}

// ignoresTriggerControl is implemented by a Base that accepts an
// ignore_trigger_control arg (§4.1.1): when true, the policy is exempted
// from its pause/resume gate and stays permanently enabled.
type ignoresTriggerControl interface {
	IgnoresTriggerControl() bool
}

// Policy wraps a constructed Base with its owned Triggers and its own
// pause/resume gate (§4.1: a policy with at least one configured control
// topic starts DISABLED; with none, it starts ENABLED).
type Policy struct {
	base     Base
	mu       *sync.Mutex
	gate     *trigger.GateSubscription
	triggers []*trigger.Trigger
}

// New constructs a Policy from cfg, sharing mu with the owning Recorder and
// subscribing to the trigger control gate (its own topic, or
// inheritedControlTopic from the owning Rule if unset) via sub.
func New(cfg Config, mu *sync.Mutex, sub bus.Subscriber, inheritedControlTopic string) (*Policy, error) {
	factory, err := lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	base, err := factory(cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", cfg.Type, err)
	}

	controlTopic := cfg.TriggerControlTopic
	if controlTopic == "" {
		controlTopic = inheritedControlTopic
	}
	if ign, ok := base.(ignoresTriggerControl); ok && ign.IgnoresTriggerControl() {
		controlTopic = ""
	}

	p := &Policy{
		base: base,
		mu:   mu,
		gate: trigger.Subscribe(sub, controlTopic),
	}

	for _, tcfg := range cfg.Triggers {
		t, err := trigger.New(tcfg, controlTopic, sub, func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.gate.Enabled() {
				p.base.OnTrigger()
			}
		})
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("policy %q: %w", cfg.Type, err)
		}
		p.triggers = append(p.triggers, t)
	}

	return p, nil
}

// OnPacket forwards to Base. Caller must hold mu.
func (p *Policy) OnPacket(pkt bus.Packet) { p.base.OnPacket(pkt) }

// OnDrop forwards to Base. Caller must hold mu.
func (p *Policy) OnDrop(pkt bus.Packet) { p.base.OnDrop(pkt) }

// ShouldSave forwards to Base. Caller must hold mu.
func (p *Policy) ShouldSave(pkt bus.Packet) SaveDecision { return p.base.ShouldSave(pkt) }

// Close tears down every owned Trigger and the policy's own gate
// subscription. Safe to call multiple times.
func (p *Policy) Close() {
	for _, t := range p.triggers {
		t.Close()
	}
	p.triggers = nil
	if p.gate != nil {
		p.gate.Close()
	}
}
