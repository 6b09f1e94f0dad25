package trigger

import (
	"strings"
	"sync"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/log"
)

// Gate is a shared, per-(bus, control-topic) on/off switch. It subscribes to
// the control topic exactly once and fans the resulting on/off state out to
// every listener registered against it, however many triggers or policies
// share that topic.
type Gate struct {
	mu        sync.Mutex
	enabled   bool
	listeners map[int]func(bool)
	nextID    int
	cancel    func()
}

type gateKey struct {
	sub   bus.Subscriber
	topic string
}

var (
	gatesMu sync.Mutex
	gates   = map[gateKey]*Gate{}

	gateLogger = log.NewLogger(log.RecorderMeta{}).Sugar()
)

func gateFor(sub bus.Subscriber, topic string) *Gate {
	gatesMu.Lock()
	defer gatesMu.Unlock()

	key := gateKey{sub: sub, topic: topic}
	if g, ok := gates[key]; ok {
		return g
	}

	g := &Gate{listeners: map[int]func(bool){}}
	cancel, err := sub.Subscribe(topic, g.onMessage)
	if err != nil {
		gateLogger.Warnf("trigger gate: failed to subscribe control topic %q: %v", topic, err)
	} else {
		g.cancel = cancel
	}
	gates[key] = g
	return g
}

func (g *Gate) onMessage(payload []byte) {
	var enabled bool
	switch strings.TrimSpace(string(payload)) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		gateLogger.Warnf("trigger gate: ignoring invalid control message %q", string(payload))
		return
	}

	g.mu.Lock()
	g.enabled = enabled
	listeners := make([]func(bool), 0, len(g.listeners))
	for _, l := range g.listeners {
		listeners = append(listeners, l)
	}
	g.mu.Unlock()

	for _, l := range listeners {
		l(enabled)
	}
}

func (g *Gate) register(onChange func(bool)) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = onChange
	return id
}

func (g *Gate) unregister(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.listeners, id)
}

// GateSubscription is one listener's view of a Gate: its current enabled
// state, updated as control messages arrive. A GateSubscription with no
// configured control topic is always enabled and does no subscribing.
type GateSubscription struct {
	gate    *Gate
	id      int
	mu      sync.Mutex
	enabled bool
}

// Subscribe returns a GateSubscription for topic on sub. If topic is empty,
// the subscription starts (and stays) enabled. Otherwise it starts DISABLED,
// per the pause/resume default: configuring a control topic opts a
// policy/trigger out of firing until an explicit "on".
func Subscribe(sub bus.Subscriber, topic string) *GateSubscription {
	s := &GateSubscription{}
	if topic == "" {
		s.enabled = true
		return s
	}
	g := gateFor(sub, topic)
	s.gate = g
	s.id = g.register(func(enabled bool) {
		s.mu.Lock()
		s.enabled = enabled
		s.mu.Unlock()
	})
	return s
}

// Enabled reports the subscription's current state.
func (s *GateSubscription) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Close deregisters the subscription from its Gate, if any. Safe to call
// multiple times.
func (s *GateSubscription) Close() {
	if s.gate == nil {
		return
	}
	s.gate.unregister(s.id)
	s.gate = nil
}
