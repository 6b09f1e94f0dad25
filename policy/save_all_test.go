package policy

import (
	"context"
	"sync"
	"testing"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAll_AlwaysSaves(t *testing.T) {
	base, err := newSaveAll(nil)
	require.NoError(t, err)

	pkt := bus.Packet{ID: "1"}
	base.OnPacket(pkt)
	assert.Equal(t, Save, base.ShouldSave(pkt))
	base.OnTrigger()
	assert.Equal(t, Save, base.ShouldSave(pkt))
}

func TestSaveAll_IgnoreTriggerControlStaysEnabled(t *testing.T) {
	b := bus.NewMemBus()
	var mu sync.Mutex

	p, err := New(Config{
		Type:                "save_all",
		Args:                map[string]any{"ignore_trigger_control": true},
		TriggerControlTopic: "ctl/front",
		Triggers: []trigger.Config{
			{Type: "rate", Args: map[string]any{"hz": float64(100)}},
		},
	}, &mu, b, "")
	require.NoError(t, err)
	defer p.Close()

	// The control topic starts (and stays) off: a normal policy would be
	// DISABLED and never observe on_trigger, but ignore_trigger_control
	// exempts save_all from the gate entirely.
	require.NoError(t, b.Publish(context.Background(), "ctl/front", []byte("off")))

	pkt := bus.Packet{ID: "1"}
	mu.Lock()
	p.OnPacket(pkt)
	decision := p.ShouldSave(pkt)
	mu.Unlock()
	assert.Equal(t, Save, decision)
	assert.True(t, p.gate.Enabled(), "gate stays enabled despite the \"off\" control message")
}

func TestDropAll_AlwaysDrops(t *testing.T) {
	base, err := newDropAll(nil)
	require.NoError(t, err)

	pkt := bus.Packet{ID: "1"}
	base.OnPacket(pkt)
	assert.Equal(t, Drop, base.ShouldSave(pkt))
	base.OnTrigger()
	assert.Equal(t, Drop, base.ShouldSave(pkt))
}
