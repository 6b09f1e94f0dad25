package policy

import (
	"testing"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/clockunits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monoHeaderPacket(id string, ts clockunits.MonoTime) bus.Packet {
	return bus.Packet{ID: id, Headers: []bus.Header{{Key: "a0_time_mono", Value: ts.String()}}}
}

func TestTimePolicy_RejectsEmptyWindow(t *testing.T) {
	_, err := newTimePolicy(map[string]any{})
	assert.Error(t, err)
}

func TestTimePolicy_SavesWithinTriggerWindow(t *testing.T) {
	base, err := newTimePolicy(map[string]any{"save_prev": "5s", "save_next": "5s"})
	require.NoError(t, err)
	tp := base.(*timePolicy)

	now := clockunits.Now()
	p1 := monoHeaderPacket("p1", now)
	tp.OnPacket(p1)
	tp.OnTrigger()

	assert.Equal(t, Save, tp.ShouldSave(p1))
}

func TestTimePolicy_DropsFarFromAnyTrigger(t *testing.T) {
	base, err := newTimePolicy(map[string]any{"save_prev": "5s", "save_next": "5s"})
	require.NoError(t, err)
	tp := base.(*timePolicy)

	longAgo := clockunits.Now().Add(-100 * 1_000_000_000) // 100s in the past
	p1 := monoHeaderPacket("p1", longAgo)
	tp.OnPacket(p1)
	tp.OnTrigger() // fires "now", well outside p1's window

	assert.Equal(t, Drop, tp.ShouldSave(p1))
}

func TestTimePolicy_DefersUndecidedPacket(t *testing.T) {
	base, err := newTimePolicy(map[string]any{"save_prev": "100s"})
	require.NoError(t, err)
	tp := base.(*timePolicy)

	p1 := monoHeaderPacket("p1", clockunits.Now())
	tp.OnPacket(p1)

	assert.Equal(t, Defer, tp.ShouldSave(p1), "still within save_prev window with no decisive trigger yet")
}

func TestTimePolicy_OnDropOnlyPopsMatchingHead(t *testing.T) {
	base, err := newTimePolicy(map[string]any{"save_next": "5s"})
	require.NoError(t, err)
	tp := base.(*timePolicy)

	p1 := monoHeaderPacket("p1", clockunits.Now())
	p2 := monoHeaderPacket("p2", clockunits.Now())
	tp.OnPacket(p1)
	tp.OnPacket(p2)

	tp.OnDrop(p2) // not the head; no-op
	require.Len(t, tp.pending, 2)

	tp.OnDrop(p1)
	require.Len(t, tp.pending, 1)
	assert.Equal(t, "p2", tp.pending[0].pkt.ID)
}

func TestTimePolicy_MissingHeaderIgnored(t *testing.T) {
	base, err := newTimePolicy(map[string]any{"save_next": "5s"})
	require.NoError(t, err)
	tp := base.(*timePolicy)

	tp.OnPacket(bus.Packet{ID: "no-header"})
	assert.Empty(t, tp.pending)
}
