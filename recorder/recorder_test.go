package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/clockunits"
	"github.com/justapithecus/arkive/config"
	"github.com/justapithecus/arkive/log"
	"github.com/justapithecus/arkive/policy"
	"github.com/justapithecus/arkive/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFile struct {
	mu       sync.Mutex
	capacity uint64
	used     uint64
	writes   [][]byte
	closed   bool
}

func (f *fakeFile) Write(pkt bus.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, pkt.Payload)
	f.used += uint64(len(pkt.Payload))
	return nil
}
func (f *fakeFile) UsedBytes() uint64 { return f.used }
func (f *fakeFile) WouldEvict(size uint64) bool {
	return f.used+size > f.capacity
}
func (f *fakeFile) Close() error {
	f.closed = true
	return nil
}

type fakeArena struct {
	mu      sync.Mutex
	created map[string]*fakeFile
	renamed map[string]string
	removed []string
}

func newFakeArena() *fakeArena {
	return &fakeArena{created: map[string]*fakeFile{}}
}

func (a *fakeArena) Create(path string, capacity uint64) (bus.ArenaFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := &fakeFile{capacity: capacity}
	a.created[path] = f
	return f, nil
}

func (a *fakeArena) Rename(inProgress, final string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.renamed = map[string]string{inProgress: final}
	return nil
}

func (a *fakeArena) Remove(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, path)
	return nil
}

var _ bus.Arena = (*fakeArena)(nil)

func testPacket(id string, ts clockunits.MonoTime, payload string) bus.Packet {
	return bus.Packet{
		ID: id,
		Headers: []bus.Header{
			{Key: "a0_time_mono", Value: ts.String()},
			{Key: "a0_time_wall", Value: clockunits.WallTime{Time: time.Now()}.String()},
		},
		Payload: []byte(payload),
	}
}

func newTestRecorder(t *testing.T, b *bus.MemBus, arena bus.Arena, policies []policy.Config) *Recorder {
	t.Helper()
	r, err := New(Options{
		Rule: config.ResolvedRule{
			Protocol:           config.ProtocolPubsub,
			Topic:              "sensor/*",
			Policies:           policies,
			MaxLogfileSize:     1024,
			MaxLogfileDuration: time.Hour,
			RelativeWatchPath:  "sensor/front",
		},
		ReadPath:          "sensor/front",
		RelativeWatchPath: "sensor/front",
		SavePath:          "/save",
		AnnounceTopic:     "sensor/front/announce",
		Bus:               b,
		Arena:             arena,
		StartTimeMono:     clockunits.Now().Add(-time.Hour),
		Logger:            log.NewLogger(log.RecorderMeta{Protocol: "pubsub", Topic: "sensor/*"}),
	})
	require.NoError(t, err)
	return r
}

func TestRecorder_SavesViaSaveAllPolicy(t *testing.T) {
	b := bus.NewMemBus()
	arena := newFakeArena()
	r := newTestRecorder(t, b, arena, []policy.Config{{Type: "save_all"}})
	defer r.Shutdown()

	b.Emit("sensor/front", testPacket("p1", clockunits.Now(), "hello"))

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.writeFile != nil && r.writeFile.UsedBytes() == 5
	}, time.Second, 5*time.Millisecond)
}

func TestRecorder_DropAllNeverOpensFile(t *testing.T) {
	b := bus.NewMemBus()
	arena := newFakeArena()
	r := newTestRecorder(t, b, arena, []policy.Config{{Type: "drop_all"}})
	defer r.Shutdown()

	b.Emit("sensor/front", testPacket("p1", clockunits.Now(), "hello"))

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.buffer) == 0
	}, time.Second, 5*time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Nil(t, r.writeFile)
}

func TestRecorder_IgnoresPacketMissingHeaders(t *testing.T) {
	b := bus.NewMemBus()
	arena := newFakeArena()
	r := newTestRecorder(t, b, arena, []policy.Config{{Type: "save_all"}})
	defer r.Shutdown()

	b.Emit("sensor/front", bus.Packet{ID: "no-headers", Payload: []byte("x")})

	time.Sleep(50 * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Empty(t, r.buffer)
	assert.Nil(t, r.writeFile)
}

func TestRecorder_IgnoresStalePacket(t *testing.T) {
	b := bus.NewMemBus()
	arena := newFakeArena()
	r := newTestRecorder(t, b, arena, []policy.Config{{Type: "save_all"}})
	defer r.Shutdown()

	stale := clockunits.Now().Add(-2 * time.Hour) // older than StartTimeMono cutoff
	b.Emit("sensor/front", testPacket("stale", stale, "x"))

	time.Sleep(50 * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Empty(t, r.buffer)
}

func TestRecorder_ShutdownDrainsBufferedSaves(t *testing.T) {
	b := bus.NewMemBus()
	arena := newFakeArena()
	r := newTestRecorder(t, b, arena, []policy.Config{
		{
			Type:     "time",
			Args:     map[string]any{"save_prev": "5s"},
			Triggers: []trigger.Config{{Type: "pubsub", Args: map[string]any{"topic": "snap"}}},
		},
	})

	b.Emit("sensor/front", testPacket("p1", clockunits.Now(), "hello"))
	time.Sleep(20 * time.Millisecond) // packet sits DEFERred, no trigger yet

	// The trigger covers p1 but no later packet arrives to drain it; only
	// Shutdown's final drain can write it.
	require.NoError(t, b.Publish(context.Background(), "snap", []byte("x")))

	r.Shutdown()

	assert.True(t, arena.created[r.writeInProgressPath] != nil || len(arena.created) == 1)
}

func TestRecorder_MetricsTrackSavesAndFiles(t *testing.T) {
	b := bus.NewMemBus()
	arena := newFakeArena()
	r := newTestRecorder(t, b, arena, []policy.Config{{Type: "save_all"}})
	defer r.Shutdown()

	b.Emit("sensor/front", testPacket("p1", clockunits.Now(), "hello"))

	require.Eventually(t, func() bool {
		snap := r.Metrics()
		return snap.PacketsReceived == 1 && snap.PacketsSaved == 1 && snap.FilesOpened == 1
	}, time.Second, 5*time.Millisecond)

	snap := r.Metrics()
	assert.Equal(t, "pubsub", snap.Protocol)
	assert.Equal(t, "sensor/front", snap.ReadPath)
}

func TestRecorder_PublishesAnnounceOnOpen(t *testing.T) {
	b := bus.NewMemBus()
	arena := newFakeArena()

	var mu sync.Mutex
	var received []byte
	cancel, err := b.Subscribe("sensor/front/announce", func(payload []byte) {
		mu.Lock()
		received = payload
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	r := newTestRecorder(t, b, arena, []policy.Config{{Type: "save_all"}})
	defer r.Shutdown()

	b.Emit("sensor/front", testPacket("p1", clockunits.Now(), "hello"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, string(received), `"action":"opened"`)
}
