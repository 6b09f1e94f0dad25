package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemBus_PublishSubscribe(t *testing.T) {
	b := NewMemBus()

	var mu sync.Mutex
	var got []string
	cancel, err := b.Subscribe("ctrl", func(payload []byte) {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), "ctrl", []byte("off")))
	require.NoError(t, b.Publish(context.Background(), "ctrl", []byte("on")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"off", "on"}, got)
}

func TestMemBus_CancelStopsDelivery(t *testing.T) {
	b := NewMemBus()
	var count int
	cancel, err := b.Subscribe("t", func([]byte) { count++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "t", []byte("1")))
	cancel()
	require.NoError(t, b.Publish(context.Background(), "t", []byte("2")))

	assert.Equal(t, 1, count)
}

func TestMemBus_ReaderDeliversInOrder(t *testing.T) {
	b := NewMemBus()
	r, err := b.OpenReader("streamA")
	require.NoError(t, err)

	var mu sync.Mutex
	var ids []string
	require.NoError(t, r.Start(func(p Packet) {
		mu.Lock()
		ids = append(ids, p.ID)
		mu.Unlock()
	}))
	defer r.Stop()

	for i := 0; i < 5; i++ {
		b.Emit("streamA", Packet{ID: string(rune('a' + i))})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ids) == 5
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestMemBus_ReaderStopIsIdempotent(t *testing.T) {
	b := NewMemBus()
	r, err := b.OpenReader("s")
	require.NoError(t, err)
	require.NoError(t, r.Start(func(Packet) {}))
	r.Stop()
	r.Stop()
}
