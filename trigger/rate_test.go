package trigger

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/arkive/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTrigger_FiresImmediatelyThenOnPeriod(t *testing.T) {
	var count int32
	h, err := newRateTrigger(map[string]any{"period": float64(0.02)}, bus.NewMemBus(), func() {
		atomic.AddInt32(&count, 1)
	})
	require.NoError(t, err)
	defer h.Close()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 3 }, time.Second, time.Millisecond)
}

func TestRateTrigger_RejectsBothOrNeitherHzAndPeriod(t *testing.T) {
	_, err := newRateTrigger(map[string]any{}, bus.NewMemBus(), func() {})
	assert.Error(t, err)

	_, err = newRateTrigger(map[string]any{"hz": float64(1), "period": float64(1)}, bus.NewMemBus(), func() {})
	assert.Error(t, err)
}

func TestRateTrigger_RejectsOutOfRange(t *testing.T) {
	_, err := newRateTrigger(map[string]any{"hz": float64(300)}, bus.NewMemBus(), func() {})
	assert.Error(t, err)

	_, err = newRateTrigger(map[string]any{"period": float64(5000)}, bus.NewMemBus(), func() {})
	assert.Error(t, err)
}

func TestRateTrigger_CloseStopsFiring(t *testing.T) {
	var count int32
	h, err := newRateTrigger(map[string]any{"period": float64(0.01)}, bus.NewMemBus(), func() {
		atomic.AddInt32(&count, 1)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.Close())
	after := atomic.LoadInt32(&count)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&count))
}
