package trigger

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/justapithecus/arkive/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubsubTrigger_FiresOnMessage(t *testing.T) {
	b := bus.NewMemBus()
	var count int32
	h, err := newPubsubTrigger(map[string]any{"topic": "snapshot"}, b, func() {
		atomic.AddInt32(&count, 1)
	})
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, b.Publish(context.Background(), "snapshot", []byte("x")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestPubsubTrigger_RejectsMissingTopic(t *testing.T) {
	_, err := newPubsubTrigger(map[string]any{}, bus.NewMemBus(), func() {})
	assert.Error(t, err)
}
