package trigger

import (
	"errors"

	"github.com/justapithecus/arkive/bus"
)

func init() {
	Register("pubsub", newPubsubTrigger)
}

// pubsubTrigger fires notify once per message delivered on a data topic. It
// runs no background goroutine of its own: the bus's newest-only coalescing
// subscription does the scheduling.
type pubsubTrigger struct {
	cancel func()
}

func newPubsubTrigger(args map[string]any, sub bus.Subscriber, notify func()) (Handle, error) {
	topicRaw, ok := args["topic"]
	if !ok {
		return nil, errors.New("pubsub: missing topic")
	}
	topic, ok := topicRaw.(string)
	if !ok {
		return nil, errors.New("pubsub: topic must be a string")
	}
	cancel, err := sub.Subscribe(topic, func([]byte) { notify() })
	if err != nil {
		return nil, err
	}
	return &pubsubTrigger{cancel: cancel}, nil
}

func (t *pubsubTrigger) Close() error {
	t.cancel()
	return nil
}
