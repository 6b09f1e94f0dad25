// Package bus names the external collaborators the recorder pipeline is
// built against: the pub/sub transport carrying packets, the control/
// announce channels layered on top of it, and the shared-memory arena
// allocator backing rolling output files. None of these are specified in
// detail by the archiver itself — they are contracts with a concrete
// production backing (redisbus) and an in-memory test double (membus).
package bus

import "context"

// Header is a single (key, value) pair from a packet's header set. Packets
// may repeat a key; order is preserved as received.
type Header struct {
	Key   string
	Value string
}

// Packet is an opaque unit of data read from a stream: an identity used for
// equality, an ordered header set, and an opaque payload.
type Packet struct {
	ID      string
	Headers []Header
	Payload []byte
}

// HeaderValue returns the value of the first header matching key.
func (p Packet) HeaderValue(key string) (string, bool) {
	for _, h := range p.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// SerialSize estimates the on-arena footprint of the packet: the size an
// allocator would need to reserve for it. Used to decide whether writing it
// would force the output arena to evict older data.
func (p Packet) SerialSize() uint64 {
	size := uint64(len(p.ID))
	for _, h := range p.Headers {
		size += uint64(len(h.Key) + len(h.Value))
	}
	size += uint64(len(p.Payload))
	return size
}

// Reader delivers packets from a single stream, in arrival order, to a
// callback invoked on the reader's own goroutine. A Recorder owns exactly
// one Reader for its input stream.
type Reader interface {
	// Start begins delivery. fn is called synchronously and serially; a
	// Start call must not return until the first subscription attempt has
	// either succeeded or failed.
	Start(fn func(Packet)) error
	// Stop halts delivery and blocks until the delivery goroutine exits.
	// Stop must be safe to call even if Start failed or was never called.
	Stop()
}

// ReaderFactory opens a Reader over the stream addressed by path.
type ReaderFactory func(path string) (Reader, error)

// Publisher publishes opaque payloads to a named topic. Used for
// announcements; publishing must never block on a Recorder's internal
// state.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber delivers "await new, deliver newest only" messages on a topic:
// if multiple messages arrive while fn is still processing the last one,
// only the newest is eventually delivered. Used by the trigger gate and the
// pubsub trigger.
type Subscriber interface {
	// Subscribe starts delivery to fn and returns a cancel func that tears
	// the subscription down. Subscribe must not block past the point where
	// the subscription is established.
	Subscribe(topic string, fn func(payload []byte)) (cancel func(), err error)
}

// Bus bundles the three transport roles a recorder/trigger/gate needs.
type Bus interface {
	Publisher
	Subscriber
	OpenReader(path string) (Reader, error)
}
