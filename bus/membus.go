package bus

import (
	"context"
	"sync"
)

// MemBus is an in-process Bus used by unit tests and by the pubsub trigger's
// newest-only semantics validation. It fans published payloads out to every
// subscriber on a topic and keeps per-stream packet feeds that Emit can push
// into directly, without a real broker.
type MemBus struct {
	mu          sync.Mutex
	subscribers map[string][]*memSub
	streams     map[string]*memReader
}

type memSub struct {
	fn        func(payload []byte)
	cancelled bool
}

// NewMemBus creates an empty in-process bus.
func NewMemBus() *MemBus {
	return &MemBus{
		subscribers: make(map[string][]*memSub),
		streams:     make(map[string]*memReader),
	}
}

// Publish delivers payload synchronously to every current subscriber of topic.
func (b *MemBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	subs := append([]*memSub(nil), b.subscribers[topic]...)
	b.mu.Unlock()

	for _, s := range subs {
		if !s.cancelled {
			s.fn(payload)
		}
	}
	return nil
}

// Subscribe registers fn for topic. Delivery is synchronous within Publish;
// MemBus does not implement newest-only coalescing (every publish is
// delivered), which is a strict superset of the "newest only" contract and
// therefore a valid test double for it.
func (b *MemBus) Subscribe(topic string, fn func(payload []byte)) (func(), error) {
	sub := &memSub{fn: fn}
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		sub.cancelled = true
	}, nil
}

// OpenReader returns a Reader over the named in-process stream, creating it
// if absent. Packets pushed via Emit before a reader starts stay queued and
// are delivered once it starts.
func (b *MemBus) OpenReader(path string) (Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.streams[path]
	if !ok {
		r = &memReader{ch: make(chan Packet, 256)}
		b.streams[path] = r
	}
	return r, nil
}

// Emit pushes a packet onto the named stream's queue (256 packets deep),
// from which the stream's Reader delivers it once started. Emit blocks while
// the queue is full.
func (b *MemBus) Emit(path string, pkt Packet) {
	b.mu.Lock()
	r, ok := b.streams[path]
	if !ok {
		r = &memReader{ch: make(chan Packet, 256)}
		b.streams[path] = r
	}
	b.mu.Unlock()
	r.ch <- pkt
}

type memReader struct {
	ch      chan Packet
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func (r *memReader) Start(fn func(Packet)) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case pkt := <-r.ch:
				fn(pkt)
			case <-stopCh:
				return
			}
		}
	}()
	return nil
}

func (r *memReader) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
}

var _ Bus = (*MemBus)(nil)
