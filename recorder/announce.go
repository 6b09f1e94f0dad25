package recorder

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/justapithecus/arkive/clockunits"
	"github.com/justapithecus/arkive/log"
)

type announceMessage struct {
	Action          string          `json:"action"`
	Details         string          `json:"details,omitempty"`
	WriteAbsPath    string          `json:"write_abspath,omitempty"`
	WriteRelPath    string          `json:"write_relpath,omitempty"`
	ReadAbsPath     string          `json:"read_abspath"`
	ReadRelPath     string          `json:"read_relpath"`
	Rule            json.RawMessage `json:"rule,omitempty"`
	AnnouncedAtMono string          `json:"announced_at_mono"`
}

// announceJob is one queued lifecycle event, captured at enqueue time so the
// publishing goroutine never touches Recorder state guarded by mu.
type announceJob struct {
	action, details, writeAbsPath string
}

// announcer runs the publish side of a Recorder's announce queue on its own
// goroutine, per spec §9's design note: "Announcements must never block the
// Recorder mutex; publish after releasing or via an unbounded output
// queue." file.go enqueues under mu (cheap, non-blocking); this goroutine
// drains the queue and calls the (possibly slow, network-bound) Publisher
// entirely off that lock.
type announcer struct {
	topic    string
	readPath string
	relPath  string
	savePath string
	rule     json.RawMessage
	pub      announcePublisher
	logger   *log.Logger

	mu    sync.Mutex
	queue []announceJob
	sig   chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

type announcePublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

func newAnnouncer(topic, readPath, relPath, savePath string, rule json.RawMessage, pub announcePublisher, logger *log.Logger) *announcer {
	a := &announcer{
		topic:    topic,
		readPath: readPath,
		relPath:  relPath,
		savePath: savePath,
		rule:     rule,
		pub:      pub,
		logger:   logger,
		sig:      make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// enqueue appends job to the unbounded queue and wakes the drain goroutine.
// Never blocks: the queue grows as a plain slice, and the wake signal is a
// non-blocking best-effort send (the drain loop always re-checks the queue
// after waking, so a coalesced signal never drops a job). Safe to call
// under the owning Recorder's mu.
func (a *announcer) enqueue(action, details, writeAbsPath string) {
	if a.topic == "" {
		return
	}
	a.mu.Lock()
	a.queue = append(a.queue, announceJob{action: action, details: details, writeAbsPath: writeAbsPath})
	a.mu.Unlock()

	select {
	case a.sig <- struct{}{}:
	default:
	}
}

func (a *announcer) run() {
	defer close(a.done)
	for {
		select {
		case <-a.sig:
			a.drain()
		case <-a.stop:
			a.drain()
			return
		}
	}
}

func (a *announcer) drain() {
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.mu.Unlock()
			return
		}
		job := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()

		a.publish(job)
	}
}

func (a *announcer) publish(job announceJob) {
	msg := announceMessage{
		Action:          job.action,
		Details:         job.details,
		WriteAbsPath:    job.writeAbsPath,
		ReadAbsPath:     a.readPath,
		ReadRelPath:     a.relPath,
		Rule:            a.rule,
		AnnouncedAtMono: clockunits.Now().String(),
	}
	if job.writeAbsPath != "" {
		if rel, err := filepath.Rel(a.savePath, job.writeAbsPath); err == nil {
			msg.WriteRelPath = rel
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		a.logger.Error("failed to marshal announcement", map[string]any{"error": err.Error()})
		return
	}
	if err := a.pub.Publish(context.Background(), a.topic, payload); err != nil {
		a.logger.Error("failed to publish announcement", map[string]any{"error": err.Error()})
	}
}

// close signals the drain goroutine to flush any remaining queued jobs and
// exit, then blocks until it has. Safe to call once, after the owning
// Recorder's last announce()/enqueue call.
func (a *announcer) close() {
	close(a.stop)
	<-a.done
}
