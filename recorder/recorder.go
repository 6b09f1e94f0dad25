// Package recorder implements the per-stream buffered save/drop/defer
// pipeline: packets accepted off a bus.Reader are offered to every
// configured policy, then drained from the head of an internal buffer in
// arrival order until a policy defers the decision.
package recorder

import (
	"sync"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/clockunits"
	"github.com/justapithecus/arkive/config"
	"github.com/justapithecus/arkive/log"
	"github.com/justapithecus/arkive/metrics"
	"github.com/justapithecus/arkive/policy"
)

// Options configures a single Recorder instance.
type Options struct {
	Rule config.ResolvedRule

	// ReadPath is the discovered input stream this recorder consumes.
	ReadPath string
	// RelativeWatchPath is ReadPath relative to the searchpath root, used
	// to build output file paths that mirror the input layout.
	RelativeWatchPath string
	SavePath          string
	AnnounceTopic     string

	Bus           bus.Bus
	Arena         bus.Arena
	StartTimeMono clockunits.MonoTime
	Logger        *log.Logger
}

// Recorder owns one input stream's buffer, its policies, and the output
// file it is currently rolling packets into.
type Recorder struct {
	opts Options

	mu       sync.Mutex
	policies []*policy.Policy
	buffer   []bus.Packet

	writeFile           bus.ArenaFile
	writeFileStart      clockunits.MonoTime
	writeInProgressPath string
	writeFinalPath      string

	reader    bus.Reader
	logger    *log.Logger
	metrics   *metrics.Collector
	announcer *announcer
}

// Metrics returns a point-in-time snapshot of this recorder's counters.
func (r *Recorder) Metrics() metrics.Snapshot {
	return r.metrics.Snapshot()
}

// New constructs a Recorder and starts consuming opts.ReadPath.
func New(opts Options) (*Recorder, error) {
	r := &Recorder{
		opts:    opts,
		logger:  opts.Logger,
		metrics: metrics.NewCollector(string(opts.Rule.Protocol), opts.Rule.Topic, opts.ReadPath),
	}
	r.announcer = newAnnouncer(opts.AnnounceTopic, opts.ReadPath, opts.RelativeWatchPath, opts.SavePath, opts.Rule.SelfDescription, opts.Bus, opts.Logger)

	for _, pcfg := range opts.Rule.Policies {
		p, err := policy.New(pcfg, &r.mu, opts.Bus, opts.Rule.TriggerControlTopic)
		if err != nil {
			r.closePolicies()
			return nil, err
		}
		r.policies = append(r.policies, p)
	}

	reader, err := opts.Bus.OpenReader(opts.ReadPath)
	if err != nil {
		r.closePolicies()
		return nil, err
	}
	r.reader = reader

	if err := reader.Start(r.onPacket); err != nil {
		r.closePolicies()
		return nil, err
	}

	return r, nil
}

// onPacket is the bus.Reader callback: it filters packets missing the
// timestamp headers a recorder depends on, or that predate this process's
// startup grace window, then admits the rest into the decision buffer.
func (r *Recorder) onPacket(pkt bus.Packet) {
	if !hasStamp(pkt) {
		return
	}
	monoStr, _ := pkt.HeaderValue("a0_time_mono")
	mono, err := clockunits.ParseMonoTime(monoStr)
	if err != nil || mono.Before(r.opts.StartTimeMono) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.policies {
		p.OnPacket(pkt)
	}
	r.buffer = append(r.buffer, pkt)
	r.metrics.IncPacketsReceived()
	r.drain()
}

func hasStamp(pkt bus.Packet) bool {
	_, hasMono := pkt.HeaderValue("a0_time_mono")
	_, hasWall := pkt.HeaderValue("a0_time_wall")
	return hasMono && hasWall
}

// drain evaluates the buffer from its head, stopping at the first DEFER.
// Caller must hold mu.
func (r *Recorder) drain() {
	for len(r.buffer) > 0 {
		pkt := r.buffer[0]
		switch r.shouldSave(pkt) {
		case policy.Save:
			r.maybeStartNextFile(pkt)
			if err := r.writeFile.Write(pkt); err != nil {
				r.logger.Error("write failed", map[string]any{"error": err.Error()})
				r.metrics.IncWriteErrors()
			}
			r.metrics.IncPacketsSaved()
			r.onDropAll(pkt)
			r.buffer = r.buffer[1:]
		case policy.Drop:
			r.metrics.IncPacketsDropped()
			r.onDropAll(pkt)
			r.buffer = r.buffer[1:]
		case policy.Defer:
			r.metrics.IncPacketsDeferred()
			return
		}
	}
}

// shouldSave is SAVE if any policy says SAVE, else DEFER if any policy says
// DEFER, else DROP. Caller must hold mu.
func (r *Recorder) shouldSave(pkt bus.Packet) policy.SaveDecision {
	sawDefer := false
	for _, p := range r.policies {
		switch p.ShouldSave(pkt) {
		case policy.Save:
			return policy.Save
		case policy.Defer:
			sawDefer = true
		}
	}
	if sawDefer {
		return policy.Defer
	}
	return policy.Drop
}

// announce enqueues a file lifecycle event for asynchronous publishing.
// Per spec §9's design note, announcements must never block the Recorder
// mutex: this only appends to an in-memory queue and wakes the announcer's
// own goroutine, which does the actual (network-bound) publish off-lock.
// Caller must hold mu.
func (r *Recorder) announce(action, details, writeAbsPath string) {
	r.announcer.enqueue(action, details, writeAbsPath)
}

func (r *Recorder) onDropAll(pkt bus.Packet) {
	for _, p := range r.policies {
		p.OnDrop(pkt)
	}
}

// Shutdown stops ingestion and force-drains the buffer: every still-pending
// packet is saved if SAVE, otherwise dropped (DEFER is not honored past
// shutdown), then the current output file is closed.
func (r *Recorder) Shutdown() {
	if r.reader != nil {
		r.reader.Stop()
	}

	r.mu.Lock()
	for _, pkt := range r.buffer {
		if r.shouldSave(pkt) == policy.Save {
			r.maybeStartNextFile(pkt)
			if err := r.writeFile.Write(pkt); err != nil {
				r.logger.Error("write failed during shutdown", map[string]any{"error": err.Error()})
				r.metrics.IncWriteErrors()
			}
			r.metrics.IncPacketsSaved()
		} else {
			r.metrics.IncPacketsDropped()
		}
		r.onDropAll(pkt)
	}
	r.buffer = nil
	r.closeCurrentFile()
	r.mu.Unlock()

	r.closePolicies()
	r.announcer.close()
}

func (r *Recorder) closePolicies() {
	for _, p := range r.policies {
		p.Close()
	}
	r.policies = nil
}
