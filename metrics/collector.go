// Package metrics provides per-recorder metrics collection.
//
// The Collector accumulates counters for a single Recorder's lifetime. It
// is a leaf package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of one recorder's counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	PacketsReceived int64
	PacketsSaved    int64
	PacketsDropped  int64
	PacketsDeferred int64

	FilesOpened int64
	FilesClosed int64
	WriteErrors int64

	// Dimensions, set at construction.
	Protocol string
	Topic    string
	ReadPath string
}

// Collector accumulates metrics for a single recorder. Thread-safe via
// sync.Mutex. All increment methods are nil-receiver safe, so a Recorder
// constructed without a Collector can call them unconditionally.
type Collector struct {
	mu sync.Mutex

	packetsReceived int64
	packetsSaved    int64
	packetsDropped  int64
	packetsDeferred int64

	filesOpened int64
	filesClosed int64
	writeErrors int64

	protocol string
	topic    string
	readPath string
}

// NewCollector creates a Collector labeled with the recorder it belongs to.
func NewCollector(protocol, topic, readPath string) *Collector {
	return &Collector{protocol: protocol, topic: topic, readPath: readPath}
}

// IncPacketsReceived records one packet admitted into the decision buffer.
func (c *Collector) IncPacketsReceived() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packetsReceived++
	c.mu.Unlock()
}

// IncPacketsSaved records one packet written to an output file.
func (c *Collector) IncPacketsSaved() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packetsSaved++
	c.mu.Unlock()
}

// IncPacketsDropped records one packet discarded without being written.
func (c *Collector) IncPacketsDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packetsDropped++
	c.mu.Unlock()
}

// IncPacketsDeferred records one evaluation that stalled the buffer.
func (c *Collector) IncPacketsDeferred() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.packetsDeferred++
	c.mu.Unlock()
}

// IncFilesOpened records one output file rollover.
func (c *Collector) IncFilesOpened() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesOpened++
	c.mu.Unlock()
}

// IncFilesClosed records one output file finalized.
func (c *Collector) IncFilesClosed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesClosed++
	c.mu.Unlock()
}

// IncWriteErrors records one failed write or file-system operation.
func (c *Collector) IncWriteErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.writeErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable view of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		PacketsReceived: c.packetsReceived,
		PacketsSaved:    c.packetsSaved,
		PacketsDropped:  c.packetsDropped,
		PacketsDeferred: c.packetsDeferred,
		FilesOpened:     c.filesOpened,
		FilesClosed:     c.filesClosed,
		WriteErrors:     c.writeErrors,
		Protocol:        c.protocol,
		Topic:           c.topic,
		ReadPath:        c.readPath,
	}
}
