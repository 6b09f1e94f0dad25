package policy

import (
	"errors"

	"github.com/justapithecus/arkive/bus"
)

func init() {
	Register("count", newCount)
}

// count saves a window of packets around each trigger firing: up to
// save_prev packets seen before the trigger, and the next save_next packets
// seen after it.
type count struct {
	savePrev int
	saveNext int

	curNextSize int
	history     []bus.Packet
	toSave      map[string]struct{}
}

func newCount(args map[string]any) (Base, error) {
	savePrev, err := intArg(args, "save_prev")
	if err != nil {
		return nil, err
	}
	saveNext, err := intArg(args, "save_next")
	if err != nil {
		return nil, err
	}
	if savePrev == 0 && saveNext == 0 {
		return nil, errors.New("count: at least one of save_prev or save_next must be positive")
	}
	return &count{
		savePrev: savePrev,
		saveNext: saveNext,
		toSave:   map[string]struct{}{},
	}, nil
}

func (c *count) OnPacket(pkt bus.Packet) {
	if c.curNextSize > 0 {
		c.toSave[pkt.ID] = struct{}{}
		c.curNextSize--
	}
	c.history = append(c.history, pkt)
	if len(c.history) > c.savePrev {
		c.history = c.history[1:]
	}
}

func (c *count) OnDrop(pkt bus.Packet) {
	delete(c.toSave, pkt.ID)
}

func (c *count) OnTrigger() {
	c.curNextSize = c.saveNext
	for _, pkt := range c.history {
		c.toSave[pkt.ID] = struct{}{}
	}
}

func (c *count) ShouldSave(pkt bus.Packet) SaveDecision {
	if _, ok := c.toSave[pkt.ID]; ok {
		return Save
	}
	return Drop
}
