package policy

import (
	"errors"
	"time"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/clockunits"
)

func init() {
	Register("time", newTimePolicy)
}

type timestampedPacket struct {
	pkt bus.Packet
	ts  clockunits.MonoTime
}

// timePolicy saves packets within [trigger-save_prev, trigger+save_next] of
// some trigger firing. Packets must be evaluated in arrival order: it keeps
// a FIFO of (packet, timestamp) pairs and only ever judges the head.
type timePolicy struct {
	savePrev time.Duration
	saveNext time.Duration

	triggerTimestamps []clockunits.MonoTime
	pending           []timestampedPacket
}

func newTimePolicy(args map[string]any) (Base, error) {
	savePrevRaw, hasPrev := args["save_prev"]
	saveNextRaw, hasNext := args["save_next"]
	if !hasPrev && !hasNext {
		return nil, errors.New("time: at least one of save_prev or save_next must be set")
	}
	var savePrev, saveNext time.Duration
	var err error
	if hasPrev {
		if savePrev, err = durationArg(savePrevRaw); err != nil {
			return nil, err
		}
	}
	if hasNext {
		if saveNext, err = durationArg(saveNextRaw); err != nil {
			return nil, err
		}
	}
	return &timePolicy{savePrev: savePrev, saveNext: saveNext}, nil
}

func durationArg(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		return clockunits.ParseDuration(v)
	default:
		return 0, errors.New("duration arg must be a string")
	}
}

func (t *timePolicy) OnPacket(pkt bus.Packet) {
	tsStr, ok := pkt.HeaderValue("a0_time_mono")
	if !ok {
		return
	}
	ts, err := clockunits.ParseMonoTime(tsStr)
	if err != nil {
		return
	}
	t.pending = append(t.pending, timestampedPacket{pkt: pkt, ts: ts})
}

func (t *timePolicy) OnDrop(pkt bus.Packet) {
	if len(t.pending) == 0 {
		return
	}
	if t.pending[0].pkt.ID == pkt.ID {
		t.pending = t.pending[1:]
	}
}

func (t *timePolicy) OnTrigger() {
	t.triggerTimestamps = append(t.triggerTimestamps, clockunits.Now())
}

func (t *timePolicy) ShouldSave(pkt bus.Packet) SaveDecision {
	if len(t.pending) == 0 || t.pending[0].pkt.ID != pkt.ID {
		// Shouldn't happen: the recorder only ever asks about the head of
		// its own buffer, which must match our own head.
		return Drop
	}
	pktTS := t.pending[0].ts

	kept := t.triggerTimestamps[:0]
	for _, trig := range t.triggerTimestamps {
		if trig.Add(t.saveNext).Before(pktTS) {
			continue // too old to ever match a future packet
		}
		kept = append(kept, trig)
	}
	t.triggerTimestamps = kept

	for _, trig := range t.triggerTimestamps {
		lower := trig.Add(-t.savePrev)
		upper := trig.Add(t.saveNext)
		if !pktTS.Before(lower) && !pktTS.After(upper) {
			return Save
		}
	}

	if clockunits.Now().Before(pktTS.Add(t.savePrev)) {
		return Defer
	}
	return Drop
}
