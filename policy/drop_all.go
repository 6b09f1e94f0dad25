package policy

import "github.com/justapithecus/arkive/bus"

func init() {
	Register("drop_all", newDropAll)
}

// dropAll drops every packet it sees. It ignores args and triggers. Present
// alongside save_all as its mirror image. A rule whose only policy is
// drop_all never opens an output file, so it produces no roll-over or
// announcements.
type dropAll struct{}

func newDropAll(args map[string]any) (Base, error) {
	return &dropAll{}, nil
}

func (d *dropAll) OnPacket(bus.Packet) {}
func (d *dropAll) OnDrop(bus.Packet)   {}
func (d *dropAll) OnTrigger()          {}

func (d *dropAll) ShouldSave(bus.Packet) SaveDecision { return Drop }
