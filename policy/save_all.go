package policy

import "github.com/justapithecus/arkive/bus"

func init() {
	Register("save_all", newSaveAll)
}

// saveAll saves every packet it sees. It ignores triggers; its only arg,
// ignore_trigger_control, exempts it from its own pause/resume gate (§4.1.1)
// so the policy never goes DISABLED, regardless of trigger_control_topic.
type saveAll struct {
	ignoreTriggerControl bool
}

func newSaveAll(args map[string]any) (Base, error) {
	ignore, _ := args["ignore_trigger_control"].(bool)
	return &saveAll{ignoreTriggerControl: ignore}, nil
}

func (s *saveAll) OnPacket(bus.Packet) {}
func (s *saveAll) OnDrop(bus.Packet)   {}
func (s *saveAll) OnTrigger()          {}

func (s *saveAll) ShouldSave(bus.Packet) SaveDecision { return Save }

// IgnoresTriggerControl implements ignoresTriggerControl.
func (s *saveAll) IgnoresTriggerControl() bool { return s.ignoreTriggerControl }
