// Package config loads and validates an archiver's rule document: which
// streams to watch, which policies and triggers govern what gets saved, and
// where output files land.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/justapithecus/arkive/policy"
	"github.com/justapithecus/arkive/trigger"
)

// Protocol identifies the transport a rule's topic is published over. Each
// protocol has its own environment-supplied relative watch-path template.
type Protocol string

const (
	ProtocolFile   Protocol = "file"
	ProtocolCfg    Protocol = "cfg"
	ProtocolLog    Protocol = "log"
	ProtocolPRPC   Protocol = "prpc"
	ProtocolPubsub Protocol = "pubsub"
	ProtocolRPC    Protocol = "rpc"
)

var knownProtocols = map[Protocol]bool{
	ProtocolFile:   true,
	ProtocolCfg:    true,
	ProtocolLog:    true,
	ProtocolPRPC:   true,
	ProtocolPubsub: true,
	ProtocolRPC:    true,
}

// TriggerConfig is one entry in a policy's `triggers` list.
type TriggerConfig struct {
	Type         string         `json:"type"`
	Args         map[string]any `json:"args"`
	ControlTopic string         `json:"control_topic,omitempty"`
}

func (t TriggerConfig) toTrigger() trigger.Config {
	return trigger.Config{Type: t.Type, Args: t.Args, ControlTopic: t.ControlTopic}
}

// PolicyConfig is one entry in a rule's `policies` list.
type PolicyConfig struct {
	Type                string          `json:"type"`
	Args                map[string]any  `json:"args"`
	Triggers            []TriggerConfig `json:"triggers"`
	TriggerControlTopic string          `json:"trigger_control_topic,omitempty"`
}

func (p PolicyConfig) toPolicy() policy.Config {
	triggers := make([]trigger.Config, len(p.Triggers))
	for i, t := range p.Triggers {
		triggers[i] = t.toTrigger()
	}
	return policy.Config{
		Type:                p.Type,
		Args:                p.Args,
		Triggers:            triggers,
		TriggerControlTopic: p.TriggerControlTopic,
	}
}

// Rule matches one "logging rule": a topic glob on a protocol, the policies
// that decide what to keep, and optional per-rule overrides of the global
// file-rollover limits. SelfDescription preserves the rule's own raw JSON
// verbatim, echoed back in file-open/close announcements.
type Rule struct {
	Protocol            Protocol        `json:"protocol"`
	Topic               string          `json:"topic"`
	Policies            []PolicyConfig  `json:"policies"`
	MaxLogfileSize      string          `json:"max_logfile_size,omitempty"`
	MaxLogfileDuration  string          `json:"max_logfile_duration,omitempty"`
	TriggerControlTopic string          `json:"trigger_control_topic,omitempty"`
	SelfDescription     json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and separately retains the rule's
// raw bytes as SelfDescription.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type alias Rule
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Rule(a)
	r.SelfDescription = append(json.RawMessage(nil), data...)
	return nil
}

// Config is the top-level archiver rule document.
type Config struct {
	SearchPath                string `json:"searchpath"`
	SavePath                  string `json:"savepath"`
	Rules                     []Rule `json:"rules"`
	DefaultMaxLogfileSize     string `json:"default_max_logfile_size,omitempty"`
	DefaultMaxLogfileDuration string `json:"default_max_logfile_duration,omitempty"`
	// StartTimeMono is a monotonic timestamp string ("<seconds>.<nanoseconds>"),
	// the same grammar as the a0_time_mono packet header. Packets older than
	// it are ignored (§4.3.3). Defaults to "now - 30s" when unset.
	StartTimeMono string `json:"start_time_mono,omitempty"`
}

// ValidationError wraps a startup-time config problem with the rule index
// that produced it, for actionable error messages.
type ValidationError struct {
	RuleIndex int
	Topic     string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %d (topic %q): %v", e.RuleIndex, e.Topic, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks every rule's protocol, and dry-constructs every policy
// (and trigger) it names, without constructing anything load-bearing. It
// exists so a bad rule document fails at process start, not the first time
// a matching stream is discovered.
func (c *Config) Validate() error {
	if c.SearchPath == "" {
		return fmt.Errorf("searchpath is required")
	}
	if c.SavePath == "" {
		return fmt.Errorf("savepath is required")
	}
	for i, rule := range c.Rules {
		if !knownProtocols[rule.Protocol] {
			return &ValidationError{RuleIndex: i, Topic: rule.Topic, Err: fmt.Errorf("unknown protocol %q", rule.Protocol)}
		}
		if rule.Topic == "" {
			return &ValidationError{RuleIndex: i, Topic: rule.Topic, Err: fmt.Errorf("topic is required")}
		}
		if relPath := RelativeWatchPath(rule.Protocol, rule.Topic); !doublestar.ValidatePattern(relPath) {
			return &ValidationError{RuleIndex: i, Topic: rule.Topic, Err: fmt.Errorf("invalid topic glob %q", rule.Topic)}
		}
		for _, pcfg := range rule.Policies {
			if err := policy.Validate(pcfg.toPolicy()); err != nil {
				return &ValidationError{RuleIndex: i, Topic: rule.Topic, Err: err}
			}
		}
	}
	return nil
}
