package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/arkive/clockunits"
	"github.com/justapithecus/arkive/policy"
)

const (
	defaultMaxLogfileSize     = "128MiB"
	defaultMaxLogfileDuration = "1h"

	// startupGraceWindow backdates the staleness cutoff so packets
	// published in the moments just before this process started aren't
	// dropped as backlog.
	startupGraceWindow = 30 * time.Second
)

// ResolvedRule is a Rule with every duration/size string parsed and its
// watch path computed, ready to hand to a Recorder.
type ResolvedRule struct {
	Protocol            Protocol
	Topic               string
	Policies            []policy.Config
	MaxLogfileSize      uint64
	MaxLogfileDuration   time.Duration
	TriggerControlTopic string
	SelfDescription     []byte
	RelativeWatchPath   string
}

// Resolved is a fully validated, parsed Config ready for the supervisor.
type Resolved struct {
	SearchPath    string
	SavePath      string
	Rules         []ResolvedRule
	StartTimeMono clockunits.MonoTime
}

// Resolve validates c and parses every size/duration string, using
// clockunits.Now() to anchor the startup staleness window.
func (c *Config) Resolve() (*Resolved, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	defaultSizeStr := c.DefaultMaxLogfileSize
	if defaultSizeStr == "" {
		defaultSizeStr = defaultMaxLogfileSize
	}
	defaultSize, err := clockunits.ParseFileSize(defaultSizeStr)
	if err != nil {
		return nil, fmt.Errorf("default_max_logfile_size: %w", err)
	}

	defaultDurStr := c.DefaultMaxLogfileDuration
	if defaultDurStr == "" {
		defaultDurStr = defaultMaxLogfileDuration
	}
	defaultDur, err := clockunits.ParseDuration(defaultDurStr)
	if err != nil {
		return nil, fmt.Errorf("default_max_logfile_duration: %w", err)
	}

	rules := make([]ResolvedRule, len(c.Rules))
	for i, rule := range c.Rules {
		size := defaultSize
		if rule.MaxLogfileSize != "" {
			if size, err = clockunits.ParseFileSize(rule.MaxLogfileSize); err != nil {
				return nil, &ValidationError{RuleIndex: i, Topic: rule.Topic, Err: err}
			}
		}
		dur := defaultDur
		if rule.MaxLogfileDuration != "" {
			if dur, err = clockunits.ParseDuration(rule.MaxLogfileDuration); err != nil {
				return nil, &ValidationError{RuleIndex: i, Topic: rule.Topic, Err: err}
			}
		}

		policies := make([]policy.Config, len(rule.Policies))
		for j, pcfg := range rule.Policies {
			policies[j] = pcfg.toPolicy()
		}

		rules[i] = ResolvedRule{
			Protocol:            rule.Protocol,
			Topic:               rule.Topic,
			Policies:            policies,
			MaxLogfileSize:      size,
			MaxLogfileDuration:  dur,
			TriggerControlTopic: rule.TriggerControlTopic,
			SelfDescription:     rule.SelfDescription,
			RelativeWatchPath:   RelativeWatchPath(rule.Protocol, rule.Topic),
		}
	}

	startTimeMono := clockunits.Now().Add(-startupGraceWindow)
	if c.StartTimeMono != "" {
		if startTimeMono, err = clockunits.ParseMonoTime(c.StartTimeMono); err != nil {
			return nil, fmt.Errorf("start_time_mono: %w", err)
		}
	}

	return &Resolved{
		SearchPath:    c.SearchPath,
		SavePath:      c.SavePath,
		Rules:         rules,
		StartTimeMono: startTimeMono,
	}, nil
}
