package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/justapithecus/arkive/bus"
)

// Parse decodes a JSON rule document, after expanding environment variable
// references. Unknown top-level keys are rejected to catch typos in
// hand-authored documents early; keys inside a rule are decoded by
// Rule.UnmarshalJSON, which accepts unknown ones and keeps them in
// SelfDescription.
func Parse(data []byte) (*Config, error) {
	expanded := ExpandEnv(string(data))

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}

	if cfg.SearchPath == "" {
		cfg.SearchPath = os.Getenv("A0_ROOT")
	}

	return &cfg, nil
}

// Load reads a JSON rule document from a local file. Used by tests and by
// operators running against a saved document; the daemon's normal startup
// path is LoadFromTopic (§6: "Configuration. Loaded from a JSON document at
// a configured topic name").
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config JSON in %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromTopic subscribes to topic on sub and blocks for its first
// delivered payload, decoding it as a rule document. This is the archiver's
// normal startup path: A0_TOPIC names a config topic (§6), matching the
// original source's `a0::Cfg cfg(a0::env::topic()); cfg.var<Config>("")`
// one-shot read at process start. The subscription is torn down once the
// first value arrives or ctx is cancelled.
func LoadFromTopic(ctx context.Context, sub bus.Subscriber, topic string) (*Config, error) {
	payloads := make(chan []byte, 1)
	cancel, err := sub.Subscribe(topic, func(payload []byte) {
		select {
		case payloads <- payload:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to config topic %q: %w", topic, err)
	}
	defer cancel()

	select {
	case payload := <-payloads:
		cfg, err := Parse(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid config JSON on topic %q: %w", topic, err)
		}
		return cfg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for config on topic %q: %w", topic, ctx.Err())
	}
}
