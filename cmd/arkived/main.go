// Package main provides the arkived daemon entrypoint: read a rule document
// off the configured topic, watch its configured streams, and archive
// matching packets to rolling output files until terminated.
//
// Usage:
//
//	arkived
//
// $A0_TOPIC names the topic the rule document is published on (§6:
// "Configuration. Loaded from a JSON document at a configured topic name"),
// with $A0_ROOT and $ARKIVE_REDIS_ADDR supplying the rest of the streaming
// environment. --config-file (or $ARKIVE_CONFIG_FILE) is a local-dev escape
// hatch that reads the rule document from disk instead of the topic.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/config"
	"github.com/justapithecus/arkive/iox"
	"github.com/justapithecus/arkive/log"
	"github.com/justapithecus/arkive/supervisor"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// configTopicTimeout bounds how long the daemon waits for the first config
// document to arrive on the config topic before giving up.
const configTopicTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:           "arkived",
		Usage:          "selective message-stream archiver",
		Version:        fmt.Sprintf("0.1.0 (commit: %s)", commit),
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "read the rule document from this local file instead of the config topic (local dev only)",
				EnvVars: []string{"ARKIVE_CONFIG_FILE"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	configTopic := os.Getenv("A0_TOPIC")
	logger := log.NewLogger(log.RecorderMeta{Protocol: "daemon", Topic: configTopic})

	redisAddr := os.Getenv("ARKIVE_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	ctx := context.Background()
	redisBus, err := bus.NewRedisBus(ctx, redisAddr)
	if err != nil {
		return cli.Exit(fmt.Sprintf("connecting to %s: %v", redisAddr, err), 3)
	}
	defer iox.DiscardClose(redisBus)

	cfg, err := loadConfig(ctx, c.String("config-file"), redisBus, configTopic)
	if err != nil {
		return cli.Exit(fmt.Sprintf("loading config: %v", err), 1)
	}
	resolved, err := cfg.Resolve()
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return cli.Exit(fmt.Sprintf("invalid rule document: %v", err), 2)
		}
		return cli.Exit(fmt.Sprintf("resolving config: %v", err), 1)
	}

	announceTopic := configTopic + "/announce"

	sup, err := supervisor.New(supervisor.Options{
		Config:        resolved,
		Bus:           redisBus,
		Arena:         bus.NewFileArena(),
		AnnounceTopic: announceTopic,
		Logger:        logger,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("starting supervisor: %v", err), 1)
	}

	logger.Info("arkived started", map[string]any{
		"searchpath": resolved.SearchPath,
		"savepath":   resolved.SavePath,
		"rules":      len(resolved.Rules),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", map[string]any{"signal": sig.String()})

	sup.Close()
	return nil
}

// loadConfig reads the rule document from configFile if set, otherwise from
// topic on sub, blocking up to configTopicTimeout for the first delivery.
func loadConfig(ctx context.Context, configFile string, sub bus.Subscriber, topic string) (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	ctx, cancel := context.WithTimeout(ctx, configTopicTimeout)
	defer cancel()
	return config.LoadFromTopic(ctx, sub, topic)
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
