package config

import (
	"os"
	"strings"
)

// defaultWatchPathTemplates mirror alephzero's own per-protocol topic
// naming convention. Each may be overridden by its environment variable,
// matching how the transport library itself lets deployments relocate
// topic directories.
var defaultWatchPathTemplates = map[Protocol]string{
	ProtocolFile:   "{topic}",
	ProtocolCfg:    "cfg/{topic}.cfg.a0",
	ProtocolLog:    "log/{topic}.log.a0",
	ProtocolPRPC:   "prpc/{topic}.prpc.a0",
	ProtocolPubsub: "pubsub/{topic}.pubsub.a0",
	ProtocolRPC:    "rpc/{topic}.rpc.a0",
}

var watchPathTemplateEnvVar = map[Protocol]string{
	ProtocolFile:   "A0_TOPIC_TMPL_FILE",
	ProtocolCfg:    "A0_TOPIC_TMPL_CFG",
	ProtocolLog:    "A0_TOPIC_TMPL_LOG",
	ProtocolPRPC:   "A0_TOPIC_TMPL_PRPC",
	ProtocolPubsub: "A0_TOPIC_TMPL_PUBSUB",
	ProtocolRPC:    "A0_TOPIC_TMPL_RPC",
}

// RelativeWatchPath renders the path, relative to searchpath, that the
// supervisor should watch for topic under protocol.
func RelativeWatchPath(p Protocol, topic string) string {
	tmpl := defaultWatchPathTemplates[p]
	if envVar, ok := watchPathTemplateEnvVar[p]; ok {
		if v := os.Getenv(envVar); v != "" {
			tmpl = v
		}
	}
	return strings.ReplaceAll(tmpl, "{topic}", topic)
}
