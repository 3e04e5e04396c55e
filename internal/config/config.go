// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the agent-core process
// configuration: listener definitions and their access-control lists,
// the retention worker schedule, and the STREAM replication settings.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ACLFlag is one bit of a listener's access-control bitset.
type ACLFlag uint8

const (
	ACLDashboard ACLFlag = 1 << iota
	ACLRegistry
	ACLBadges
	ACLManagement
	ACLStreaming
	ACLNetdataConf
)

var aclNames = map[string]ACLFlag{
	"dashboard":     ACLDashboard,
	"registry":      ACLRegistry,
	"badges":        ACLBadges,
	"management":    ACLManagement,
	"streaming":     ACLStreaming,
	"netdata.conf":  ACLNetdataConf,
}

// ParseACL parses a space-separated textual ACL flag list (§6 of the
// spec, e.g. "dashboard registry badges management streaming
// netdata.conf") into a bitset. Unknown tokens are logged and
// otherwise ignored rather than rejected outright, so a listener
// config written against a newer agent-core doesn't fail to parse on
// an older one.
func ParseACL(text string) ACLFlag {
	var flags ACLFlag
	for _, tok := range strings.Fields(text) {
		flag, ok := aclNames[tok]
		if !ok {
			cclog.Warnf("config: unknown ACL flag %q ignored", tok)
			continue
		}
		flags |= flag
	}
	return flags
}

// Allows reports whether flags grants the feature class required.
func (flags ACLFlag) Allows(required ACLFlag) bool {
	return flags&required == required
}

// ListenerConfig describes one listen socket and the feature classes
// reachable through it.
type ListenerConfig struct {
	Network string `json:"network"` // "tcp", "tcp4", "tcp6", "unix"
	Address string `json:"address"`
	Port    int    `json:"port"`
	ACLText string `json:"acl"`

	ACL ACLFlag `json:"-"`
}

// RetentionConfig configures the periodic registry sweep (component G).
type RetentionConfig struct {
	IntervalSeconds int `json:"intervalSeconds"`
}

// StreamConfig configures the STREAM replication client (component H).
type StreamConfig struct {
	Enabled     bool   `json:"enabled"`
	NatsAddress string `json:"natsAddress"`
}

// LogConfig configures the ambient logger.
type LogConfig struct {
	Level string `json:"level"`
}

// RateLimitConfig bounds the request rate the HTTP pipeline accepts
// across all listeners, protecting the single-writer collector paths
// behind /mcp and /api from a noisy or misbehaving peer. A zero
// RequestsPerSecond disables limiting entirely.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`
}

// AuthConfig guards the management-class routes (/mcp, /sse) behind a
// bearer token in addition to a listener's ACL bitset. A single
// HMAC-signed JWT plays the role the teacher's cluster-wide API token
// plays for its own /api routes, without pulling in the LDAP/OIDC
// identity-provider stack this core has no use for.
type AuthConfig struct {
	Enabled bool   `json:"enabled"`
	HMACKey string `json:"hmacKey"`
}

// AgentConfig is the process-wide, load-once-at-startup configuration
// object (SPEC_FULL §3). Once Load returns successfully, the value is
// treated as immutable and shared by every component that needs it.
type AgentConfig struct {
	Listeners []ListenerConfig `json:"listeners"`
	Retention RetentionConfig  `json:"retention"`
	Stream    StreamConfig     `json:"stream"`
	Log       LogConfig        `json:"log"`
	RateLimit RateLimitConfig  `json:"rateLimit"`
	Auth      AuthConfig       `json:"auth"`
}

var schema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("agent-config.json", strings.NewReader(configSchema)); err != nil {
		cclog.Fatalf("config: failed to add embedded schema: %s", err.Error())
	}
	s, err := compiler.Compile("agent-config.json")
	if err != nil {
		cclog.Fatalf("config: failed to compile embedded schema: %s", err.Error())
	}
	schema = s
}

// Validate validates raw JSON against the embedded agent config schema,
// mirroring the teacher's own internal/config/validate.go pattern:
// compile the schema once at package init, validate every load, and
// fail fast rather than start with a partially-valid configuration.
func Validate(instance json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(instance, &v); err != nil {
		return fmt.Errorf("config: invalid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config: schema validation failed: %w", err)
	}
	return nil
}

// Load parses and validates raw into an AgentConfig, computing each
// listener's ACL bitset from its textual flag list.
func Load(raw []byte) (*AgentConfig, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var cfg AgentConfig
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode failed: %w", err)
	}

	for i := range cfg.Listeners {
		cfg.Listeners[i].ACL = ParseACL(cfg.Listeners[i].ACLText)
		if cfg.Listeners[i].Network == "" {
			cfg.Listeners[i].Network = "tcp"
		}
		if cfg.Listeners[i].Port == 0 {
			cfg.Listeners[i].Port = 19999
		}
	}
	if cfg.Retention.IntervalSeconds == 0 {
		cfg.Retention.IntervalSeconds = 300
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}
