// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

const configSchema = `{
  "type": "object",
  "description": "Configuration for the agent-core process.",
  "properties": {
    "listeners": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "network": { "type": "string", "enum": ["tcp", "tcp4", "tcp6", "unix"] },
          "address": { "type": "string" },
          "port": { "type": "integer" },
          "acl": { "type": "string" }
        },
        "required": ["address"]
      }
    },
    "retention": {
      "type": "object",
      "properties": {
        "intervalSeconds": { "type": "integer", "minimum": 1 }
      }
    },
    "stream": {
      "type": "object",
      "properties": {
        "enabled": { "type": "boolean" },
        "natsAddress": { "type": "string" }
      }
    },
    "log": {
      "type": "object",
      "properties": {
        "level": { "type": "string", "enum": ["debug", "info", "warn", "error"] }
      }
    },
    "rateLimit": {
      "type": "object",
      "properties": {
        "requestsPerSecond": { "type": "number", "minimum": 0 },
        "burst": { "type": "integer", "minimum": 0 }
      }
    },
    "auth": {
      "type": "object",
      "properties": {
        "enabled": { "type": "boolean" },
        "hmacKey": { "type": "string" }
      }
    }
  },
  "required": ["listeners"]
}`
