// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"os"

	"github.com/ClusterCockpit/nd-agent-core/pkg/log"
)

const defaultConfigString = `{
    "listeners": [
        {
            "network": "tcp",
            "address": "127.0.0.1",
            "port": 19999,
            "acl": "dashboard registry badges management streaming netdata.conf"
        }
    ],
    "retention": {
        "intervalSeconds": 300
    },
    "stream": {
        "enabled": false,
        "natsAddress": ""
    },
    "log": {
        "level": "info"
    },
    "auth": {
        "enabled": false,
        "hmacKey": ""
    }
}
`

const defaultEnvString = `
# Environment variables loaded via godotenv at startup.
# AGENT_CORE_USER and AGENT_CORE_GROUP name the account to drop to
# after the listeners are open.
# AGENT_CORE_USER=
# AGENT_CORE_GROUP=
`

// initEnv writes a default config.json and .env to the given paths.
// It refuses to overwrite an existing config.json so a second `-init`
// run can't clobber a tuned deployment.
func initEnv(configFile, envFile string) {
	if _, err := os.Stat(configFile); err == nil {
		log.Fatalf("init: %s already exists, refusing to overwrite", configFile)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigString), 0o644); err != nil {
		log.Fatalf("init: could not write %s: %s", configFile, err.Error())
	}
	if err := os.WriteFile(envFile, []byte(defaultEnvString), 0o644); err != nil {
		log.Fatalf("init: could not write %s: %s", envFile, err.Error())
	}
	log.Infof("init: wrote %s and %s", configFile, envFile)
}
