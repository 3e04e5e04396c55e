// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import "flag"

var (
	flagVersion, flagLogDateTime, flagInit     bool
	flagConfigFile, flagLogLevel, flagEnvFile string
)

func cliInit() {
	flag.BoolVar(&flagVersion, "version", false, "Show version information and exit")
	flag.BoolVar(&flagInit, "init", false, "Write a default config.json and .env, then exit")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Set this flag to add date and time to log messages")
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Specify alternative path to `config.json`")
	flag.StringVar(&flagEnvFile, "env", "./.env", "Specify alternative path to the `.env` file")
	flag.StringVar(&flagLogLevel, "loglevel", "", "Sets the logging level: `[debug, info, warn, error]` (overrides config.json)")
	flag.Parse()
}
