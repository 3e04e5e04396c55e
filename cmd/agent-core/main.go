// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ClusterCockpit/nd-agent-core/internal/config"
	"github.com/ClusterCockpit/nd-agent-core/pkg/log"
	"github.com/ClusterCockpit/nd-agent-core/pkg/runtimeEnv"
)

var (
	version = "development"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cliInit()

	if flagVersion {
		fmt.Printf("nd-agent-core %s, commit %s, built at %s\n", version, commit, date)
		return
	}

	if flagInit {
		initEnv(flagConfigFile, flagEnvFile)
		return
	}

	if err := godotenv.Load(flagEnvFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("parsing %s failed: %s", flagEnvFile, err.Error())
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		log.Fatalf("reading %s failed: %s", flagConfigFile, err.Error())
	}

	cfg, err := config.Load(raw)
	if err != nil {
		log.Fatalf("loading %s failed: %s", flagConfigFile, err.Error())
	}

	logLevel := cfg.Log.Level
	if flagLogLevel != "" {
		logLevel = flagLogLevel
	}
	log.SetLogLevel(logLevel)
	log.SetLogDateTime(flagLogDateTime)

	a, err := serverInit(cfg)
	if err != nil {
		log.Fatalf("startup failed: %s", err.Error())
	}

	// The listeners in cfg may include a privileged port; they must be
	// opened before dropping root, same ordering the teacher's own
	// server wiring uses.
	if err := a.start(); err != nil {
		log.Fatalf("failed to start listeners: %s", err.Error())
	}

	if err := runtimeEnv.DropPrivileges(os.Getenv("AGENT_CORE_USER"), os.Getenv("AGENT_CORE_GROUP")); err != nil {
		log.Fatalf("error while dropping privileges: %s", err.Error())
	}

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(25)
	}

	runtimeEnv.SystemdNotifiy(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	runtimeEnv.SystemdNotifiy(false, "shutting down")
	a.shutdown()
	log.Info("graceful shutdown completed")
}
