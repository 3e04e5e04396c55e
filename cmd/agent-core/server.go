// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"time"

	"github.com/ClusterCockpit/nd-agent-core/internal/config"
	"github.com/ClusterCockpit/nd-agent-core/internal/httpd"
	"github.com/ClusterCockpit/nd-agent-core/internal/mcpserver"
	"github.com/ClusterCockpit/nd-agent-core/internal/retention"
	"github.com/ClusterCockpit/nd-agent-core/pkg/log"
	"github.com/ClusterCockpit/nd-agent-core/pkg/nats"
	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
	"github.com/ClusterCockpit/nd-agent-core/pkg/sample"
)

// agent bundles the process-wide components wired together at
// startup: the metric registry (B/C/D), the HTTP pipeline (E), the
// retention worker (G), and an optional STREAM replication client (H).
type agent struct {
	registry     *ringstore.MetricRegistry
	httpServer   *httpd.Server
	retainer     *retention.Worker
	streamClient *nats.Client
}

// serverInit builds every component from cfg but starts nothing yet.
func serverInit(cfg *config.AgentConfig) (*agent, error) {
	registry := ringstore.NewMetricRegistry()
	dispatcher := mcpserver.NewDispatcher(registry, 720)

	httpServer, err := httpd.New(cfg, registry, dispatcher)
	if err != nil {
		return nil, err
	}

	retentionInterval := time.Duration(cfg.Retention.IntervalSeconds) * time.Second
	retainer, err := retention.New(registry, allDescriptorsLive, retentionInterval)
	if err != nil {
		return nil, err
	}

	a := &agent{registry: registry, httpServer: httpServer, retainer: retainer}

	if cfg.Stream.Enabled {
		client, err := nats.NewClient(&nats.NatsConfig{Address: cfg.Stream.NatsAddress})
		if err != nil {
			log.Warnf("STREAM: could not connect to %s, continuing without replication: %s", cfg.Stream.NatsAddress, err.Error())
		} else {
			a.streamClient = client
		}
	}

	return a, nil
}

// allDescriptorsLive is the retention worker's liveness probe. The RAM
// engine has no notion of which collector owns a descriptor beyond
// "it was written at least once"; a fuller collector-registration
// layer (out of scope here) would replace this with a real lookup.
// Until then nothing is ever swept automatically by descriptor
// liveness — handles are still freed promptly on their own refcount
// reaching zero (see pkg/ringstore.Release).
func allDescriptorsLive(ringstore.MetricId) bool {
	return true
}

// CollectSample is the in-process entry point a collector plugin calls
// to append one sample: it stores the value on h (component C) and, if
// a STREAM client is configured, best-effort replicates it (component
// H). Collectors themselves are external to this repository (SPEC_FULL
// §1: "deliberately out of scope"); this is the seam they call into.
func (a *agent) CollectSample(h *ringstore.Handle, chart, dimension string, timestampS int64, value float64, flags sample.Flags) {
	h.StoreSample(timestampS, value, flags)

	if a.streamClient == nil {
		return
	}
	a.streamClient.PublishSample(h.ID(), nats.StreamSample{
		Chart:      chart,
		Dimension:  dimension,
		TimestampS: timestampS,
		Value:      value,
		Flags:      flags,
	})
}

func (a *agent) start() error {
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.retainer.Start()
	return nil
}

func (a *agent) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Errorf("http server shutdown: %s", err.Error())
	}
	if err := a.retainer.Shutdown(); err != nil {
		log.Errorf("retention worker shutdown: %s", err.Error())
	}
	if a.streamClient != nil {
		a.streamClient.Close()
	}
}
