// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/nd-agent-core/internal/config"
	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
	"github.com/ClusterCockpit/nd-agent-core/pkg/sample"
)

func TestServerInitBuildsLoopbackAgent(t *testing.T) {
	cfg := &config.AgentConfig{
		Listeners: []config.ListenerConfig{{Network: "tcp", Address: "127.0.0.1", Port: 0, ACL: config.ACLDashboard}},
		Retention: config.RetentionConfig{IntervalSeconds: 60},
	}

	a, err := serverInit(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.registry)
	assert.NotNil(t, a.httpServer)
	assert.NotNil(t, a.retainer)
	assert.Nil(t, a.streamClient)
}

func TestCollectSampleWithoutStreamClientJustStores(t *testing.T) {
	cfg := &config.AgentConfig{
		Listeners: []config.ListenerConfig{{Network: "tcp", Address: "127.0.0.1", Port: 0, ACL: config.ACLDashboard}},
		Retention: config.RetentionConfig{IntervalSeconds: 60},
	}
	a, err := serverInit(cfg)
	require.NoError(t, err)

	h := a.registry.GetOrCreate("node1.mem.used", &ringstore.Descriptor{
		Chart: "system.mem", Dimension: "used", UpdateEverySec: 1, Capacity: 4,
	})
	defer a.registry.Release(h)

	a.CollectSample(h, "system.mem", "used", 1000, 42.0, sample.Flags(0))

	first, last, ok := a.registry.Retention(h.ID())
	require.True(t, ok)
	assert.Equal(t, int64(1000), first)
	assert.Equal(t, int64(1000), last)
}
