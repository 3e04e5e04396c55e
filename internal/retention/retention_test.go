// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
)

func TestSweepRemovesOnlyDeadMetrics(t *testing.T) {
	reg := ringstore.NewMetricRegistry()
	live := reg.GetOrCreate("node1.cpu.user", &ringstore.Descriptor{Chart: "c", Dimension: "user", UpdateEverySec: 1, Capacity: 4})
	dead := reg.GetOrCreate("node1.cpu.dead", &ringstore.Descriptor{Chart: "c", Dimension: "dead", UpdateEverySec: 1, Capacity: 4})
	// Both handles stay held, as by their collectors; releasing the last
	// reference would already unlink them before the sweep runs. The
	// sweep's RetentionDelete releases the dead handle's reference.
	defer reg.Release(live)

	deadID := dead.ID()
	liveID := live.ID()

	w, err := New(reg, func(id ringstore.MetricId) bool { return id == liveID }, time.Hour)
	require.NoError(t, err)

	w.sweep()

	_, _, ok := reg.Retention(deadID)
	assert.False(t, ok)
	_, _, ok = reg.Retention(liveID)
	assert.True(t, ok)
}
