// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcpserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
	"github.com/ClusterCockpit/nd-agent-core/pkg/sample"
)

func newTestRegistry(t *testing.T) (*ringstore.MetricRegistry, ringstore.MetricId) {
	t.Helper()
	reg := ringstore.NewMetricRegistry()
	h := reg.GetOrCreate("node1.cpu.user", &ringstore.Descriptor{
		Chart: "system.cpu", Dimension: "user", UpdateEverySec: 1, Capacity: 10,
	})
	for i, v := range []float64{10, 20, 30} {
		h.StoreSample(1000+int64(i), v, sample.Flags(0))
	}
	// h is kept, as a live collector keeps its handle: releasing the
	// only reference would unlink the metric from reg.
	return reg, h.ID()
}

func TestDispatchPing(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	resp := d.Dispatch(Request{JSONRPC: "2.0", ID: float64(1), Method: "ping"})
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
	assert.Equal(t, float64(1), resp.ID)
}

func TestDispatchUnknownMethod(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	resp := d.Dispatch(Request{JSONRPC: "2.0", ID: "a", Method: "nope"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestDispatchNotificationProducesNoResponse(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	resp := d.Dispatch(Request{JSONRPC: "2.0", Method: "ping"})
	assert.Nil(t, resp)
}

func TestDispatchInvalidIDRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	body := []byte(`{"jsonrpc":"2.0","id":{"bad":true},"method":"ping"}`)
	out := d.HandleBody(body)
	require.NotNil(t, out)

	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestMetricsListReturnsRegisteredMetric(t *testing.T) {
	reg, id := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	resp := d.Dispatch(Request{JSONRPC: "2.0", ID: float64(2), Method: "metrics.list"})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var result struct {
		Metrics []metricListEntry `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Metrics, 1)
	assert.Equal(t, id, result.Metrics[0].ID)
	assert.Equal(t, "system.cpu", result.Metrics[0].Chart)
}

func TestMetricsQueryReturnsValues(t *testing.T) {
	reg, id := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	params, _ := json.Marshal(metricsQueryParams{ID: id, AfterS: 1000, BeforeS: 1002})
	resp := d.Dispatch(Request{JSONRPC: "2.0", ID: float64(3), Method: "metrics.query", Params: params})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var result metricsQueryResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Values, 3)
	assert.Equal(t, []float64{10, 20, 30}, result.Values)
}

func TestMetricsQueryUnknownIDIsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	params, _ := json.Marshal(metricsQueryParams{ID: ringstore.MetricId(999), AfterS: 0, BeforeS: 10})
	resp := d.Dispatch(Request{JSONRPC: "2.0", ID: float64(4), Method: "metrics.query", Params: params})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestMetricsRetentionReportsWindow(t *testing.T) {
	reg, id := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	params, _ := json.Marshal(metricsRetentionParams{ID: id})
	resp := d.Dispatch(Request{JSONRPC: "2.0", ID: float64(5), Method: "metrics.retention", Params: params})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var result metricsRetentionResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, int64(1000), result.FirstSeenS)
	assert.Equal(t, int64(1002), result.LastSeenS)
}

func TestHandleBodyBatch(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	body := []byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"ping"},{"jsonrpc":"2.0","id":2,"method":"ping"}]`)
	out := d.HandleBody(body)
	require.NotNil(t, out)

	var resps []Response
	require.NoError(t, json.Unmarshal(out, &resps))
	assert.Len(t, resps, 2)
}

func TestHandleBodyMalformedJSONIsParseError(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := NewDispatcher(reg, 0)

	out := d.HandleBody([]byte(`{not json`))
	require.NotNil(t, out)

	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}
