// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcpserver

import (
	"encoding/json"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/nd-agent-core/pkg/resampler"
	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
)

// maxResponseBytes caps a single JSON-RPC response body (§4.E: "16 MiB
// response cap"); a handler whose marshaled result would exceed it
// gets CodeTooLarge instead.
const maxResponseBytes = 16 << 20

// handlerFunc answers one method call's params and returns either a
// JSON-marshalable result or a classified *HandlerError.
type handlerFunc func(d *Dispatcher, params json.RawMessage) (any, error)

// Dispatcher routes JSON-RPC requests against a metric registry. One
// Dispatcher is shared by every connection the HTTP pipeline accepts.
type Dispatcher struct {
	registry  *ringstore.MetricRegistry
	methods   map[string]handlerFunc
	maxPoints int
}

// NewDispatcher builds a Dispatcher bound to registry. maxPoints is the
// point budget metrics.query hands to resampler.FetchSeries when the
// caller gives none; a value <= 0 disables downsampling.
func NewDispatcher(registry *ringstore.MetricRegistry, maxPoints int) *Dispatcher {
	d := &Dispatcher{registry: registry, maxPoints: maxPoints}
	d.methods = map[string]handlerFunc{
		"ping":              handlePing,
		"metrics.list":      handleMetricsList,
		"metrics.query":     handleMetricsQuery,
		"metrics.retention": handleMetricsRetention,
	}
	return d
}

// Dispatch handles a single already-decoded request and returns the
// response to write, or nil if req is a notification.
func (d *Dispatcher) Dispatch(req Request) *Response {
	if req.HasInvalidID() {
		return errorResponse(nil, CodeInvalidRequest, "id must be a string, number, or null")
	}
	if req.JSONRPC != "2.0" {
		return d.maybeRespond(req, errorResponse(req.ID, CodeInvalidRequest, `jsonrpc must be "2.0"`))
	}

	fn, ok := d.methods[req.Method]
	if !ok {
		return d.maybeRespond(req, errorResponse(req.ID, CodeMethodNotFound, "unknown method: "+req.Method))
	}

	result, err := fn(d, req.Params)
	if err != nil {
		return d.maybeRespond(req, responseFromError(req.ID, err))
	}

	body, merr := json.Marshal(result)
	if merr != nil {
		cclog.Errorf("[MCPSERVER]> marshal result for method %q: %s", req.Method, merr.Error())
		return d.maybeRespond(req, errorResponse(req.ID, CodeInternalError, "failed to marshal result"))
	}
	if len(body) > maxResponseBytes {
		return d.maybeRespond(req, errorResponse(req.ID, CodeTooLarge, "response exceeds size limit"))
	}

	return d.maybeRespond(req, &Response{JSONRPC: "2.0", ID: req.ID, Result: body})
}

// maybeRespond suppresses the response for notifications, per §4.E:
// "Notifications (no id) produce no response" even on handler error.
func (d *Dispatcher) maybeRespond(req Request, resp *Response) *Response {
	if req.IsNotification() {
		return nil
	}
	return resp
}

// DispatchBatch handles a JSON array of requests (S5), returning one
// response per non-notification request in array order, or nil if
// every request in the batch was a notification.
func (d *Dispatcher) DispatchBatch(reqs []Request) []*Response {
	var out []*Response
	for _, req := range reqs {
		if resp := d.Dispatch(req); resp != nil {
			out = append(out, resp)
		}
	}
	return out
}

func responseFromError(id any, err error) *Response {
	if he, ok := err.(*HandlerError); ok {
		return &Response{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &Error{Code: CodeFor(he.Kind), Message: he.Message, Data: he.Data},
		}
	}
	return errorResponse(id, CodeGenericError, err.Error())
}

func errorResponse(id any, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

func handlePing(d *Dispatcher, params json.RawMessage) (any, error) {
	return map[string]any{}, nil
}

type metricListEntry struct {
	ID             ringstore.MetricId `json:"id"`
	UUID           string             `json:"uuid"`
	Chart          string             `json:"chart"`
	Dimension      string             `json:"dimension"`
	UpdateEverySec int64              `json:"updateEverySec"`
}

func handleMetricsList(d *Dispatcher, params json.RawMessage) (any, error) {
	entries := d.registry.List()
	out := make([]metricListEntry, 0, len(entries))
	for _, e := range entries {
		if e.Descriptor == nil {
			continue
		}
		out = append(out, metricListEntry{
			ID:             e.ID,
			UUID:           e.UUID,
			Chart:          e.Descriptor.Chart,
			Dimension:      e.Descriptor.Dimension,
			UpdateEverySec: e.Descriptor.UpdateEverySec,
		})
	}
	return map[string]any{"metrics": out}, nil
}

type metricsQueryParams struct {
	ID        ringstore.MetricId `json:"id"`
	AfterS    int64              `json:"afterS"`
	BeforeS   int64              `json:"beforeS"`
	MaxPoints int                `json:"maxPoints"`
}

type metricsQueryResult struct {
	IntervalS int64     `json:"intervalS"`
	Values    []float64 `json:"values"`
}

func handleMetricsQuery(d *Dispatcher, params json.RawMessage) (any, error) {
	var p metricsQueryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewHandlerError(KindInvalidParams, "invalid params: "+err.Error())
	}
	if p.BeforeS < p.AfterS {
		return nil, NewHandlerError(KindInvalidParams, "beforeS must be >= afterS")
	}

	q, ok := d.registry.NewQuery(p.ID, p.AfterS, p.BeforeS)
	if !ok {
		return nil, NewHandlerError(KindNotFound, "unknown or never-written metric id")
	}
	defer q.Close()

	maxPoints := p.MaxPoints
	if maxPoints <= 0 {
		maxPoints = d.maxPoints
	}

	series, err := resampler.FetchSeries(q, 1, maxPoints)
	if err != nil {
		return nil, NewHandlerError(KindInternal, "resample failed: "+err.Error())
	}
	return metricsQueryResult{IntervalS: series.IntervalS, Values: series.Values}, nil
}

type metricsRetentionParams struct {
	ID ringstore.MetricId `json:"id"`
}

type metricsRetentionResult struct {
	FirstSeenS int64 `json:"firstSeenS"`
	LastSeenS  int64 `json:"lastSeenS"`
}

func handleMetricsRetention(d *Dispatcher, params json.RawMessage) (any, error) {
	var p metricsRetentionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewHandlerError(KindInvalidParams, "invalid params: "+err.Error())
	}

	first, last, ok := d.registry.Retention(p.ID)
	if !ok {
		return nil, NewHandlerError(KindNotFound, "unknown metric id")
	}
	return metricsRetentionResult{FirstSeenS: first, LastSeenS: last}, nil
}
