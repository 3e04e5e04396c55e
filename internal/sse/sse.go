// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sse frames JSON-RPC responses as Server-Sent Events for the
// /sse transport. Event framing is grounded on mcp_sse_append_event /
// mcp_sse_append_buffer_event: one "message" event per response, a
// trailing "complete" event, or a single "error" event on failure
// (S6).
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/ClusterCockpit/nd-agent-core/internal/mcpserver"
)

// ContentType is the MIME type written for every /sse response.
const ContentType = "text/event-stream"

// WriteEvent appends one SSE frame ("event: <name>\ndata: <data>\n\n")
// to buf. An empty data payload omits the data line entirely, matching
// mcp_sse_append_event's handling of a null data pointer.
func WriteEvent(buf *bytes.Buffer, event string, data []byte) {
	buf.WriteString("event: ")
	buf.WriteString(event)
	buf.WriteByte('\n')
	if len(data) > 0 {
		buf.WriteString("data: ")
		buf.Write(data)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
}

// Render dispatches body (a single JSON-RPC request object or a batch
// array) and frames the result as an SSE stream: one "message" event
// per response plus a trailing "complete" event, or an "error" event
// if the request body could not even be parsed into responses.
func Render(d *mcpserver.Dispatcher, body []byte) []byte {
	var buf bytes.Buffer

	if len(bytes.TrimSpace(body)) == 0 {
		WriteEvent(&buf, "error", []byte(`{"code":-32700,"message":"empty request body"}`))
		return buf.Bytes()
	}
	if !json.Valid(body) {
		WriteEvent(&buf, "error", []byte(`{"code":-32700,"message":"invalid JSON"}`))
		return buf.Bytes()
	}

	out := d.HandleBody(body)
	if out == nil {
		WriteEvent(&buf, "complete", []byte(`{}`))
		return buf.Bytes()
	}

	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			for _, item := range items {
				WriteEvent(&buf, "message", item)
			}
			WriteEvent(&buf, "complete", []byte(`{}`))
			return buf.Bytes()
		}
	}

	WriteEvent(&buf, "message", trimmed)
	WriteEvent(&buf, "complete", []byte(`{}`))
	return buf.Bytes()
}

// ServeHTTP handles one GET or POST /sse request: it reads the full body,
// renders the SSE stream, and writes it with compression and chunked
// transfer disabled, matching mcp_sse_disable_compression.
func ServeHTTP(d *mcpserver.Dispatcher, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body []byte
	if r.Body != nil {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		body = buf.Bytes()
	}

	header := w.Header()
	header.Set("Content-Type", ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	frame := Render(d, body)
	if len(bytes.TrimSpace(body)) == 0 {
		w.WriteHeader(http.StatusBadRequest)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.Write(frame)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
