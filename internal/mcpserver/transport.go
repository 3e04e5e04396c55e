// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mcpserver

import (
	"bytes"
	"encoding/json"
)

// HandleBody parses one HTTP request body — a single JSON-RPC request
// object or a batch array of them (S5) — and returns the response
// body to write back. A nil return means nothing should be written
// (the body was an empty batch, or every request in it was a
// notification); an empty body yields a parse-error response.
func (d *Dispatcher) HandleBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return marshalError(errorResponse(nil, CodeParseError, "empty request body"))
	}

	if trimmed[0] == '[' {
		var reqs []Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return marshalError(errorResponse(nil, CodeParseError, "invalid JSON: "+err.Error()))
		}
		if len(reqs) == 0 {
			return nil
		}
		resps := d.DispatchBatch(reqs)
		if resps == nil {
			return nil
		}
		out, err := json.Marshal(resps)
		if err != nil {
			return marshalError(errorResponse(nil, CodeInternalError, "failed to marshal batch response"))
		}
		return out
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return marshalError(errorResponse(nil, CodeParseError, "invalid JSON: "+err.Error()))
	}
	resp := d.Dispatch(req)
	if resp == nil {
		return nil
	}
	return marshalError(resp)
}

func marshalError(resp *Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		// Marshaling a Response built entirely from our own fields
		// should never fail; fall back to a minimal hand-built body
		// rather than panic.
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal marshal failure"}}`)
	}
	return out
}
