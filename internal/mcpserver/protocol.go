// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mcpserver implements the JSON-RPC 2.0 "Model Context
// Protocol" dispatcher the HTTP pipeline exposes at /mcp and /sse.
package mcpserver

import (
	"bytes"
	"encoding/json"
)

// Request is one JSON-RPC 2.0 call. A request with no id is a
// notification: it is dispatched but never produces a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`

	idPresent       bool
	idExplicitNull  bool
	idInvalidFormat bool
}

// UnmarshalJSON tracks whether id was present, explicitly null, or of
// an unsupported type. An absent id and a null id are both accepted and
// both mark the request as a notification; any other non-string,
// non-number id is flagged as invalid.
func (r *Request) UnmarshalJSON(data []byte) error {
	type rawRequest struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}

	r.JSONRPC = raw.JSONRPC
	r.Method = raw.Method
	r.Params = raw.Params
	r.ID = nil
	_, r.idPresent = object["id"]
	r.idExplicitNull = false
	r.idInvalidFormat = false

	rawID, ok := object["id"]
	if !ok {
		return nil
	}

	trimmed := bytes.TrimSpace(rawID)
	if bytes.Equal(trimmed, []byte("null")) {
		r.idExplicitNull = true
		return nil
	}

	var parsedID any
	if err := json.Unmarshal(trimmed, &parsedID); err != nil {
		return err
	}
	switch parsedID.(type) {
	case string, float64:
		r.ID = parsedID
	default:
		r.idInvalidFormat = true
	}
	return nil
}

// IsNotification reports whether this request carries no valid id and
// therefore produces no response (§4.E: "Notifications (no id) produce
// no response").
func (r Request) IsNotification() bool {
	if r.idPresent {
		return r.idExplicitNull
	}
	return r.ID == nil
}

// HasInvalidID reports an id field present but of an unsupported JSON
// type (anything other than a string or number).
func (r Request) HasInvalidID() bool {
	return r.idInvalidFormat
}

// Response is one JSON-RPC 2.0 reply: exactly one of Result or Error
// is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Data is optional; it carries
// the Data of the HandlerError that produced the error, when set.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes, plus the transport-specific
// extensions §4.E defines for this dispatcher.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeGenericError   = -32000
	CodeTooLarge       = -32001
	CodeNoStreaming    = -32002
)

// ErrorKind classifies a handler failure before it is mapped to a
// JSON-RPC error code, so dispatch code can speak in terms of the
// error taxonomy from SPEC_FULL §7 rather than raw codes.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindInvalidParams
	KindNotFound
	KindNotImplemented
	KindBadRequest
	KindInternal
	KindParse
)

// CodeFor maps an ErrorKind to its JSON-RPC error code, per §4.E:
// "InvalidParams→-32602, NotFound|NotImplemented→-32601,
// BadRequest→-32600, InternalError→-32603, ParseError→-32700,
// generic→-32000".
func CodeFor(kind ErrorKind) int {
	switch kind {
	case KindInvalidParams:
		return CodeInvalidParams
	case KindNotFound, KindNotImplemented:
		return CodeMethodNotFound
	case KindBadRequest:
		return CodeInvalidRequest
	case KindInternal:
		return CodeInternalError
	case KindParse:
		return CodeParseError
	default:
		return CodeGenericError
	}
}

// HandlerError is the error type method handlers return to report a
// classified failure.
type HandlerError struct {
	Kind    ErrorKind
	Message string
	Data    json.RawMessage
}

func (e *HandlerError) Error() string { return e.Message }

// NewHandlerError constructs a HandlerError without response data.
func NewHandlerError(kind ErrorKind, message string) *HandlerError {
	return &HandlerError{Kind: kind, Message: message}
}
