// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpd is the agent-resident HTTP/1.1 request pipeline: per
// listener access control, request dispatch to the MCP and SSE
// adapters, and static file serving, grounded on the teacher's own
// cmd/agent-core server wiring (gorilla/mux routing, gorilla/handlers
// compression/recovery/CORS/logging middleware).
package httpd

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ClusterCockpit/nd-agent-core/internal/config"
)

type connectionKey struct{}

// Connection is the per-request metadata the spec models as living
// alongside the transport connection: a transaction id for log
// correlation, the ACL bitset granted by the listener the request
// arrived on, and when the request started.
type Connection struct {
	TransactionID uuid.UUID
	ACL           config.ACLFlag
	StartedAt     time.Time
}

// WithConnection returns a context carrying conn, retrievable with
// ConnectionFrom.
func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey{}, conn)
}

// ConnectionFrom extracts the Connection a middleware attached to ctx,
// or a zero-ACL Connection if none was attached (fail closed).
func ConnectionFrom(ctx context.Context) *Connection {
	if conn, ok := ctx.Value(connectionKey{}).(*Connection); ok {
		return conn
	}
	return &Connection{}
}

// newConnection stamps a fresh Connection for a listener granting acl.
func newConnection(acl config.ACLFlag) *Connection {
	return &Connection{
		TransactionID: uuid.New(),
		ACL:           acl,
		StartedAt:     time.Now(),
	}
}
