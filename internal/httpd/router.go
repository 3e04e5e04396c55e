// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpd

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ClusterCockpit/nd-agent-core/internal/config"
	"github.com/ClusterCockpit/nd-agent-core/internal/mcpserver"
	"github.com/ClusterCockpit/nd-agent-core/internal/sse"
	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
)

// StaticFiles is overridden by callers that want to serve a real asset
// directory; by default static requests fall through to 404.
var StaticFiles http.FileSystem

// NewRouter builds the shared request multiplexer. It is built once at
// startup and reused by every listener; per-listener ACL enforcement
// happens per-route via requireACL, reading the Connection the
// accepting listener's middleware attached to the request context.
func NewRouter(registry *ringstore.MetricRegistry, dispatcher *mcpserver.Dispatcher, auth config.AuthConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(transactionIDHeader)

	management := func(h http.Handler) http.Handler {
		return requireACL(config.ACLManagement)(requireBearerToken(auth)(h))
	}
	r.Handle("/mcp", management(mcpHandler(dispatcher))).Methods(http.MethodPost)
	r.Handle("/sse", management(sseHandler(dispatcher))).Methods(http.MethodGet, http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requireACL(config.ACLRegistry))
	api.HandleFunc("/v1/metrics", listMetricsHandler(registry)).Methods(http.MethodGet)
	api.HandleFunc("/v1/metrics/{id}/query", queryMetricHandler(registry)).Methods(http.MethodGet)

	r.Handle("/netdata.conf", requireACL(config.ACLNetdataConf)(netdataConfHandler())).Methods(http.MethodGet)

	for _, prefix := range []string{"/host/", "/node/"} {
		r.PathPrefix(prefix).Handler(requireACL(config.ACLStreaming)(streamProxyHandler()))
	}
	for _, version := range []string{"/v0", "/v1", "/v2", "/v3"} {
		api := r.PathPrefix(version).Subrouter()
		api.Use(requireACL(config.ACLRegistry))
		api.HandleFunc("/info", infoHandler(registry)).Methods(http.MethodGet)
	}

	r.PathPrefix("/").Handler(requireACL(config.ACLDashboard)(staticHandler()))

	return r
}

func mcpHandler(dispatcher *mcpserver.Dispatcher) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, err := readLimitedBody(rw, r)
		if err != nil {
			http.Error(rw, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		out := dispatcher.HandleBody(body)
		rw.Header().Set("Content-Type", "application/json")
		if out == nil {
			rw.WriteHeader(http.StatusAccepted)
			return
		}
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write(out)
	})
}

func sseHandler(dispatcher *mcpserver.Dispatcher) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		sse.ServeHTTP(dispatcher, rw, r)
	})
}

// mcpMaxBodyBytes bounds a single JSON-RPC request body, independent
// of the response-side maxResponseBytes cap in internal/mcpserver.
const mcpMaxBodyBytes = 16 << 20

func readLimitedBody(rw http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	limited := http.MaxBytesReader(rw, r.Body, mcpMaxBodyBytes)
	return io.ReadAll(limited)
}

func listMetricsHandler(registry *ringstore.MetricRegistry) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		entries := registry.List()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(entries)
	}
}

func queryMetricHandler(registry *ringstore.MetricRegistry) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "use the /mcp metrics.query method", http.StatusNotImplemented)
	}
}

func netdataConfHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = rw.Write([]byte("# generated by nd-agent-core\n"))
	}
}

func streamProxyHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "streaming proxy not implemented", http.StatusNotImplemented)
	}
}

func infoHandler(registry *ringstore.MetricRegistry) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"metrics": registry.Len()})
	}
}

func staticHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if StaticFiles == nil || strings.Contains(r.URL.Path, "..") {
			http.NotFound(rw, r)
			return
		}
		http.FileServer(StaticFiles).ServeHTTP(rw, r)
	})
}
