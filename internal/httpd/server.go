// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"golang.org/x/time/rate"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/nd-agent-core/internal/config"
	"github.com/ClusterCockpit/nd-agent-core/internal/mcpserver"
	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
)

// listenBacklog mirrors the distilled spec's "backlog 4096" sizing for
// the accept queue; Go's net package doesn't expose SO_LISTENBACKLOG
// directly, but most platforms read net.core.somaxconn at Listen time,
// so this is recorded for operational documentation rather than wired
// into a syscall.
const listenBacklog = 4096

type boundListener struct {
	cfg config.ListenerConfig
	srv *http.Server
}

// Server owns one net/http.Server per configured listener, all sharing
// a single gorilla/mux router and request handler chain. Each
// listener stamps its own ACL bitset onto every connection it accepts
// via http.Server.ConnContext, which is how the distilled spec's
// per-connection Connection/ACL data ends up reachable from a handler
// without a global lookup.
type Server struct {
	bound []boundListener
	wg    sync.WaitGroup
}

// New builds a Server from cfg's listener list, wiring requests to the
// given registry and MCP dispatcher. It does not start listening;
// call Start for that.
func New(cfg *config.AgentConfig, registry *ringstore.MetricRegistry, dispatcher *mcpserver.Dispatcher) (*Server, error) {
	if len(cfg.Listeners) == 0 {
		return nil, errors.New("httpd: at least one listener is required")
	}

	router := NewRouter(registry, dispatcher, cfg.Auth)
	handler := wrapMiddleware(router, cfg.RateLimit)

	s := &Server{}
	for _, lc := range cfg.Listeners {
		acl := lc.ACL
		srv := &http.Server{
			Handler:      handler,
			ReadTimeout:  20 * time.Second,
			WriteTimeout: 20 * time.Second,
			ConnContext: func(ctx context.Context, _ net.Conn) context.Context {
				return WithConnection(ctx, newConnection(acl))
			},
		}
		s.bound = append(s.bound, boundListener{cfg: lc, srv: srv})
	}
	return s, nil
}

// Start opens every configured listener and serves it in its own
// goroutine. It returns once every listener has been opened
// successfully, or an error naming the first listener that failed.
func (s *Server) Start() error {
	for _, b := range s.bound {
		network := b.cfg.Network
		if network == "" {
			network = "tcp"
		}
		addr := fmt.Sprintf("%s:%d", b.cfg.Address, b.cfg.Port)
		if network == "unix" {
			addr = b.cfg.Address
		}

		ln, err := net.Listen(network, addr)
		if err != nil {
			return fmt.Errorf("httpd: listen on %s %s: %w", network, addr, err)
		}

		b := b
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			cclog.Infof("[HTTPD]> listening on %s (acl=%v)", addr, b.cfg.ACL)
			if err := b.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cclog.Errorf("[HTTPD]> listener %s stopped: %s", addr, err.Error())
			}
		}()
	}
	return nil
}

// Shutdown gracefully stops every listener, waiting for in-flight
// requests to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, b := range s.bound {
		if err := b.srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.wg.Wait()
	return firstErr
}

// wrapMiddleware applies the teacher's own middleware stack — gzip
// compression, panic recovery, permissive CORS for the dashboard, and
// access logging — in the same order cmd/agent-core's legacy server
// wiring used, plus a global request-rate limiter guarding the
// single-writer collector paths when rl.RequestsPerSecond is set.
func wrapMiddleware(router http.Handler, rl config.RateLimitConfig) http.Handler {
	h := handlers.CompressHandler(router)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = handlers.CORS(
		handlers.AllowCredentials(),
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization", "Origin"}),
		handlers.AllowedMethods([]string{"GET", "POST", "HEAD", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}),
	)(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, accessLogFormatter)
	if rl.RequestsPerSecond > 0 {
		h = rateLimitMiddleware(rl)(h)
	}
	return h
}

// rateLimitMiddleware enforces a single process-wide token bucket
// across every listener; it protects the registry and query paths
// from a runaway peer rather than fair-sharing capacity per client,
// since this process serves a single trusted agent deployment rather
// than arbitrary public traffic.
func rateLimitMiddleware(rl config.RateLimitConfig) func(http.Handler) http.Handler {
	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(rw, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

func accessLogFormatter(_ io.Writer, params handlers.LogFormatterParams) {
	cclog.Debugf("[HTTPD]> %s %s (%d, %.02fkb, %dms)",
		params.Request.Method, params.URL.RequestURI(),
		params.StatusCode, float32(params.Size)/1024,
		time.Since(params.TimeStamp).Milliseconds())
}
