// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpd

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ClusterCockpit/nd-agent-core/internal/config"
)

// transactionIDHeader is the lowercase-hex-no-dashes UUID of the
// accepting connection, stamped onto every response for log
// correlation with the access log's own transaction id.
func transactionIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn := ConnectionFrom(r.Context())
		rw.Header().Set("X-Transaction-ID", strings.ReplaceAll(conn.TransactionID.String(), "-", ""))
		next.ServeHTTP(rw, r)
	})
}

// statusUnavailableForLegalReasons is the 451 response the spec uses
// for a listener that reached an endpoint its ACL doesn't grant,
// borrowing the status code netdata uses for the same purpose rather
// than the more generic 403.
const statusUnavailableForLegalReasons = 451

// requireACL returns middleware rejecting any request whose connection
// lacks required, before the wrapped handler ever runs.
func requireACL(required config.ACLFlag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			conn := ConnectionFrom(r.Context())
			if !conn.ACL.Allows(required) {
				http.Error(rw, "endpoint disabled on this listener", statusUnavailableForLegalReasons)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

// requireBearerToken guards the management-class routes (/mcp, /sse)
// behind an HMAC-signed JWT, on top of whatever ACL a listener
// already grants. A disabled AuthConfig is a no-op passthrough, so a
// single-listener deployment bound to loopback isn't forced to mint
// tokens for itself.
func requireBearerToken(auth config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !auth.Enabled {
			return next
		}
		key := []byte(auth.HMACKey)
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == r.Header.Get("Authorization") || raw == "" {
				http.Error(rw, "missing bearer token", http.StatusUnauthorized)
				return
			}

			_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return key, nil
			})
			if err != nil {
				http.Error(rw, "invalid bearer token: "+err.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(rw, r)
		})
	}
}
