// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpd

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/nd-agent-core/internal/config"
	"github.com/ClusterCockpit/nd-agent-core/internal/mcpserver"
	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := ringstore.NewMetricRegistry()
	d := mcpserver.NewDispatcher(reg, 0)
	return NewRouter(reg, d, config.AuthConfig{})
}

func withConn(r *http.Request, acl config.ACLFlag) *http.Request {
	return r.WithContext(WithConnection(r.Context(), &Connection{ACL: acl}))
}

func TestMCPEndpointDeniedWithoutACL(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req = withConn(req, 0)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, statusUnavailableForLegalReasons, rec.Code)
}

func TestMCPEndpointServedWithManagementACL(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req = withConn(req, config.ACLManagement)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEqual(t, statusUnavailableForLegalReasons, rec.Code)
}

func TestDashboardFallbackDeniedWithoutACL(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	req = withConn(req, 0)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, statusUnavailableForLegalReasons, rec.Code)
}

func TestNetdataConfRequiresOwnACL(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/netdata.conf", nil)
	req = withConn(req, config.ACLDashboard)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, statusUnavailableForLegalReasons, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/netdata.conf", nil)
	req2 = withConn(req2, config.ACLNetdataConf)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestMCPEndpointRequiresBearerTokenWhenAuthEnabled(t *testing.T) {
	reg := ringstore.NewMetricRegistry()
	d := mcpserver.NewDispatcher(reg, 0)
	auth := config.AuthConfig{Enabled: true, HMACKey: "test-secret"}
	router := NewRouter(reg, d, auth)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req = withConn(req, config.ACLManagement)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "test"})
	signed, err := token.SignedString([]byte(auth.HMACKey))
	require.NoError(t, err)

	req2 := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req2 = withConn(req2, config.ACLManagement)
	req2.Header.Set("Authorization", "Bearer "+signed)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	assert.NotEqual(t, http.StatusUnauthorized, rec2.Code)
}
