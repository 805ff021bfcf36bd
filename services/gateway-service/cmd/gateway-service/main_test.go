package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
)

func newGateway(t *testing.T, secret string) (*httptest.Server, chan http.Header) {
	t.Helper()
	seen := make(chan http.Header, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	t.Cleanup(upstream.Close)

	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	mux := http.NewServeMux()
	registerRoutes(mux, []route{{prefix: "/api/v1/orders", target: target}},
		auth.Authenticator{Secret: secret},
		httpx.NewRateLimiter(100, time.Minute, auth.UserKey).Middleware())
	gw := httptest.NewServer(mux)
	t.Cleanup(gw.Close)
	return gw, seen
}

func TestProxyForwardsVerifiedIdentity(t *testing.T) {
	secret := "test-secret"
	gw, seen := newGateway(t, secret)
	token, err := auth.SignHS256(auth.Claims{
		Sub:   "C1",
		Roles: []string{"ROLE_CUSTOMER"},
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(time.Hour).Unix(),
	}, secret)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, gw.URL+"/api/v1/orders/o-1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(auth.HeaderRoles, "ADMIN")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "/api/v1/orders/o-1", string(body))
	h := <-seen
	assert.Equal(t, "C1", h.Get(auth.HeaderUserID))
	assert.Equal(t, "CUSTOMER", h.Get(auth.HeaderRoles))
}

func TestProxyRejectsForgedHeaders(t *testing.T) {
	gw, _ := newGateway(t, "test-secret")

	req, err := http.NewRequest(http.MethodGet, gw.URL+"/api/v1/orders", nil)
	require.NoError(t, err)
	req.Header.Set(auth.HeaderUserID, "someone")
	req.Header.Set(auth.HeaderRoles, "ADMIN")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer badtoken")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestRoutesFromEnv(t *testing.T) {
	t.Setenv("PAYMENT_SERVICE_URL", "http://localhost:9999")
	routes, err := routesFromEnv()
	require.NoError(t, err)
	require.Len(t, routes, 4)
	assert.Equal(t, "/api/v1/payments", routes[2].prefix)
	assert.Equal(t, "localhost:9999", routes[2].target.Host)
}
