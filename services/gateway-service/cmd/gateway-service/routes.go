package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/ordersaga/libs/auth"
	"github.com/md-rashed-zaman/ordersaga/libs/config"
	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
)

type route struct {
	prefix string
	target *url.URL
}

func routesFromEnv() ([]route, error) {
	targets := []struct{ prefix, key, fallback string }{
		{"/api/v1/orders", "ORDER_SERVICE_URL", "http://order-service:8081"},
		{"/api/v1/inventory", "INVENTORY_SERVICE_URL", "http://inventory-service:8082"},
		{"/api/v1/payments", "PAYMENT_SERVICE_URL", "http://payment-service:8083"},
		{"/api/v1/notifications", "NOTIFICATION_SERVICE_URL", "http://notification-service:8084"},
	}
	out := make([]route, 0, len(targets))
	for _, t := range targets {
		u, err := url.Parse(config.String(t.key, t.fallback))
		if err != nil {
			return nil, err
		}
		out = append(out, route{prefix: t.prefix, target: u})
	}
	return out, nil
}

// registerRoutes proxies every service API behind authentication. Upstreams
// trust the identity headers, so callers can never supply their own.
func registerRoutes(mux *http.ServeMux, routes []route, authn auth.Authenticator, limit httpx.Middleware) {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	for _, rt := range routes {
		proxy := httputil.NewSingleHostReverseProxy(rt.target)
		proxy.Transport = transport
		h := httpx.Chain(proxy, stripIdentity, authn.Middleware(), limit, forwardIdentity)
		registerProxy(mux, rt.prefix, h)
	}
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(auth.HeaderUserID)
		r.Header.Del(auth.HeaderRoles)
		next.ServeHTTP(w, r)
	})
}

func forwardIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := auth.FromContext(r.Context()); ok {
			r.Header.Set(auth.HeaderUserID, p.UserID)
			r.Header.Set(auth.HeaderRoles, strings.Join(p.Roles, ","))
		}
		next.ServeHTTP(w, r)
	})
}
