package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer(nil, WithMetrics("", nil, nil), WithHealthCheck("db", func(context.Context) error { return nil }))
	rec := serve(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"ok"`)

	s = NewServer(nil, WithMetrics("", nil, nil),
		WithHealthCheck("db", func(context.Context) error { return nil }),
		WithHealthCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") }),
	)
	rec = serve(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestMetricsEndpointUsesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(pingHandler{}, WithMetrics("/metrics", reg, reg))

	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/ping").Code)
	rec := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "finedge_http_requests_total")
}

func TestMetricsDisabled(t *testing.T) {
	s := NewServer(nil, WithMetrics("", nil, nil))
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/metrics").Code)
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	s := NewServer(pingHandler{}, WithMetrics("", nil, nil))
	assert.Equal(t, http.StatusInternalServerError, serve(s, http.MethodGet, "/boom").Code)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(pingHandler{}, WithMetrics("", nil, nil))
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "http://dash.local")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://dash.local", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
