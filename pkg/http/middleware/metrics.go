package middleware

import (
	"strconv"
	"time"

	applogger "FinEdge/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records request metrics labelled by route template. 5xx responses
// are logged as errors and slow requests as warnings.
func Metrics(reg prometheus.Registerer, l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	f := promauto.With(reg)
	requests := f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finedge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	duration := f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finedge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "class"},
	)
	inFlight := f.NewGauge(prometheus.GaugeOpts{
		Name: "finedge_http_in_flight_requests",
		Help: "Current number of in-flight HTTP requests",
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inFlight.Inc()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)
			inFlight.Dec()

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			code := c.Response().Status
			status := strconv.Itoa(code)

			requests.WithLabelValues(route, method, status).Inc()
			duration.WithLabelValues(route, method, statusClass(code)).Observe(elapsed.Seconds())

			switch {
			case code >= 500:
				l.Error("http request failed",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.String("status", status),
					applogger.Duration("duration_ms", elapsed),
				)
			case slowThreshold > 0 && elapsed >= slowThreshold:
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Duration("duration_ms", elapsed),
				)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
