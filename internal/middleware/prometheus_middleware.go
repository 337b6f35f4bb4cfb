package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute метка для запросов мимо маршрутов, чтобы не раздувать кардинальность
const unmatchedRoute = "unmatched"

// PrometheusMiddleware HTTP-метрики админского API:
//
//	<service>_http_request_duration_seconds{method,route,status}
//	<service>_http_requests_inflight
//	<service>_http_request_errors_total{method,route,status}
type PrometheusMiddleware struct {
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	errors   *prometheus.CounterVec
	skip     map[string]struct{}
}

// NewPrometheusMiddleware создаёт middleware и регистрирует метрики в reg, если он задан.
// Маршруты из skip не измеряются.
func NewPrometheusMiddleware(service string, reg prometheus.Registerer, skip ...string) *PrometheusMiddleware {
	pm := &PrometheusMiddleware{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: service,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route", "status"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: service,
			Name:      "http_requests_inflight",
			Help:      "Запросы в обработке.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: service,
			Name:      "http_request_errors_total",
			Help:      "Запросы со статусом 4xx/5xx.",
		}, []string{"method", "route", "status"}),
		skip: make(map[string]struct{}, len(skip)),
	}
	for _, route := range skip {
		pm.skip[route] = struct{}{}
	}

	if reg != nil {
		reg.MustRegister(pm.duration, pm.inflight, pm.errors)
	}
	return pm
}

// Handler gin.HandlerFunc для router.Use()
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := pm.skip[route]; ok {
			c.Next()
			return
		}
		if route == "" {
			route = unmatchedRoute
		}

		start := time.Now()
		pm.inflight.Inc()
		defer pm.inflight.Dec()

		c.Next()

		code := c.Writer.Status()
		status := strconv.Itoa(code)
		pm.duration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		if code >= 400 {
			pm.errors.WithLabelValues(c.Request.Method, route, status).Inc()
		}
	}
}
