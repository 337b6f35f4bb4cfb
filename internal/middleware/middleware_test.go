package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(reg prometheus.Registerer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger(nil).Handler())
	r.Use(NewPrometheusMiddleware("test", reg, "/health").Handler())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/regions/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": c.Param("id")}) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func serve(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestPrometheusMiddleware_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newRouter(reg)

	assert.Equal(t, http.StatusOK, serve(r, "/regions/1").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/regions/2").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(r, "/broken").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, "/nowhere").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/health").Code)

	families, err := reg.Gather()
	require.NoError(t, err)

	var samples uint64
	for _, mf := range families {
		if mf.GetName() != "test_http_request_duration_seconds" {
			continue
		}
		assert.Equal(t, "Длительность HTTP-запросов.", mf.GetHelp())
		for _, m := range mf.GetMetric() {
			samples += m.GetHistogram().GetSampleCount()
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" {
					assert.NotEqual(t, "/health", l.GetValue(), "health не измеряется")
					assert.NotEqual(t, "/nowhere", l.GetValue(), "путь без маршрута не попадает в метки")
				}
			}
		}
	}
	assert.Equal(t, uint64(4), samples, "измерены все запросы кроме health")

	errs, err := testutil.GatherAndCount(reg, "test_http_request_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, errs, "ошибки 500 и 404 в отдельных сериях")
}

func TestPrometheusMiddleware_NilRegisterer(t *testing.T) {
	r := newRouter(nil)
	assert.Equal(t, http.StatusOK, serve(r, "/regions/1").Code, "без регистра middleware работает")
}

func TestRequestLogger_TraceID(t *testing.T) {
	r := newRouter(nil)
	first := serve(r, "/health").Header().Get(TraceIDHeader)
	second := serve(r, "/health").Header().Get(TraceIDHeader)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second, "у каждого запроса свой trace-ID")
}
