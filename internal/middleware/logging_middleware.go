package middleware

import (
	"time"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader заголовок ответа с trace-ID запроса
const TraceIDHeader = "X-Trace-ID"

// RequestLogger присваивает запросу trace-ID и пишет журнал доступа
type RequestLogger struct {
	log *logging.Logger
}

// NewRequestLogger журнал в log; nil пишет в логгер компонента "http"
func NewRequestLogger(log *logging.Logger) *RequestLogger {
	if log == nil {
		log = logging.GetComponentLogger("http")
	}
	return &RequestLogger{log: log}
}

// traceID берется из span'а otelgin, иначе генерируется
func traceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := traceID(c)
		c.Set("trace_id", id)
		c.Header(TraceIDHeader, id)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		operator := c.GetString("operator")
		if operator == "" {
			operator = "-"
		}

		switch {
		case status >= 500:
			rl.log.Error("◀ %s %s %d %s op=%s trace=%s", c.Request.Method, c.Request.URL.Path, status, latency, operator, id)
		case status >= 400:
			rl.log.Warn("◀ %s %s %d %s op=%s trace=%s", c.Request.Method, c.Request.URL.Path, status, latency, operator, id)
		default:
			rl.log.Debug("◀ %s %s %d %s op=%s trace=%s", c.Request.Method, c.Request.URL.Path, status, latency, operator, id)
		}
	}
}
