package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tokmz/roomcast/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoggerLevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Logger(logger.FromZap(zap.New(core)), &LoggerConfig{ExcludePaths: []string{"/healthz"}}))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/ok?x=1", nil)
	perform(r, http.MethodGet, "/missing", nil)
	perform(r, http.MethodGet, "/boom", nil)
	perform(r, http.MethodGet, "/healthz", nil)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
	assert.Equal(t, "x=1", entries[0].ContextMap()["query"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.EqualValues(t, 500, entries[2].ContextMap()["status"])
}

func TestLoggerSkipFunc(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Logger(logger.FromZap(zap.New(core)), &LoggerConfig{
		SkipFunc: func(c *gin.Context) bool { return c.GetHeader("Upgrade") == "websocket" },
	}))
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/ws", map[string]string{"Upgrade": "websocket"})
	assert.Zero(t, logs.Len())
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(&CORSConfig{
		AllowOrigins: []string{"https://app.example.com", "https://*.example.org"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
	}))
	r.GET("/rooms/:roomKey", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/rooms/:roomKey", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"exact", http.MethodGet, "https://app.example.com", "https://app.example.com", http.StatusOK},
		{"wildcard", http.MethodGet, "https://a.example.org", "https://a.example.org", http.StatusOK},
		{"wildcard needs subdomain", http.MethodGet, "https://.example.org", "", http.StatusOK},
		{"denied", http.MethodGet, "https://evil.com", "", http.StatusOK},
		{"no origin", http.MethodGet, "", "", http.StatusOK},
		{"preflight", http.MethodOptions, "https://app.example.com", "https://app.example.com", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.origin != "" {
				headers["Origin"] = tt.origin
			}
			w := perform(r, tt.method, "/rooms/R1", headers)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSCredentialsWithWildcardPanics(t *testing.T) {
	assert.Panics(t, func() {
		CORS(&CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})
	})
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	var seen trace.SpanContext
	r := gin.New()
	r.Use(Tracing(&TracingConfig{TracerName: "test", ExcludePaths: []string{"/healthz"}}))
	r.GET("/rooms/:roomKey", func(c *gin.Context) {
		seen = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusInternalServerError)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	parent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	w := perform(r, http.MethodGet, "/rooms/R1", map[string]string{"traceparent": parent})
	perform(r, http.MethodGet, "/healthz", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /rooms/:roomKey", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	assert.Equal(t, "Error", span.Status().Code.String())

	assert.Equal(t, span.SpanContext().SpanID(), seen.SpanID())
	assert.Contains(t, w.Header().Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}
