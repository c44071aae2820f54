package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig 链路追踪中间件配置
type TracingConfig struct {
	// TracerName Tracer 名称（默认 "roomcast.http"）
	TracerName string

	// ExcludePaths 排除的路径（不追踪）
	ExcludePaths []string
}

// Tracing 创建链路追踪中间件
// 提取上游 TraceContext 并创建 Server Span；websocket 升级请求的 Span 在升级完成时结束
func Tracing(cfgs ...*TracingConfig) gin.HandlerFunc {
	cfg := &TracingConfig{TracerName: "roomcast.http"}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}

	skipMap := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	return func(c *gin.Context) {
		if skipMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		// 每次请求时获取，Provider 可能晚于路由注册初始化
		tracer := otel.Tracer(cfg.TracerName)
		propagator := otel.GetTextMapPropagator()

		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.URLPath(c.Request.URL.Path),
			semconv.ServerAddress(c.Request.Host),
			semconv.UserAgentOriginalKey.String(c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		}
		if full := c.FullPath(); full != "" {
			attrs = append(attrs, semconv.HTTPRouteKey.String(full))
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		// 注入响应头需在写出响应前完成
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
