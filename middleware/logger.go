package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

// LoggerConfig 日志中间件配置
type LoggerConfig struct {
	// Logger 日志实例（必填）
	Logger logger.Logger

	// SkipFunc 跳过日志的函数
	SkipFunc func(c *gin.Context) bool

	// ExcludePaths 排除的路径（不记录日志）
	ExcludePaths []string
}

// Logger 创建日志中间件
// 请求结束后记录一条日志，按状态码选择级别
func Logger(log logger.Logger, cfgs ...*LoggerConfig) gin.HandlerFunc {
	cfg := &LoggerConfig{Logger: log}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
		if cfg.Logger == nil {
			cfg.Logger = log
		}
	}
	l := cfg.Logger.Named("http")

	skipMap := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	return func(c *gin.Context) {
		if skipMap[c.Request.URL.Path] || (cfg.SkipFunc != nil && cfg.SkipFunc(c)) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			l.ErrorContext(ctx, "request completed", fields...)
		case status >= 400:
			l.WarnContext(ctx, "request completed", fields...)
		default:
			l.InfoContext(ctx, "request completed", fields...)
		}
	}
}
