package roomcast

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/middleware"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/metrics"
	"github.com/tokmz/roomcast/pkg/room"
	"github.com/tokmz/roomcast/pkg/ws"
)

// Engine HTTP 入口，承载 websocket 升级与只读统计接口
type Engine struct {
	settings ServerSettings
	engine   *gin.Engine
	server   *http.Server

	hub     *room.Hub
	manager *ws.Manager
	metrics *metrics.Prometheus
	log     logger.Logger
	banner  bool
}

// Option 引擎选项
type Option func(*Engine)

// WithLogger 设置日志
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithMetrics 挂载 /metrics
func WithMetrics(m *metrics.Prometheus) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBanner 启动时打印 banner 和路由表
func WithBanner(enable bool) Option {
	return func(e *Engine) {
		e.banner = enable
	}
}

// New 创建 Engine 并注册路由
func New(settings ServerSettings, hub *room.Hub, manager *ws.Manager, opts ...Option) *Engine {
	e := &Engine{
		settings: settings,
		hub:      hub,
		manager:  manager,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.settings.Addr == "" {
		e.settings.Addr = ":8080"
	}
	if e.settings.ShutdownTimeout <= 0 {
		e.settings.ShutdownTimeout = 10 * time.Second
	}

	// gin.SetMode 是全局操作，进程内只应创建一个 Engine
	if e.settings.Mode != "" && gin.Mode() != e.settings.Mode {
		gin.SetMode(e.settings.Mode)
	}
	silenceGin()

	g := gin.New()
	g.Use(gin.Recovery())
	if e.settings.TrustedProxies != nil {
		if err := g.SetTrustedProxies(e.settings.TrustedProxies); err != nil {
			e.log.Warn("set trusted proxies failed", zap.Error(err))
		}
	}

	quiet := []string{"/healthz", "/metrics"}
	g.Use(middleware.Tracing(&middleware.TracingConfig{
		TracerName:   "roomcast.http",
		ExcludePaths: quiet,
	}))
	g.Use(middleware.Logger(e.log, &middleware.LoggerConfig{ExcludePaths: quiet}))
	if len(e.settings.AllowedOrigins) > 0 {
		g.Use(middleware.CORS(&middleware.CORSConfig{
			AllowOrigins: e.settings.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Traceparent"},
			MaxAge:       12 * time.Hour,
		}))
	}

	e.engine = g
	e.registerRoutes()
	return e
}

// Handler 返回 http.Handler，便于测试挂载
func (e *Engine) Handler() http.Handler {
	return e.engine
}

// Run 启动 HTTP 服务器，ctx 取消后优雅关机
func (e *Engine) Run(ctx context.Context) error {
	e.server = &http.Server{
		Addr:         e.settings.Addr,
		Handler:      e.engine,
		ReadTimeout:  e.settings.ReadTimeout,
		WriteTimeout: e.settings.WriteTimeout,
		IdleTimeout:  e.settings.IdleTimeout,
	}

	if e.banner {
		e.printBanner(e.settings.Addr)
	}
	e.log.Info("http server listening", zap.String("addr", e.settings.Addr))

	return e.serve(ctx, e.server.ListenAndServe)
}

// serve 启动服务器并等待 ctx 取消或启动错误
func (e *Engine) serve(ctx context.Context, startFunc func() error) error {
	errChan := make(chan error, 1)
	go func() {
		if err := startFunc(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		e.log.Info("shutting down http server")
	}
	return e.gracefulShutdown()
}

// gracefulShutdown 停止接受新请求，已升级的连接由 ws.Manager 负责关闭
func (e *Engine) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.settings.ShutdownTimeout)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("http server forced to shutdown", zap.Error(err))
		return err
	}
	e.log.Info("http server stopped")
	return nil
}

// Shutdown 手动关闭服务器
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
