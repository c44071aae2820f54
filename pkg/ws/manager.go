package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

// Handler 连接生命周期回调
// OnMessage 在客户端的读 goroutine 中调用，同一连接的消息按到达顺序处理
type Handler interface {
	OnOpen(c *Client) error
	OnMessage(ctx context.Context, c *Client, data []byte)
	OnClose(c *Client, err error)
}

// Manager WebSocket 核心管理器
type Manager struct {
	pool     *connectionPool
	handler  Handler
	config   *Config
	upgrader *Upgrader

	// 生命周期
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
	log     logger.Logger
}

// NewManager 创建管理器
func NewManager(handler Handler, opts ...Option) (*Manager, error) {
	if handler == nil {
		return nil, errors.New("ws: handler is required")
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		pool:     newConnectionPool(config.MaxConnections),
		handler:  handler,
		config:   config,
		upgrader: NewUpgrader(config.UpgraderConfig, config.HandshakeTimeout),
		ctx:      ctx,
		cancel:   cancel,
		metrics:  config.Metrics,
		log:      config.Logger.Named("ws"),
	}, nil
}

// HandleUpgrade 处理 WebSocket 升级并启动客户端
func (m *Manager) HandleUpgrade(w http.ResponseWriter, r *http.Request, opts ...ClientOption) error {
	if m.ctx.Err() != nil {
		http.Error(w, ErrManagerClosed.Message, ErrManagerClosed.HttpCode)
		return ErrManagerClosed
	}
	if err := m.pool.reserve(); err != nil {
		m.metrics.IncrementRejectedConnections("too_many_connections")
		http.Error(w, ErrTooManyConnections.Message, ErrTooManyConnections.HttpCode)
		return err
	}

	conn, err := m.upgrader.Upgrade(w, r)
	if err != nil {
		// Upgrade 已向客户端写入错误响应
		m.pool.release()
		m.metrics.IncrementRejectedConnections("upgrade_failed")
		return err
	}

	client := NewClient(conn, m, opts...)
	if err := m.pool.add(client); err != nil {
		m.metrics.IncrementRejectedConnections("duplicate_id")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "duplicate client id"),
			time.Now().Add(m.config.WriteWait))
		_ = conn.Close()
		client.cancel()
		return err
	}
	m.metrics.IncrementConnections()
	m.metrics.SetConnectionCount(m.pool.count())

	if err := m.handler.OnOpen(client); err != nil {
		m.log.Warn("open rejected", zap.String("conn_id", client.ID()), zap.Error(err))
		client.Close()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "open rejected"),
			time.Now().Add(m.config.WriteWait))
		_ = conn.Close()
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		client.Run()
	}()
	return nil
}

// Shutdown 关闭所有客户端并等待其退出
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	for _, c := range m.pool.snapshot() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetClient 获取客户端
func (m *Manager) GetClient(clientID string) (*Client, bool) {
	return m.pool.get(clientID)
}

// GetClientCount 获取连接数
func (m *Manager) GetClientCount() int {
	return m.pool.count()
}
