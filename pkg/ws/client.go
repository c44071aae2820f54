package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Client WebSocket 客户端，实现 room.Conn
type Client struct {
	id      string
	room    string
	conn    *websocket.Conn
	manager *Manager

	// 发送队列，不会被关闭，退出由 ctx 控制
	send chan []byte

	// 元数据
	metadata sync.Map

	// 心跳
	lastPong atomic.Int64 // Unix timestamp

	// 生命周期
	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
	writeDone chan struct{}

	config *ClientConfig
}

// ClientConfig 客户端配置
type ClientConfig struct {
	SendQueueSize  int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithClientID 设置客户端 ID
func WithClientID(id string) ClientOption {
	return func(c *Client) {
		c.id = id
	}
}

// WithRoom 设置客户端所属房间
func WithRoom(roomKey string) ClientOption {
	return func(c *Client) {
		c.room = roomKey
	}
}

// WithMetadata 设置元数据
func WithMetadata(key string, value any) ClientOption {
	return func(c *Client) {
		c.metadata.Store(key, value)
	}
}

// NewClient 创建客户端，默认 ID 为 ULID，按连接先后有序
func NewClient(conn *websocket.Conn, manager *Manager, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(manager.ctx)

	config := &ClientConfig{
		SendQueueSize:  manager.config.MessageQueueSize,
		WriteWait:      manager.config.WriteWait,
		PongWait:       manager.config.HeartbeatTimeout,
		PingInterval:   manager.config.HeartbeatInterval,
		MaxMessageSize: manager.config.MaxMessageSize,
	}

	client := &Client{
		id:        ulid.Make().String(),
		conn:      conn,
		manager:   manager,
		send:      make(chan []byte, config.SendQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		config:    config,
		writeDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(client)
	}

	client.lastPong.Store(time.Now().Unix())
	return client
}

// ID 客户端 ID
func (c *Client) ID() string { return c.id }

// Room 握手时确定的房间号
func (c *Client) Room() string { return c.room }

// Context 客户端生命周期 context
func (c *Client) Context() context.Context { return c.ctx }

// Run 运行客户端，阻塞直到连接关闭
// 读循环在当前 goroutine 中按序处理消息
func (c *Client) Run() {
	go c.writePump()

	err := c.readPump()
	c.Close()
	<-c.writeDone

	c.manager.handler.OnClose(c, err)
}

// readPump 读取消息，返回导致退出的错误（正常关闭时为 nil）
func (c *Client) readPump() error {
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	if c.config.PongWait > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
			c.manager.metrics.IncrementReadErrors()
			return err
		}
	}
	c.conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().Unix())
		if c.config.PongWait > 0 {
			return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			c.manager.metrics.IncrementReadErrors()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.log.Warn("unexpected close", zap.String("conn_id", c.id), zap.Error(err))
			}
			return err
		}

		c.manager.handler.OnMessage(c.ctx, c, data)
	}
}

// writePump 写入消息并定时发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.config.WriteWait))
			return

		case message := <-c.send:
			if err := c.writeMessage(message); err != nil {
				c.manager.metrics.IncrementWriteErrors()
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteWait)); err != nil {
				c.manager.metrics.IncrementWriteErrors()
				c.Close()
				return
			}
		}
	}
}

// drain 关闭前尽量写出已入队的消息
func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			if err := c.writeMessage(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// writeMessage 写入消息
func (c *Client) writeMessage(message []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Send 非阻塞入队；连接已关闭或队列已满时返回错误
func (c *Client) Send(msg []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// Close 关闭客户端，可重复调用
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		if c.manager.pool.remove(c.id) {
			c.manager.metrics.DecrementConnections()
			c.manager.metrics.SetConnectionCount(c.manager.pool.count())
		}
		// 读循环阻塞在 ReadMessage 上，设置读超时使其尽快返回
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.WriteWait))
	})
}

// IsClosed 检查是否已关闭
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// LastPong 最近一次收到 pong 的时间
func (c *Client) LastPong() time.Time {
	return time.Unix(c.lastPong.Load(), 0)
}

// GetMetadata 获取元数据
func (c *Client) GetMetadata(key string) (any, bool) {
	return c.metadata.Load(key)
}

// SetMetadata 设置元数据
func (c *Client) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// RemoteAddr 获取远程地址
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
