package room

import (
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

// EvictFunc 连接因投递失败被驱逐后的回调
type EvictFunc func(conn Conn, roomKey string)

// Dispatcher 房间广播
type Dispatcher struct {
	reg     *Registry
	log     logger.Logger
	metrics Metrics
	onEvict EvictFunc
}

// NewDispatcher 创建广播器
func NewDispatcher(reg *Registry, log logger.Logger, metrics Metrics, onEvict EvictFunc) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Dispatcher{reg: reg, log: log, metrics: metrics, onEvict: onEvict}
}

// Broadcast 向房间成员投递消息，返回成功投递数
// 跳过 exclude 与已关闭的连接；投递失败的连接在遍历结束后被驱逐
func (d *Dispatcher) Broadcast(roomKey string, msg []byte, exclude Conn) int {
	start := time.Now()
	members := d.reg.Members(roomKey)

	var (
		delivered int
		failed    []Conn
	)
	for _, c := range members {
		if exclude != nil && c.ID() == exclude.ID() {
			continue
		}
		if c.IsClosed() {
			continue
		}
		if err := c.Send(msg); err != nil {
			d.log.Warn("deliver failed, evicting connection",
				zap.String("room", roomKey),
				zap.String("conn_id", c.ID()),
				zap.Error(err),
			)
			d.metrics.IncrementDroppedMessages()
			failed = append(failed, c)
			continue
		}
		delivered++
	}
	d.metrics.RecordBroadcastLatency(time.Since(start))

	for _, c := range failed {
		d.evict(c)
	}
	return delivered
}

// SendTo 仅向单个连接投递，失败同样驱逐
func (d *Dispatcher) SendTo(conn Conn, msg []byte) bool {
	if conn.IsClosed() {
		return false
	}
	if err := conn.Send(msg); err != nil {
		d.log.Warn("deliver failed, evicting connection", zap.String("conn_id", conn.ID()), zap.Error(err))
		d.metrics.IncrementDroppedMessages()
		d.evict(conn)
		return false
	}
	return true
}

func (d *Dispatcher) evict(conn Conn) {
	roomKey, ok := d.reg.Unregister(conn)
	conn.Close()
	if !ok {
		return
	}
	d.metrics.IncrementEvictions()
	if d.onEvict != nil {
		d.onEvict(conn, roomKey)
	}
}
