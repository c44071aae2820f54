// Package room 房间广播核心：连接注册、在线状态、更新缓存、广播与消息路由
package room

// Conn 房间内的一条双工连接
// Send 必须是非阻塞的：无法投递时返回错误，由调用方决定是否驱逐
type Conn interface {
	ID() string
	Send(msg []byte) error
	IsClosed() bool
	Close()
}
