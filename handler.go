package roomcast

import (
	"context"

	"github.com/tokmz/roomcast/pkg/room"
	"github.com/tokmz/roomcast/pkg/ws"
)

// roomHandler 将 ws 连接生命周期接入 room.Hub
type roomHandler struct {
	hub *room.Hub
}

// NewHandler 创建 ws.Handler
func NewHandler(hub *room.Hub) ws.Handler {
	return &roomHandler{hub: hub}
}

func (h *roomHandler) OnOpen(c *ws.Client) error {
	return h.hub.Connect(c, c.Room())
}

func (h *roomHandler) OnMessage(ctx context.Context, c *ws.Client, data []byte) {
	h.hub.Receive(ctx, c, data)
}

// OnClose 异常断开与正常关闭走同一路径
func (h *roomHandler) OnClose(c *ws.Client, err error) {
	h.hub.Disconnect(c, err)
}
