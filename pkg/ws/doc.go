// Package ws 基于 gorilla/websocket 的连接层。
//
// Manager 负责升级、连接数限制与优雅关闭；Client 为每个连接运行一个读循环和一个写循环，
// 读循环按到达顺序把消息交给 Handler，写循环消费有界发送队列并定时发送 ping。
// Client 实现 room.Conn：Send 从不阻塞，队列已满或连接已关闭时直接返回错误。
//
//	manager, err := ws.NewManager(handler,
//	    ws.WithMaxConnections(10000),
//	    ws.WithCheckOriginWhitelist([]string{"https://example.com"}),
//	)
//	...
//	err = manager.HandleUpgrade(w, r, ws.WithRoom(roomKey))
package ws
