package roomcast

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/ws"
)

// roomKeyPattern 合法房间标识
var roomKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRoomKey 校验房间标识
func ValidRoomKey(key string) bool {
	return roomKeyPattern.MatchString(key)
}

// registerRoutes 注册路由
func (e *Engine) registerRoutes() {
	e.engine.GET("/healthz", e.healthz)
	e.engine.GET("/ws/room/:roomKey", e.upgrade)
	e.engine.GET("/rooms/:roomKey", e.roomStats)
	if e.metrics != nil {
		e.engine.GET("/metrics", gin.WrapH(e.metrics.Handler()))
	}
}

// healthz 存活检查
func (e *Engine) healthz(c *gin.Context) {
	reg := e.hub.Registry()
	c.JSON(http.StatusOK, Success(gin.H{
		"status":      "ok",
		"rooms":       reg.RoomCount(),
		"connections": reg.ConnCount(),
	}))
}

// upgrade 校验房间标识后升级为 websocket
func (e *Engine) upgrade(c *gin.Context) {
	key := c.Param("roomKey")
	if !ValidRoomKey(key) {
		abortWithError(c, errors.ErrInvalidRoomKey)
		return
	}

	// 升级失败时 HandleUpgrade 已写入响应
	if err := e.manager.HandleUpgrade(c.Writer, c.Request, ws.WithRoom(key)); err != nil {
		e.log.DebugContext(c.Request.Context(), "upgrade rejected",
			zap.String("room", key), zap.Error(err))
	}
}

// roomStats 房间只读统计
func (e *Engine) roomStats(c *gin.Context) {
	key := c.Param("roomKey")
	if !ValidRoomKey(key) {
		abortWithError(c, errors.ErrInvalidRoomKey)
		return
	}
	stats, ok := e.hub.Stats(key)
	if !ok {
		abortWithError(c, errors.ErrRoomNotFound)
		return
	}
	c.JSON(http.StatusOK, Success(stats))
}
