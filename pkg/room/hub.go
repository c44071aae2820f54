package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/bus"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/feed"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/store"
)

// session 连接在房间内的身份
type session struct {
	mu   sync.Mutex
	name string
}

func (s *session) swap(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.name
	s.name = name
	return prev
}

func (s *session) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Option Hub 选项
type Option func(*Hub)

// WithLogger 设置日志
func WithLogger(log logger.Logger) Option {
	return func(h *Hub) { h.log = log }
}

// WithFeed 设置变更推送
func WithFeed(pub feed.Publisher) Option {
	return func(h *Hub) { h.feed = pub }
}

// WithBus 设置跨实例总线
func WithBus(b bus.Bus) Option {
	return func(h *Hub) { h.bus = b }
}

// WithMetrics 设置监控
func WithMetrics(m Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithMiddleware 添加路由中间件
func WithMiddleware(mw ...MiddlewareFunc) Option {
	return func(h *Hub) { h.middleware = append(h.middleware, mw...) }
}

// Hub 房间生命周期：连接、收消息、断开
type Hub struct {
	registry   *Registry
	presence   *Presence
	cache      *UpdateCache
	dispatcher *Dispatcher
	router     *Router
	bridge     *Bridge

	feed       feed.Publisher
	bus        bus.Bus
	log        logger.Logger
	metrics    Metrics
	middleware []MiddlewareFunc

	sessions sync.Map // connID -> *session
	now      func() time.Time
}

// NewHub 创建 Hub
func NewHub(st store.DocumentStore, opts ...Option) *Hub {
	h := &Hub{now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Nop()
	}
	h.log = h.log.Named("room")
	if h.metrics == nil {
		h.metrics = NoopMetrics{}
	}

	h.registry = NewRegistry()
	h.presence = NewPresence(h.registry)
	h.cache = NewUpdateCache(h.registry)
	h.dispatcher = NewDispatcher(h.registry, h.log, h.metrics, h.announceDeparture)
	h.bridge = NewBridge(st, h.feed, h.log, h.metrics)

	h.router = NewRouter()
	h.router.Use(h.middleware...)
	_ = h.router.Register(KindJoin, h.handleJoin)
	_ = h.router.Register(KindLeave, h.handleLeave)
	_ = h.router.Register(KindDocumentUpdate, h.handleUpdate)
	_ = h.router.Register(KindRelay, h.handleRelay)
	h.router.Freeze()

	return h
}

// Registry 连接注册表
func (h *Hub) Registry() *Registry { return h.registry }

// Presence 在线用户
func (h *Hub) Presence() *Presence { return h.presence }

// Cache 更新缓存
func (h *Hub) Cache() *UpdateCache { return h.cache }

// Run 接收其它实例转发的消息，阻塞直到 ctx 结束
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}
	return h.bus.Subscribe(ctx, func(roomKey string, payload []byte) {
		h.dispatcher.Broadcast(roomKey, payload, nil)
	})
}

// Connect 登记连接并发送欢迎消息
func (h *Hub) Connect(conn Conn, roomKey string) error {
	// 先登记会话，注册后随时可能被驱逐
	h.sessions.Store(conn.ID(), &session{})
	if err := h.registry.Register(conn, roomKey); err != nil {
		h.sessions.Delete(conn.ID())
		return err
	}
	h.metrics.SetRoomCount(h.registry.RoomCount())

	h.log.Info("connection established", zap.String("room", roomKey), zap.String("conn_id", conn.ID()))
	h.dispatcher.SendTo(conn, connectedMessage(roomKey))
	return nil
}

// Receive 处理一条入站消息
func (h *Hub) Receive(ctx context.Context, conn Conn, payload []byte) {
	roomKey, ok := h.registry.RoomOf(conn)
	if !ok {
		h.log.WarnContext(ctx, "no room associated with connection, message dropped", zap.String("conn_id", conn.ID()))
		return
	}

	msg, err := Decode(payload)
	if err != nil {
		h.metrics.IncrementMessageErrors("malformed")
		h.log.DebugContext(ctx, "malformed message",
			zap.String("room", roomKey),
			zap.String("conn_id", conn.ID()),
			zap.Error(err),
		)
		h.dispatcher.SendTo(conn, errorMessage(errors.FromError(err).Message))
		return
	}
	h.metrics.IncrementMessageCount(msg.Kind.String())

	if err := h.router.Route(ctx, &Request{Conn: conn, Room: roomKey, Message: msg}); err != nil {
		h.metrics.IncrementMessageErrors(msg.Kind.String())
		h.log.ErrorContext(ctx, "handle message failed",
			zap.String("room", roomKey),
			zap.String("kind", msg.Kind.String()),
			zap.Error(err),
		)
		h.dispatcher.SendTo(conn, errorMessage("Error processing message: "+errors.FromError(err).Message))
	}
}

// Disconnect 注销连接并向剩余成员宣布离开
// 正常关闭与传输错误走同一路径
func (h *Hub) Disconnect(conn Conn, cause error) {
	roomKey, ok := h.registry.Unregister(conn)
	if !ok {
		h.sessions.Delete(conn.ID())
		return
	}
	fields := []zap.Field{zap.String("room", roomKey), zap.String("conn_id", conn.ID())}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	h.log.Info("connection closed", fields...)
	h.announceDeparture(conn, roomKey)
}

// announceDeparture 连接已从注册表移除后的清理与通知
func (h *Hub) announceDeparture(conn Conn, roomKey string) {
	h.metrics.SetRoomCount(h.registry.RoomCount())

	name := ""
	if v, ok := h.sessions.LoadAndDelete(conn.ID()); ok {
		name = v.(*session).get()
	}
	if name != "" {
		h.presence.Leave(roomKey, name)
	}
	if !h.registry.Exists(roomKey) {
		h.log.Info("room is empty, cleaned up", zap.String("room", roomKey))
		return
	}

	// 未 join 过的连接没有用户名，只刷新用户列表
	if name != "" {
		h.broadcast(context.Background(), roomKey, presenceMessage(TypeUserLeft, conn.ID(), name, roomKey, h.now()), nil)
	}
	h.broadcastUsers(context.Background(), roomKey)
}

func (h *Hub) handleJoin(ctx context.Context, req *Request) error {
	name := req.Message.Username
	prev := ""
	if v, ok := h.sessions.Load(req.Conn.ID()); ok {
		prev = v.(*session).swap(name)
	}
	if prev != "" {
		h.presence.Leave(req.Room, prev)
	}
	if !h.presence.Join(req.Room, name) {
		return errors.ErrRoomNotFound
	}
	h.log.InfoContext(ctx, "user joined", zap.String("room", req.Room), zap.String("username", name))

	// 改名时先宣布旧名离开
	if prev != "" && prev != name {
		h.broadcast(ctx, req.Room, presenceMessage(TypeUserLeft, req.Conn.ID(), prev, req.Room, h.now()), nil)
	}

	h.broadcast(ctx, req.Room, presenceMessage(TypeUserJoined, "", name, req.Room, h.now()), nil)
	h.broadcastUsers(ctx, req.Room)

	snapshot := h.cache.Snapshot(req.Room)
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !h.dispatcher.SendTo(req.Conn, documentUpdateMessage(id, snapshot[id], SystemAuthor)) {
			break
		}
	}
	return nil
}

func (h *Hub) handleLeave(ctx context.Context, req *Request) error {
	name := req.Message.Username
	if v, ok := h.sessions.Load(req.Conn.ID()); ok {
		s := v.(*session)
		if s.get() == name {
			s.swap("")
		}
	}
	h.presence.Leave(req.Room, name)
	h.log.InfoContext(ctx, "user left", zap.String("room", req.Room), zap.String("username", name))

	h.broadcast(ctx, req.Room, presenceMessage(TypeUserLeft, req.Conn.ID(), name, req.Room, h.now()), nil)
	h.broadcastUsers(ctx, req.Room)
	return nil
}

func (h *Hub) handleUpdate(ctx context.Context, req *Request) error {
	u := req.Message.Update
	if u.Author == "" {
		if v, ok := h.sessions.Load(req.Conn.ID()); ok {
			u.Author = v.(*session).get()
		}
	}

	doc := CachedDocument{
		Content:       u.Content,
		BinaryContent: u.BinaryContent,
		ContentType:   u.ContentType,
		UpdatedBy:     u.Author,
		UpdatedAt:     h.now(),
	}
	if !h.cache.Put(req.Room, u.DocumentID, doc) {
		h.log.DebugContext(ctx, "room gone, cache update dropped", zap.String("room", req.Room))
	}

	h.bridge.ApplyUpdate(ctx, req.Room, u)

	h.broadcast(ctx, req.Room, documentUpdateMessage(u.DocumentID, doc, u.Author), req.Conn)
	return nil
}

func (h *Hub) handleRelay(ctx context.Context, req *Request) error {
	h.broadcast(ctx, req.Room, req.Message.Raw, req.Conn)
	return nil
}

func (h *Hub) broadcastUsers(ctx context.Context, roomKey string) {
	h.broadcast(ctx, roomKey, usersListMessage(roomKey, h.presence.List(roomKey)), nil)
}

// broadcast 本地广播并转发给其它实例
func (h *Hub) broadcast(ctx context.Context, roomKey string, msg []byte, exclude Conn) int {
	n := h.dispatcher.Broadcast(roomKey, msg, exclude)
	if h.bus != nil {
		if err := h.bus.Publish(ctx, roomKey, msg); err != nil {
			h.log.WarnContext(ctx, "bus publish failed", zap.String("room", roomKey), zap.Error(err))
		}
	}
	return n
}

// RoomStats 房间统计
type RoomStats struct {
	Room      string   `json:"room"`
	Members   int      `json:"members"`
	Users     []string `json:"users"`
	Documents []string `json:"documents"`
}

// Stats 房间统计，房间不存在时返回 false
func (h *Hub) Stats(roomKey string) (RoomStats, bool) {
	if !h.registry.Exists(roomKey) {
		return RoomStats{}, false
	}
	return RoomStats{
		Room:      roomKey,
		Members:   len(h.registry.Members(roomKey)),
		Users:     h.presence.List(roomKey),
		Documents: h.cache.DocumentIDs(roomKey),
	}, true
}

// Shutdown 关闭所有连接并等待变更推送队列清空
func (h *Hub) Shutdown() {
	for _, roomKey := range h.registry.Rooms() {
		for _, c := range h.registry.Members(roomKey) {
			c.Close()
		}
	}
	h.bridge.Close()
}
