package room

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tokmz/roomcast/pkg/errors"
)

const shardCount = 64

// CachedDocument 房间内某文档最近一次内容
type CachedDocument struct {
	Content       *string
	BinaryContent []byte
	ContentType   string
	UpdatedBy     string
	UpdatedAt     time.Time
}

// roomState 房间状态；在线用户与更新缓存随房间一起清除
type roomState struct {
	members []Conn
	users   []string
	docs    map[string]CachedDocument
}

func (s *roomState) indexOf(id string) int {
	for i, c := range s.members {
		if c.ID() == id {
			return i
		}
	}
	return -1
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
}

// Registry 连接注册表，按房间号分片
type Registry struct {
	shards    [shardCount]*shard
	conns     sync.Map // connID -> roomKey
	connCount atomic.Int64
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[string]*roomState)}
	}
	return r
}

func (r *Registry) shardFor(roomKey string) *shard {
	return r.shards[xxhash.Sum64String(roomKey)%shardCount]
}

// Register 将连接登记到房间
// 同一连接重复登记到同一房间无副作用；登记到新房间时先离开旧房间
func (r *Registry) Register(conn Conn, roomKey string) error {
	if roomKey == "" {
		return errors.ErrInvalidRoomKey
	}

	id := conn.ID()
	if prev, ok := r.conns.Load(id); ok {
		if prev.(string) == roomKey {
			return nil
		}
		r.Unregister(conn)
	}

	sh := r.shardFor(roomKey)
	sh.mu.Lock()
	state, ok := sh.rooms[roomKey]
	if !ok {
		state = &roomState{docs: make(map[string]CachedDocument)}
		sh.rooms[roomKey] = state
	}
	if state.indexOf(id) < 0 {
		state.members = append(state.members, conn)
		r.connCount.Add(1)
	}
	r.conns.Store(id, roomKey)
	sh.mu.Unlock()
	return nil
}

// Unregister 注销连接，返回其所在房间
// 房间因此变空时整体删除（包括在线用户与更新缓存）
func (r *Registry) Unregister(conn Conn) (string, bool) {
	v, ok := r.conns.LoadAndDelete(conn.ID())
	if !ok {
		return "", false
	}
	roomKey := v.(string)

	sh := r.shardFor(roomKey)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	state, ok := sh.rooms[roomKey]
	if !ok {
		return roomKey, true
	}
	if i := state.indexOf(conn.ID()); i >= 0 {
		state.members = append(state.members[:i], state.members[i+1:]...)
		r.connCount.Add(-1)
	}
	if len(state.members) == 0 {
		delete(sh.rooms, roomKey)
	}
	return roomKey, true
}

// RoomOf 查询连接所在房间
func (r *Registry) RoomOf(conn Conn) (string, bool) {
	v, ok := r.conns.Load(conn.ID())
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Members 房间成员快照（按登记顺序）
func (r *Registry) Members(roomKey string) []Conn {
	var members []Conn
	r.view(roomKey, func(s *roomState) {
		members = make([]Conn, len(s.members))
		copy(members, s.members)
	})
	return members
}

// Exists 房间是否存在
func (r *Registry) Exists(roomKey string) bool {
	return r.view(roomKey, func(*roomState) {})
}

// RoomCount 当前房间数
func (r *Registry) RoomCount() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}

// ConnCount 当前登记的连接数
func (r *Registry) ConnCount() int {
	return int(r.connCount.Load())
}

// Rooms 所有房间号（已排序）
func (r *Registry) Rooms() []string {
	keys := make([]string, 0, 16)
	for _, sh := range r.shards {
		sh.mu.RLock()
		for k := range sh.rooms {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// view 在读锁下访问房间状态，房间不存在时返回 false
func (r *Registry) view(roomKey string, fn func(*roomState)) bool {
	sh := r.shardFor(roomKey)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	state, ok := sh.rooms[roomKey]
	if !ok {
		return false
	}
	fn(state)
	return true
}

// update 在写锁下修改房间状态，房间不存在时返回 false
func (r *Registry) update(roomKey string, fn func(*roomState)) bool {
	sh := r.shardFor(roomKey)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	state, ok := sh.rooms[roomKey]
	if !ok {
		return false
	}
	fn(state)
	return true
}
