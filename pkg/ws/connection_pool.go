package ws

import (
	"sort"
	"sync"
)

// connectionPool 在线客户端集合
// 名额在 HTTP 升级前预留，升级完成后由 add 占用，保证并发握手不会超过上限
type connectionPool struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	reserved int
	maxConns int
}

func newConnectionPool(maxConns int) *connectionPool {
	return &connectionPool{
		clients:  make(map[string]*Client),
		maxConns: maxConns,
	}
}

// reserve 预留一个名额
func (p *connectionPool) reserve() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.clients)+p.reserved >= p.maxConns {
		return ErrTooManyConnections
	}
	p.reserved++
	return nil
}

// release 归还未使用的预留名额
func (p *connectionPool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reserved > 0 {
		p.reserved--
	}
}

// add 用预留名额登记客户端；ID 冲突时名额同样归还
func (p *connectionPool) add(client *Client) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reserved > 0 {
		p.reserved--
	}
	if _, exists := p.clients[client.ID()]; exists {
		return ErrClientIDExists
	}
	p.clients[client.ID()] = client
	return nil
}

func (p *connectionPool) remove(clientID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.clients[clientID]; !ok {
		return false
	}
	delete(p.clients, clientID)
	return true
}

func (p *connectionPool) get(clientID string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.clients[clientID]
	return c, ok
}

// count 已登记的客户端数，不含预留
func (p *connectionPool) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// snapshot 按 ID 排序的客户端快照，ID 为 ULID 时即连接先后顺序
func (p *connectionPool) snapshot() []*Client {
	p.mu.RLock()
	out := make([]*Client, 0, len(p.clients))
	for _, c := range p.clients {
		out = append(out, c)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
