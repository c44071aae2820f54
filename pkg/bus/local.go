package bus

import (
	"context"
	"sync"
)

// LocalBroker 进程内总线，多个 Hub 通过各自的 Join 端点互相转发
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]*localSub
}

type localSub struct {
	ch chan Envelope
}

// NewLocalBroker 创建进程内总线
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]*localSub)}
}

// Join 创建一个新的实例端点
func (b *LocalBroker) Join() Bus {
	return &localBus{broker: b, origin: newOrigin()}
}

func (b *LocalBroker) publish(env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for origin, sub := range b.subs {
		if origin == env.Origin {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			// 订阅方积压时丢弃
		}
	}
}

type localBus struct {
	broker *LocalBroker
	origin string
}

func (l *localBus) Publish(_ context.Context, roomKey string, payload []byte) error {
	l.broker.publish(Envelope{Origin: l.origin, Room: roomKey, Payload: payload})
	return nil
}

func (l *localBus) Subscribe(ctx context.Context, fn Handler) error {
	sub := &localSub{ch: make(chan Envelope, 256)}
	l.broker.mu.Lock()
	l.broker.subs[l.origin] = sub
	l.broker.mu.Unlock()

	defer func() {
		l.broker.mu.Lock()
		delete(l.broker.subs, l.origin)
		l.broker.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-sub.ch:
			fn(env.Room, env.Payload)
		}
	}
}

func (l *localBus) Close() error { return nil }

func (b *LocalBroker) subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
