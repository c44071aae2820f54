package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	mu   sync.Mutex
	msgs []Envelope
}

func (r *received) handle(roomKey string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Envelope{Room: roomKey, Payload: payload})
}

func (r *received) snapshot() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.msgs...)
}

func TestLocalBrokerSkipsOrigin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewLocalBroker()
	a, b := broker.Join(), broker.Join()
	var gotA, gotB received
	go func() { _ = a.Subscribe(ctx, gotA.handle) }()
	go func() { _ = b.Subscribe(ctx, gotB.handle) }()
	require.Eventually(t, func() bool { return broker.subscribers() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Publish(ctx, "ABCD12", []byte(`{"type":"ping"}`)))

	require.Eventually(t, func() bool { return len(gotB.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "ABCD12", gotB.snapshot()[0].Room)
	assert.Equal(t, `{"type":"ping"}`, string(gotB.snapshot()[0].Payload))
	assert.Empty(t, gotA.snapshot())
}

func TestLocalSubscribeStopsOnCancel(t *testing.T) {
	broker := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- broker.Join().Subscribe(ctx, func(string, []byte) {}) }()
	require.Eventually(t, func() bool { return broker.subscribers() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return")
	}
	assert.Equal(t, 0, broker.subscribers())
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "kafka"}, nil)
	assert.Error(t, err)
}

func TestRedisBusRelaysBetweenInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newBus := func() *Redis {
		b, err := NewRedis(ctx, Config{Redis: RedisConfig{Addr: mr.Addr()}}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	}
	a, b := newBus(), newBus()

	var gotA, gotB received
	go func() { _ = a.Subscribe(ctx, gotA.handle) }()
	go func() { _ = b.Subscribe(ctx, gotB.handle) }()

	// 订阅在后台建立，重复发布直到对端收到
	require.Eventually(t, func() bool {
		require.NoError(t, a.Publish(ctx, "room-1", []byte("hello")))
		return len(gotB.snapshot()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "room-1", gotB.snapshot()[0].Room)
	assert.Equal(t, "hello", string(gotB.snapshot()[0].Payload))
	assert.Empty(t, gotA.snapshot())
}

func TestRedisChannelPrefix(t *testing.T) {
	b := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "", nil)
	defer b.Close()
	assert.Equal(t, "roomcast:room:ABCD12", b.channel("ABCD12"))
}

func TestNewRedisPingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedis(ctx, Config{Redis: RedisConfig{Addr: "127.0.0.1:1"}}, nil)
	assert.Error(t, err)
}
