package room

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/roomcast/pkg/feed"
	"github.com/tokmz/roomcast/pkg/store"
)

var errSendFailed = stderrors.New("send failed")

type fakeConn struct {
	id       string
	mu       sync.Mutex
	msgs     [][]byte
	closed   atomic.Bool
	failSend atomic.Bool
}

func newConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	if c.failSend.Load() {
		return errSendFailed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) IsClosed() bool { return c.closed.Load() }
func (c *fakeConn) Close()         { c.closed.Store(true) }

func (c *fakeConn) messages() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.msgs))
	for _, raw := range c.msgs {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			m = map[string]any{"raw": string(raw)}
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) ofType(typ string) []map[string]any {
	var out []map[string]any
	for _, m := range c.messages() {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

type updateCall struct {
	id  uuid.UUID
	req store.UpdateRequest
}

type fakeStore struct {
	mu    sync.Mutex
	calls []updateCall
	err   error
}

func (s *fakeStore) UpdateDocument(_ context.Context, id uuid.UUID, req store.UpdateRequest) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, updateCall{id: id, req: req})
	if s.err != nil {
		return nil, s.err
	}
	return &store.Document{ID: id, Content: req.Content, ContentBinary: req.BinaryContent, ContentType: req.ContentType}, nil
}

func (s *fakeStore) updates() []updateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]updateCall(nil), s.calls...)
}

type fakeFeed struct {
	mu     sync.Mutex
	events []feed.DocumentEvent
	err    error
}

func (f *fakeFeed) Publish(_ context.Context, ev feed.DocumentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) published() []feed.DocumentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feed.DocumentEvent(nil), f.events...)
}

// blockingFeed 在 release 关闭前阻塞 Publish
type blockingFeed struct {
	fakeFeed
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingFeed() *blockingFeed {
	return &blockingFeed{started: make(chan struct{}), release: make(chan struct{})}
}

func (f *blockingFeed) Publish(ctx context.Context, ev feed.DocumentEvent) error {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return f.fakeFeed.Publish(ctx, ev)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
