package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct {
	mu      sync.Mutex
	opened  []string
	closed  []string
	openErr error
}

func (h *echoHandler) OnOpen(c *Client) error {
	if h.openErr != nil {
		return h.openErr
	}
	h.mu.Lock()
	h.opened = append(h.opened, c.Room())
	h.mu.Unlock()
	return c.Send([]byte("welcome " + c.Room()))
}

func (h *echoHandler) OnMessage(_ context.Context, c *Client, data []byte) {
	_ = c.Send(data)
}

func (h *echoHandler) OnClose(c *Client, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, c.ID())
}

func (h *echoHandler) closedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.closed)
}

func newServer(t *testing.T, h Handler, opts ...Option) (*Manager, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithAllowAllOrigins()}, opts...)
	m, err := NewManager(h, opts...)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = m.HandleUpgrade(w, r, WithRoom(strings.TrimPrefix(r.URL.Path, "/")))
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
		srv.Close()
	})
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, nil)
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestClientEchoInOrder(t *testing.T) {
	h := &echoHandler{}
	m, srv := newServer(t, h)

	conn, _, err := dial(t, srv, "/ABCD12")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "welcome ABCD12", readText(t, conn))
	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}
	assert.Equal(t, "one", readText(t, conn))
	assert.Equal(t, "two", readText(t, conn))
	assert.Equal(t, "three", readText(t, conn))
	assert.Equal(t, 1, m.GetClientCount())
}

func TestClientCloseInvokesOnClose(t *testing.T) {
	h := &echoHandler{}
	m, srv := newServer(t, h)

	conn, _, err := dial(t, srv, "/R1")
	require.NoError(t, err)
	readText(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return h.closedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.GetClientCount())
}

func TestServerSideCloseDisconnectsPeer(t *testing.T) {
	h := &echoHandler{}
	m, srv := newServer(t, h)

	conn, _, err := dial(t, srv, "/R1")
	require.NoError(t, err)
	defer conn.Close()
	readText(t, conn)

	clients := m.pool.snapshot()
	require.Len(t, clients, 1)
	client := clients[0]
	client.Close()
	assert.ErrorIs(t, client.Send([]byte("late")), ErrConnectionClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return h.closedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestMaxConnections(t *testing.T) {
	h := &echoHandler{}
	_, srv := newServer(t, h, WithMaxConnections(1))

	first, _, err := dial(t, srv, "/R1")
	require.NoError(t, err)
	defer first.Close()
	readText(t, first)

	_, resp, err := dial(t, srv, "/R1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOpenRejected(t *testing.T) {
	h := &echoHandler{openErr: assert.AnError}
	m, srv := newServer(t, h)

	conn, _, err := dial(t, srv, "/R1")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr))
	assert.Equal(t, 0, m.GetClientCount())
	assert.Equal(t, 0, h.closedCount())
}

func TestOriginWhitelist(t *testing.T) {
	h := &echoHandler{}
	_, srv := newServer(t, h, WithCheckOriginWhitelist([]string{"https://allowed.example"}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/R1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://allowed.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestSendQueueFull(t *testing.T) {
	m, err := NewManager(&echoHandler{}, WithMessageQueueSize(1))
	require.NoError(t, err)
	c := NewClient(nil, m, WithClientID("fixed"))
	assert.Equal(t, "fixed", c.ID())

	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrChannelFull)

	c.closed.Store(true)
	assert.ErrorIs(t, c.Send([]byte("c")), ErrConnectionClosed)
	assert.True(t, c.IsClosed())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		ok   bool
	}{
		{"default", func(*Config) {}, true},
		{"read deadline disabled", WithHeartbeatTimeout(0), true},
		{"read deadline enabled", WithHeartbeatTimeout(time.Minute), true},
		{"timeout below interval", WithHeartbeatTimeout(time.Second), false},
		{"negative timeout", WithHeartbeatTimeout(-time.Second), false},
		{"zero connections", WithMaxConnections(0), false},
		{"zero queue", WithMessageQueueSize(0), false},
		{"zero write wait", WithWriteWait(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.opt(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestNewManagerRequiresHandler(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)
}

func TestDefaultCheckOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
	assert.True(t, defaultCheckOrigin(r))

	r.Header.Set("Origin", "http://example.com")
	assert.True(t, defaultCheckOrigin(r))

	r.Header.Set("Origin", "http://other.com")
	assert.False(t, defaultCheckOrigin(r))
}

func TestConnectionPoolReservation(t *testing.T) {
	p := newConnectionPool(2)

	require.NoError(t, p.reserve())
	require.NoError(t, p.reserve())
	assert.ErrorIs(t, p.reserve(), ErrTooManyConnections)

	// 升级失败归还名额
	p.release()
	require.NoError(t, p.reserve())
	assert.Zero(t, p.count())

	a := &Client{id: "01A"}
	b := &Client{id: "01B"}
	require.NoError(t, p.add(b))
	require.NoError(t, p.add(a))
	assert.Equal(t, 2, p.count())
	assert.ErrorIs(t, p.reserve(), ErrTooManyConnections)

	snap := p.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "01A", snap[0].ID())

	got, ok := p.get("01B")
	require.True(t, ok)
	assert.Same(t, b, got)

	assert.True(t, p.remove("01A"))
	assert.False(t, p.remove("01A"))
	require.NoError(t, p.reserve())
}

func TestConnectionPoolDuplicateID(t *testing.T) {
	p := newConnectionPool(4)
	require.NoError(t, p.reserve())
	require.NoError(t, p.add(&Client{id: "x"}))
	require.NoError(t, p.reserve())
	assert.ErrorIs(t, p.add(&Client{id: "x"}), ErrClientIDExists)

	// 冲突时名额已归还
	require.NoError(t, p.reserve())
	require.NoError(t, p.reserve())
	require.NoError(t, p.reserve())
	assert.ErrorIs(t, p.reserve(), ErrTooManyConnections)
}
