package room

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/roomcast/pkg/errors"
)

func ids(conns []Conn) []string {
	out := make([]string, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.ID())
	}
	return out
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	a, b := newConn("a"), newConn("b")

	require.NoError(t, r.Register(a, "R1"))
	require.NoError(t, r.Register(b, "R1"))
	require.NoError(t, r.Register(a, "R1"))

	assert.Equal(t, []string{"a", "b"}, ids(r.Members("R1")))
	assert.Equal(t, 2, r.ConnCount())
	assert.Equal(t, 1, r.RoomCount())

	key, ok := r.RoomOf(a)
	assert.True(t, ok)
	assert.Equal(t, "R1", key)
}

func TestRegistryRegisterEmptyKey(t *testing.T) {
	r := NewRegistry()
	err := r.Register(newConn("a"), "")
	assert.True(t, errors.Is(err, errors.ErrInvalidRoomKey))
	assert.Equal(t, 0, r.RoomCount())
}

func TestRegistryRegisterMovesConnection(t *testing.T) {
	r := NewRegistry()
	a := newConn("a")
	require.NoError(t, r.Register(a, "R1"))
	require.NoError(t, r.Register(a, "R2"))

	assert.False(t, r.Exists("R1"))
	assert.Equal(t, []string{"a"}, ids(r.Members("R2")))
	assert.Equal(t, 1, r.ConnCount())
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	a, b := newConn("a"), newConn("b")
	require.NoError(t, r.Register(a, "R1"))
	require.NoError(t, r.Register(b, "R1"))

	key, ok := r.Unregister(a)
	assert.True(t, ok)
	assert.Equal(t, "R1", key)
	assert.True(t, r.Exists("R1"))

	_, ok = r.Unregister(a)
	assert.False(t, ok)

	_, ok = r.Unregister(b)
	assert.True(t, ok)
	assert.False(t, r.Exists("R1"))
	assert.Empty(t, r.Members("R1"))
	assert.Equal(t, 0, r.ConnCount())
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.RoomOf(newConn("x"))
	assert.False(t, ok)
	_, ok = r.Unregister(newConn("x"))
	assert.False(t, ok)
	assert.Nil(t, r.Members("missing"))
}

func TestRegistryRoomPurgesState(t *testing.T) {
	r := NewRegistry()
	p, c := NewPresence(r), NewUpdateCache(r)
	a := newConn("a")
	require.NoError(t, r.Register(a, "R1"))
	require.True(t, p.Join("R1", "alice"))
	content := "hello"
	require.True(t, c.Put("R1", "doc-1", CachedDocument{Content: &content}))

	r.Unregister(a)
	require.NoError(t, r.Register(newConn("b"), "R1"))

	assert.Empty(t, p.List("R1"))
	assert.Empty(t, c.Snapshot("R1"))
}

// 任意登记/注销序列后：房间存在当且仅当成员非空
func TestRegistryRoomExistsIffNonEmpty(t *testing.T) {
	r := NewRegistry()
	rooms := []string{"R1", "R2", "R3"}
	conns := make([]*fakeConn, 12)
	for i := range conns {
		conns[i] = newConn(fmt.Sprintf("c%d", i))
	}
	rng := rand.New(rand.NewSource(42))

	for step := 0; step < 500; step++ {
		c := conns[rng.Intn(len(conns))]
		if rng.Intn(2) == 0 {
			require.NoError(t, r.Register(c, rooms[rng.Intn(len(rooms))]))
		} else {
			r.Unregister(c)
		}

		total := 0
		for _, key := range rooms {
			n := len(r.Members(key))
			total += n
			assert.Equal(t, n > 0, r.Exists(key), "step %d room %s", step, key)
		}
		assert.Equal(t, total, r.ConnCount())
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newConn(fmt.Sprintf("c%d", i))
			key := fmt.Sprintf("R%d", i%5)
			for j := 0; j < 100; j++ {
				_ = r.Register(c, key)
				_ = r.Members(key)
				r.Unregister(c)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.RoomCount())
	assert.Equal(t, 0, r.ConnCount())
}

func TestRegistryRooms(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newConn("a"), "b-room"))
	require.NoError(t, r.Register(newConn("b"), "a-room"))
	assert.Equal(t, []string{"a-room", "b-room"}, r.Rooms())
}
