package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport records writes instead of touching a socket.
type fakeTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	closed   bool
	writeErr error
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeTransport) WriteControl(int, []byte, time.Time) error { return f.writeErr }

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testConn(bufSize int) *Conn {
	return newConn(&fakeTransport{}, bufSize, time.Second)
}

// drain returns every frame queued on c, decoded.
func drain(t *testing.T, c *Conn) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case raw := <-c.send:
			var m map[string]any
			require.NoError(t, json.Unmarshal(raw, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func userNames(t *testing.T, v any) []string {
	t.Helper()
	list, ok := v.([]any)
	require.True(t, ok, "users is not a list: %v", v)
	names := make([]string, 0, len(list))
	for _, u := range list {
		names = append(names, u.(map[string]any)["name"].(string))
	}
	return names
}

// requireSymmetric fails unless both registry indexes agree and no empty
// room is kept.
func requireSymmetric(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, room := range r.rooms {
		require.NotEmpty(t, room, "empty room %q kept", id)
		for c := range room {
			b, ok := r.conns[c]
			require.True(t, ok, "member of %q has no binding", id)
			require.Equal(t, id, b.RoomID)
		}
	}
	for c, b := range r.conns {
		_, ok := r.rooms[b.RoomID][c]
		require.True(t, ok, "binding to %q missing from room index", b.RoomID)
		_, ok = r.live[c]
		require.True(t, ok, "bound connection not live")
	}
}
