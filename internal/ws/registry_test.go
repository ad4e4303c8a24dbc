package ws

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BindAndMembers(t *testing.T) {
	reg := NewRegistry()
	a, b := testConn(1), testConn(1)
	reg.Add(a)
	reg.Add(b)

	prev, members := reg.Bind(a, User{Name: "Ann"}, "X")
	assert.Nil(t, prev)
	require.Len(t, members, 1)
	assert.Equal(t, "Ann", members[0].User.Name)

	_, members = reg.Bind(b, User{Name: "Bo"}, "X")
	require.Len(t, members, 2)
	assert.Equal(t, "Ann", members[0].User.Name)
	assert.Equal(t, "Bo", members[1].User.Name)

	assert.Empty(t, reg.MembersOf("nope"))
	assert.Equal(t, Stats{Rooms: 1, Connections: 2}, reg.Stats())
	requireSymmetric(t, reg)
}

func TestRegistry_SwitchRoomDeletesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	c := testConn(1)

	reg.Bind(c, User{Name: "Ann"}, "A")
	prev, members := reg.Bind(c, User{Name: "Ann"}, "B")

	require.NotNil(t, prev)
	assert.Equal(t, "A", prev.RoomID)
	require.Len(t, members, 1)
	assert.Empty(t, reg.MembersOf("A"))
	assert.Len(t, reg.MembersOf("B"), 1)

	rooms := reg.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "B", rooms[0].RoomID)
	requireSymmetric(t, reg)
}

func TestRegistry_RebindSameRoomUpdatesUser(t *testing.T) {
	reg := NewRegistry()
	a, b := testConn(1), testConn(1)
	reg.Bind(a, User{Name: "Ann"}, "X")
	reg.Bind(b, User{Name: "Bo"}, "X")

	prev, members := reg.Bind(a, User{Name: "Annie"}, "X")
	require.NotNil(t, prev)
	assert.Equal(t, "Ann", prev.User.Name)

	// join position is kept
	require.Len(t, members, 2)
	assert.Equal(t, "Annie", members[0].User.Name)
	assert.Equal(t, "Bo", members[1].User.Name)
	requireSymmetric(t, reg)
}

func TestRegistry_UnbindIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	c := testConn(1)
	reg.Add(c)
	reg.Bind(c, User{Name: "Ann"}, "X")

	prev := reg.Unbind(c)
	require.NotNil(t, prev)
	assert.Equal(t, "X", prev.RoomID)
	assert.Equal(t, "Ann", prev.User.Name)

	assert.Nil(t, reg.Unbind(c))
	assert.Equal(t, Stats{}, reg.Stats())
	assert.Empty(t, reg.Rooms())
}

func TestRegistry_UnbindNeverJoined(t *testing.T) {
	reg := NewRegistry()
	c := testConn(1)
	reg.Add(c)

	assert.Nil(t, reg.Unbind(c))
	assert.Empty(t, reg.Connections())
}

func TestRegistry_ClosedConnIsNotBound(t *testing.T) {
	reg := NewRegistry()
	c := testConn(1)
	c.close()

	prev, members := reg.Bind(c, User{Name: "Ann"}, "X")
	assert.Nil(t, prev)
	assert.Nil(t, members)
	assert.Empty(t, reg.Rooms())
	_, ok := reg.Binding(c)
	assert.False(t, ok)
}

func TestRegistry_RoomsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		reg.Bind(testConn(1), User{Name: id + "-user"}, id)
	}

	rooms := reg.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, "alpha", rooms[0].RoomID)
	assert.Equal(t, "mid", rooms[1].RoomID)
	assert.Equal(t, "zeta", rooms[2].RoomID)
	assert.Equal(t, []User{{Name: "alpha-user"}}, rooms[0].Users)
}

func TestRegistry_ConcurrentJoinLeaveStaysSymmetric(t *testing.T) {
	reg := NewRegistry()
	roomIDs := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			c := testConn(1)
			reg.Add(c)
			for j := 0; j < 200; j++ {
				switch rnd.Intn(3) {
				case 0, 1:
					reg.Bind(c, User{Name: "u"}, roomIDs[rnd.Intn(len(roomIDs))])
				default:
					reg.MembersOf(roomIDs[rnd.Intn(len(roomIDs))])
				}
			}
			if rnd.Intn(2) == 0 {
				reg.Unbind(c)
			}
		}(int64(i))
	}
	wg.Wait()

	requireSymmetric(t, reg)
	total := 0
	for _, r := range reg.Rooms() {
		total += len(r.Users)
	}
	reg.mu.RLock()
	assert.Equal(t, len(reg.conns), total)
	reg.mu.RUnlock()
}
