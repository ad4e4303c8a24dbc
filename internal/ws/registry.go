package ws

import (
	"sort"
	"sync"
)

// Binding is what the Registry knows about a joined connection.
type Binding struct {
	User   User
	RoomID string
	seq    uint64
}

// Member is one entry of a room snapshot.
type Member struct {
	Conn *Conn
	User User
}

// RoomView is a read-only copy of one room for status endpoints.
type RoomView struct {
	RoomID string
	Users  []User
}

// Stats are the registry counters reported by /health.
type Stats struct {
	Rooms       int
	Connections int
}

// Registry is the single source of truth for room membership. Both indexes
// live under one mutex so rooms[id] contains c iff conns[c].RoomID == id.
type Registry struct {
	mu    sync.RWMutex
	live  map[*Conn]struct{}
	conns map[*Conn]*Binding
	rooms map[string]map[*Conn]struct{}
	seq   uint64
}

func NewRegistry() *Registry {
	return &Registry{
		live:  make(map[*Conn]struct{}),
		conns: make(map[*Conn]*Binding),
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

// Add tracks a freshly accepted connection that has not joined a room yet.
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[c]; !ok {
		r.live[c] = struct{}{}
		connectionsGauge.Inc()
	}
}

// Bind records c as user in roomID, leaving any previous room. It returns the
// previous binding (nil if there was none) and the members of roomID after
// the update. Rebinding to the same room keeps the join position and only
// refreshes the user. A closed connection is never bound.
func (r *Registry) Bind(c *Conn, user User, roomID string) (*Binding, []Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.closed() {
		return nil, nil
	}
	if _, ok := r.live[c]; !ok {
		r.live[c] = struct{}{}
		connectionsGauge.Inc()
	}

	var prev *Binding
	if b, ok := r.conns[c]; ok {
		cp := *b
		prev = &cp
	}

	if prev != nil && prev.RoomID == roomID {
		r.conns[c].User = user
		return prev, r.membersLocked(roomID)
	}

	if prev != nil {
		r.removeFromRoomLocked(c, prev.RoomID)
	}

	r.seq++
	r.conns[c] = &Binding{User: user, RoomID: roomID, seq: r.seq}
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[*Conn]struct{})
		r.rooms[roomID] = room
		roomsGauge.Inc()
	}
	room[c] = struct{}{}

	return prev, r.membersLocked(roomID)
}

// Unbind forgets c entirely and returns its last binding, or nil if c never
// joined. Calling it again is a no-op.
func (r *Registry) Unbind(c *Conn) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[c]; ok {
		delete(r.live, c)
		connectionsGauge.Dec()
	}

	b, ok := r.conns[c]
	if !ok {
		return nil
	}
	prev := *b
	r.removeFromRoomLocked(c, prev.RoomID)
	delete(r.conns, c)
	return &prev
}

// Binding returns the current binding of c.
func (r *Registry) Binding(c *Conn) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[c]
	if !ok {
		return Binding{}, false
	}
	return *b, true
}

// MembersOf returns the members of roomID in join order; empty if the room
// does not exist.
func (r *Registry) MembersOf(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(roomID)
}

// Connections returns every live connection, joined or not.
func (r *Registry) Connections() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.live))
	for c := range r.live {
		out = append(out, c)
	}
	return out
}

// Rooms returns every non-empty room sorted by id.
func (r *Registry) Rooms() []RoomView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoomView, 0, len(r.rooms))
	for id := range r.rooms {
		members := r.membersLocked(id)
		users := make([]User, len(members))
		for i, m := range members {
			users[i] = m.User
		}
		out = append(out, RoomView{RoomID: id, Users: users})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Rooms: len(r.rooms), Connections: len(r.live)}
}

func (r *Registry) removeFromRoomLocked(c *Conn, roomID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(r.rooms, roomID)
		roomsGauge.Dec()
	}
}

func (r *Registry) membersLocked(roomID string) []Member {
	room := r.rooms[roomID]
	out := make([]Member, 0, len(room))
	seqs := make(map[*Conn]uint64, len(room))
	for c := range room {
		b := r.conns[c]
		out = append(out, Member{Conn: c, User: b.User})
		seqs[c] = b.seq
	}
	sort.Slice(out, func(i, j int) bool { return seqs[out[i].Conn] < seqs[out[j].Conn] })
	return out
}
