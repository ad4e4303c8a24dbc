package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Hub implements the room protocol on top of the Registry and fans
// messages out to room members.
type Hub struct {
	reg *Registry
	now func() time.Time
}

func NewHub(reg *Registry) *Hub { return &Hub{reg: reg, now: time.Now} }

// Registry exposes the hub's membership state to read-only views.
func (h *Hub) Registry() *Registry { return h.reg }

// Register wires the inbound protocol onto router.
func (h *Hub) Register(router *Router) {
	Register(router, TypeJoinRoom, func(_ context.Context, c *Conn, req JoinRoomRequest) error {
		h.Join(c, req.RoomID, *req.User)
		return nil
	})
	Register(router, TypeMessage, func(_ context.Context, c *Conn, req ChatRequest) error {
		h.Message(c, req.Content)
		return nil
	})
	Register(router, TypeTyping, func(_ context.Context, c *Conn, _ SignalRequest) error {
		h.Signal(c, TypeTyping)
		return nil
	})
	Register(router, TypeStopTyping, func(_ context.Context, c *Conn, _ SignalRequest) error {
		h.Signal(c, TypeStopTyping)
		return nil
	})
}

// Join moves c into roomID, leaving its previous room if any. Peers of the
// new room hear user-joined before c receives its room-users snapshot.
func (h *Hub) Join(c *Conn, roomID string, user User) {
	prev, members := h.reg.Bind(c, user, roomID)
	if members == nil {
		return // closed while the join was in flight
	}

	if prev != nil && prev.RoomID != roomID {
		h.notifyLeft(prev)
	}

	zap.L().Info("ws.join",
		zap.String("conn", c.ID()),
		zap.String("room", roomID),
		zap.String("user", user.Name),
	)

	h.broadcast(members, PresenceMessage{Type: TypeUserJoined, User: user, RoomID: roomID}, c)

	users := make([]User, len(members))
	for i, m := range members {
		users[i] = m.User
	}
	h.send(c, RoomUsersMessage{Type: TypeRoomUsers, Users: users, RoomID: roomID})
}

// Message echoes content to every member of the sender's room, sender
// included. A sender that has not joined is ignored.
func (h *Hub) Message(c *Conn, content string) {
	b, ok := h.reg.Binding(c)
	if !ok {
		zap.L().Debug("ws.message_without_room", zap.String("conn", c.ID()))
		return
	}
	h.broadcast(h.reg.MembersOf(b.RoomID), ChatMessage{
		Type:      TypeMessage,
		Content:   content,
		User:      b.User,
		Timestamp: FormatTimestamp(h.now()),
		RoomID:    b.RoomID,
	}, nil)
}

// Signal relays typing or stop-typing to the sender's peers.
func (h *Hub) Signal(c *Conn, msgType string) {
	b, ok := h.reg.Binding(c)
	if !ok {
		zap.L().Debug("ws.signal_without_room", zap.String("conn", c.ID()), zap.String("type", msgType))
		return
	}
	h.broadcast(h.reg.MembersOf(b.RoomID), PresenceMessage{Type: msgType, User: b.User, RoomID: b.RoomID}, c)
}

// Disconnect closes c and removes it from the registry, telling its former
// room. Safe to call more than once.
func (h *Hub) Disconnect(c *Conn) {
	c.close()
	prev := h.reg.Unbind(c)
	if prev == nil {
		return
	}
	zap.L().Info("ws.leave",
		zap.String("conn", c.ID()),
		zap.String("room", prev.RoomID),
		zap.String("user", prev.User.Name),
	)
	h.notifyLeft(prev)
}

// SendError reports a protocol problem to c alone.
func (h *Hub) SendError(c *Conn, message string) {
	h.send(c, ErrorMessage{Type: TypeError, Message: message})
}

func (h *Hub) notifyLeft(prev *Binding) {
	h.broadcast(h.reg.MembersOf(prev.RoomID),
		PresenceMessage{Type: TypeUserLeft, User: prev.User, RoomID: prev.RoomID}, nil)
}

// broadcast marshals msg once and queues it for every member except
// exclude. Members that are not ready are skipped.
func (h *Hub) broadcast(members []Member, msg any, exclude *Conn) {
	if len(members) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("ws.marshal", zap.Error(err))
		return
	}
	for _, m := range members {
		if m.Conn == exclude {
			continue
		}
		if !m.Conn.enqueue(data) {
			broadcastSkipped.Inc()
		}
	}
}

func (h *Hub) send(c *Conn, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("ws.marshal", zap.Error(err))
		return
	}
	if !c.enqueue(data) {
		broadcastSkipped.Inc()
	}
}
