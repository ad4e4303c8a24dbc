package ws

import (
	"encoding/json"
	"time"
)

// Inbound message types.
const (
	TypeJoinRoom   = "join-room"
	TypeMessage    = "message"
	TypeTyping     = "typing"
	TypeStopTyping = "stop-typing"
)

// Outbound-only message types.
const (
	TypeRoomUsers  = "room-users"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypeError      = "error"
)

// timestampLayout matches JavaScript's Date.prototype.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the discriminator every inbound frame is probed for. Handlers
// decode the full frame into their own request type.
type Envelope struct {
	Type string `json:"type"`
}

// ──────────────────────────────── User ───────────────────────────────────────

// User is the descriptor a client binds at join time. Any field besides
// "name" is kept as-is and echoed back to peers.
type User struct {
	Name string         `json:"name" validate:"required"`
	Meta map[string]any `json:"-"`
}

func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Meta)+1)
	for k, v := range u.Meta {
		out[k] = v
	}
	out["name"] = u.Name
	return json.Marshal(out)
}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	name, _ := raw["name"].(string)
	delete(raw, "name")
	u.Name = name
	u.Meta = nil
	if len(raw) > 0 {
		u.Meta = raw
	}
	return nil
}

// ──────────────────────────── Inbound requests ───────────────────────────────

type JoinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
	User   *User  `json:"user"   validate:"required"`
}

type ChatRequest struct {
	Content string `json:"content" validate:"required"`
}

// SignalRequest carries typing and stop-typing; neither has a body.
type SignalRequest struct{}

// ──────────────────────────── Outbound messages ──────────────────────────────

type RoomUsersMessage struct {
	Type   string `json:"type"`
	Users  []User `json:"users"`
	RoomID string `json:"roomId"`
}

// PresenceMessage is used for user-joined, user-left, typing and stop-typing.
type PresenceMessage struct {
	Type   string `json:"type"`
	User   User   `json:"user"`
	RoomID string `json:"roomId"`
}

type ChatMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	User      User   `json:"user"`
	Timestamp string `json:"timestamp"`
	RoomID    string `json:"roomId"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// FormatTimestamp renders t as ISO-8601 UTC with milliseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
