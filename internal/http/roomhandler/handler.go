package roomhandler

import (
	"net/http"
	"time"

	"roomrelay/internal/ws"

	"github.com/gin-gonic/gin"
)

// RoomSource is the read side of the room registry.
type RoomSource interface {
	Stats() ws.Stats
	Rooms() []ws.RoomView
}

// Handler serves read-only views over the registry; it never mutates it.
type Handler struct {
	reg RoomSource
	now func() time.Time
}

func New(reg RoomSource) *Handler { return &Handler{reg: reg, now: time.Now} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.health)
	r.GET("/api/rooms", h.list)
}

// @Summary		Relay health
// @Description	Reports liveness plus current room and connection counts.
// @Tags			Status
// @Success		200	{object}	HealthResponse
// @Router			/health [get]
func (h *Handler) health(c *gin.Context) {
	st := h.reg.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Rooms:       st.Rooms,
		Connections: st.Connections,
		Timestamp:   ws.FormatTimestamp(h.now()),
	})
}

// @Summary		List rooms
// @Description	Lists every active room with the users currently in it, sorted by room id.
// @Tags			Rooms
// @Success		200	{array}	RoomResponse
// @Router			/api/rooms [get]
func (h *Handler) list(c *gin.Context) {
	rooms := h.reg.Rooms()
	out := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomResponse{RoomID: r.RoomID, UserCount: len(r.Users), Users: r.Users})
	}
	c.JSON(http.StatusOK, out)
}
