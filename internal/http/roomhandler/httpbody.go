package roomhandler

import "roomrelay/internal/ws"

type HealthResponse struct {
	Status      string `json:"status"      example:"ok"`
	Rooms       int    `json:"rooms"       example:"2"`
	Connections int    `json:"connections" example:"5"`
	Timestamp   string `json:"timestamp"   example:"2025-07-27T16:05:05.000Z"`
} // @name HealthResponse

type RoomResponse struct {
	RoomID    string    `json:"roomId"    example:"figma_file_key"`
	UserCount int       `json:"userCount" example:"2"`
	Users     []ws.User `json:"users"`
} // @name RoomResponse
