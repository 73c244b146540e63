// Package domain contains entity without logic, just meta-data
package domain

type (
	RoomID   string
	RoomName string
)

// Room is a voice channel as the social-network backend exposes it.
// Created and destroyed by the REST layer; the call core only needs the ID
// to open a signaling session.
type Room struct {
	ID           RoomID   `json:"id"`
	Name         RoomName `json:"name"`
	Participants int      `json:"participants"`
}
