package domain

// RoomID names a logical broadcast channel. Rooms exist while they have members.
type RoomID string

type RoomInfo struct {
	ID        RoomID `json:"id"`
	Occupants int    `json:"occupants"`
}
