package domain

import "encoding/json"

// Event names on the realtime surface.
const (
	EventJoinRoom  = "joinRoom"
	EventLeaveRoom = "leaveRoom"
	EventPing      = "ping"

	EventCourseMoved   = "courseMoved"
	EventCourseUpdated = "courseUpdated"
	EventCourseAdded   = "courseAdded"
	EventCourseDeleted = "courseDeleted"

	EventRoomJoined = "roomJoined"
	EventRoomLeft   = "roomLeft"
	EventUserJoined = "userJoined"
	EventUserLeft   = "userLeft"
	EventError      = "error"
	EventPong       = "pong"
)

// IsRelayEvent reports whether name belongs to the closed set of
// course mutation events forwarded verbatim to a room.
func IsRelayEvent(name string) bool {
	switch name {
	case EventCourseMoved, EventCourseUpdated, EventCourseAdded, EventCourseDeleted:
		return true
	}
	return false
}

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RoomPayload struct {
	RoomID RoomID `json:"roomId"`
}

type UserPayload struct {
	UserID UserID `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
