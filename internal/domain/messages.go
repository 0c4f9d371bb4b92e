package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeJoin      = "join"
	MsgTypeLeave     = "leave"
	MsgTypePresence  = "presence"
	MsgTypeBroadcast = "broadcast"
	MsgTypePing      = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeJoined         = "joined"
	MsgTypePresenceUpdate = "presence_update"
	MsgTypePeerLeft       = "peer_left"
	MsgTypeEvent          = "event"
	MsgTypePong           = "pong"
	MsgTypeError          = "error"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// JoinMessage is sent by client to join a room.
type JoinMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// LeaveMessage is sent by client to leave a room.
type LeaveMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// PresenceMessage publishes a patch of the sender's presence.
type PresenceMessage struct {
	Type  string        `json:"type"`
	Patch PresencePatch `json:"patch"`
}

// BroadcastMessage sends an event to every other room member.
type BroadcastMessage struct {
	Type  string        `json:"type"`
	Event ReactionEvent `json:"event"`
}

// Server -> Client messages

// JoinedMessage confirms a join with the assigned connection id and the
// current presence of the other members.
type JoinedMessage struct {
	Type         string `json:"type"`
	RoomID       string `json:"room_id"`
	ConnectionID int    `json:"connection_id"`
	Others       []Peer `json:"others"`
}

// PresenceUpdateMessage carries a member's full presence after a change.
type PresenceUpdateMessage struct {
	Type         string   `json:"type"`
	ConnectionID int      `json:"connection_id"`
	Presence     Presence `json:"presence"`
}

// PeerLeftMessage announces that a member left the room.
type PeerLeftMessage struct {
	Type         string `json:"type"`
	ConnectionID int    `json:"connection_id"`
}

// EventMessage delivers a broadcast event. The sender is not disclosed.
type EventMessage struct {
	Type  string        `json:"type"`
	Event ReactionEvent `json:"event"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message.
func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Message: message,
	}
}

// Encode marshals a message; marshal failures of these plain structs are
// programming errors.
func Encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Relay payloads published on the multi-instance bus.

// RelayPresence is published when a member's presence changes.
type RelayPresence struct {
	ConnectionID int      `json:"connection_id"`
	Presence     Presence `json:"presence"`
}

// RelayBroadcast is published when a member broadcasts an event.
type RelayBroadcast struct {
	ConnectionID int           `json:"connection_id"`
	Event        ReactionEvent `json:"event"`
}

// RelayPeerLeft is published when a member leaves.
type RelayPeerLeft struct {
	ConnectionID int `json:"connection_id"`
}
