package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions for the live cursors relay.
const (
	// ChannelRoomEvents carries every relayed room event of one room.
	ChannelRoomEvents = "cursors:room:%s:events"

	// PatternRoomEvents matches ChannelRoomEvents for all rooms.
	PatternRoomEvents = "cursors:room:*:events"
)

// Event types relayed between server instances.
const (
	EventPresence  = "presence"
	EventBroadcast = "broadcast"
	EventPeerLeft  = "peer_left"
)

// RoomEventsChannel returns the channel name for a room's events.
func RoomEventsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomEvents, roomID)
}

// RoomFromChannel extracts the room id from a room events channel.
func RoomFromChannel(channel string) (string, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[0] != "cursors" || parts[1] != "room" || parts[3] != "events" {
		return "", false
	}
	return parts[2], parts[2] != ""
}
