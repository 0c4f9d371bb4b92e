package service

import (
	"context"

	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/hub"
	"github.com/weiawesome/live-cursors/pkg/pubsub"
)

// RoomService relays presence and broadcast events between room members.
type RoomService interface {
	// HandleJoin handles a client joining a room.
	HandleJoin(ctx context.Context, c *hub.Client, roomID string) error

	// HandleLeave handles a client leaving its room.
	HandleLeave(ctx context.Context, c *hub.Client, roomID string) error

	// HandlePresence merges a presence patch into the client's presence.
	HandlePresence(ctx context.Context, c *hub.Client, patch domain.PresencePatch) error

	// HandleBroadcast relays an event to every other member of the client's room.
	HandleBroadcast(ctx context.Context, c *hub.Client, evt domain.ReactionEvent) error

	// HandleHeartbeat handles a heartbeat from a client.
	HandleHeartbeat(ctx context.Context, c *hub.Client) error

	// HandleDisconnect handles a client disconnecting.
	HandleDisconnect(ctx context.Context, c *hub.Client) error

	// HandleRemoteEvent delivers an event published by another instance to
	// the local members of its room.
	HandleRemoteEvent(ctx context.Context, event *pubsub.Event) error

	// GetRoomPresence returns every member of a room.
	GetRoomPresence(ctx context.Context, roomID string) ([]domain.Peer, error)
}
