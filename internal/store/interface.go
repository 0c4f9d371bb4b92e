package store

import (
	"context"
	"time"

	"github.com/weiawesome/live-cursors/internal/domain"
)

// PresenceStore keeps the presence records of every room member across relay
// instances. Records live only as long as their connection (or the TTL).
type PresenceStore interface {
	// NextConnectionID allocates the next connection id of a room.
	NextConnectionID(ctx context.Context, roomID string) (int, error)

	// Put stores a member's presence and refreshes the room TTL.
	Put(ctx context.Context, roomID string, peer domain.Peer, ttl time.Duration) error

	// Remove deletes a member's presence.
	Remove(ctx context.Context, roomID string, connectionID int) error

	// List returns every member of a room ordered by connection id.
	List(ctx context.Context, roomID string) ([]domain.Peer, error)

	// Refresh extends the room TTL.
	Refresh(ctx context.Context, roomID string, ttl time.Duration) error

	// Close closes the store connection.
	Close() error
}
