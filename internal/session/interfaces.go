package session

import (
	"context"

	"github.com/weiawesome/live-cursors/internal/domain"
)

// PresenceStore replicates the local presence to peers and exposes theirs.
type PresenceStore interface {
	// Publish merges patch into the local participant's replicated presence.
	Publish(ctx context.Context, patch domain.PresencePatch) error
	// Others returns every other participant currently known.
	Others() []domain.Peer
	// SubscribeOthers calls fn with the full peer list after every change.
	SubscribeOthers(fn func([]domain.Peer)) (unsubscribe func())
}

// BroadcastChannel is a fire-and-forget event bus. Events reach every other
// participant, never the sender.
type BroadcastChannel interface {
	Broadcast(ctx context.Context, evt domain.ReactionEvent) error
	OnEvent(fn func(domain.ReactionEvent)) (unsubscribe func())
}
