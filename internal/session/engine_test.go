package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/domain"
)

func newTestEngine() (*Engine, *fakeStore, *fakeChannel) {
	store, channel := newFakeStore(), newFakeChannel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(store, channel, EngineOptions{Now: func() time.Time { return now }})
	return e, store, channel
}

func TestEnginePointerMoveRoundsAndPublishes(t *testing.T) {
	e, store, _ := newTestEngine()
	ctx := context.Background()

	e.PointerMove(ctx, 10.4, 20.6)
	require.Equal(t, &domain.Point{X: 10, Y: 21}, e.Cursor())
	require.Equal(t, []domain.PresencePatch{domain.CursorAt(domain.Point{X: 10, Y: 21})}, store.published())
}

func TestEnginePointerMoveIgnoredInSelector(t *testing.T) {
	e, store, _ := newTestEngine()
	ctx := context.Background()

	e.PointerMove(ctx, 1, 1)
	e.KeyUp(ctx, "e")
	e.PointerMove(ctx, 50, 50)

	require.Equal(t, &domain.Point{X: 1, Y: 1}, e.Cursor())
	require.Len(t, store.published(), 1)
}

func TestEnginePointerDownAnchorsCursor(t *testing.T) {
	e, _, channel := newTestEngine()
	ctx := context.Background()

	e.KeyUp(ctx, "e")
	e.PickReaction("🎉")
	e.PointerDown(ctx, 7, 8)

	require.True(t, e.EmitTick(ctx))
	require.Equal(t, []domain.ReactionEvent{{X: 7, Y: 8, Value: "🎉"}}, channel.broadcasts())
}

func TestEnginePublishFailureKeepsLocalState(t *testing.T) {
	e, store, _ := newTestEngine()
	store.err = errors.New("offline")
	ctx := context.Background()

	e.KeyUp(ctx, "/")
	e.ChatInput(ctx, "still here")

	require.Equal(t, "still here", e.Presence().Message)
	require.Equal(t, cursor.Chat{Message: "still here"}, e.State())
}

func TestEngineEscapeClearsMessage(t *testing.T) {
	e, store, _ := newTestEngine()
	ctx := context.Background()

	e.KeyUp(ctx, "/")
	e.ChatInput(ctx, "hi")
	e.KeyUp(ctx, "Escape")

	require.Empty(t, e.Presence().Message)
	require.Equal(t, domain.MessageIs(""), store.published()[1])
}

func TestEngineNoBroadcastWhileReleased(t *testing.T) {
	e, _, channel := newTestEngine()
	ctx := context.Background()

	e.PointerMove(ctx, 1, 1)
	e.KeyUp(ctx, "e")
	e.PickReaction("🔥")
	for i := 0; i < 10; i++ {
		require.False(t, e.EmitTick(ctx))
	}
	require.Empty(t, channel.broadcasts())
	require.Empty(t, e.Particles())
}

func TestEngineFrameUsesLocalCopy(t *testing.T) {
	e, store, _ := newTestEngine()
	store.err = errors.New("offline")
	ctx := context.Background()

	e.PointerMove(ctx, 4, 5)
	e.KeyUp(ctx, "e")
	e.SetPeers([]domain.Peer{{ConnectionID: 2, Presence: domain.Presence{Cursor: &domain.Point{X: 1, Y: 1}}}})

	f := e.Frame()
	require.NotNil(t, f.Overlay)
	require.Equal(t, domain.Point{X: 4, Y: 5}, f.Overlay.At)
	require.Equal(t, cursor.ModeReactionSelector, f.Overlay.Mode)
	require.Len(t, f.Peers, 1)
	require.Equal(t, "#059669", f.Peers[0].Color)
}
