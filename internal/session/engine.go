package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/domain"
	"github.com/weiawesome/live-cursors/internal/reaction"
	"github.com/weiawesome/live-cursors/internal/render"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

// Engine is the synchronous core of a participant: the interaction state,
// the local presence copy, the known peers and the reaction particles.
// It is not safe for concurrent use; Session serialises access to it.
type Engine struct {
	store     PresenceStore
	machine   *cursor.Machine
	reactions *reaction.Manager
	presence  domain.Presence
	peers     []domain.Peer
	logger    zerolog.Logger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Lifetime time.Duration
	Now      func() time.Time
	Logger   *zerolog.Logger
}

// NewEngine creates an engine publishing presence to store and reactions to
// channel.
func NewEngine(store PresenceStore, channel BroadcastChannel, opts EngineOptions) *Engine {
	logger := pkglog.Component(opts.Logger, "engine")
	return &Engine{
		store:   store,
		machine: cursor.NewMachine(),
		reactions: reaction.NewManager(channel, reaction.Options{
			Lifetime: opts.Lifetime,
			Now:      opts.Now,
			Logger:   &logger,
		}),
		logger: logger,
	}
}

// KeyDown reports whether the default action of key must be suppressed.
func (e *Engine) KeyDown(key string) bool {
	return e.machine.KeyDown(key)
}

// KeyUp handles a window-level key release.
func (e *Engine) KeyUp(ctx context.Context, key string) {
	e.publish(ctx, e.machine.KeyUp(key))
}

// ChatInput replaces the chat line.
func (e *Engine) ChatInput(ctx context.Context, text string) {
	e.publish(ctx, e.machine.ChatInput(text))
}

// ChatKeyDown handles Enter and Escape in the chat field.
func (e *Engine) ChatKeyDown(key string) {
	e.machine.ChatKeyDown(key)
}

// PickReaction selects an emoji in the open selector.
func (e *Engine) PickReaction(value string) {
	e.machine.PickReaction(value)
}

// PointerMove moves the cursor unless the reaction selector is open.
func (e *Engine) PointerMove(ctx context.Context, x, y float64) {
	if !e.machine.TracksPointer() {
		return
	}
	e.publish(ctx, domain.CursorAt(domain.PointAt(x, y)))
}

// PointerDown anchors the cursor at the press and presses a held reaction.
func (e *Engine) PointerDown(ctx context.Context, x, y float64) {
	e.publish(ctx, domain.CursorAt(domain.PointAt(x, y)))
	e.machine.PointerDown()
}

// PointerUp releases a held reaction.
func (e *Engine) PointerUp() {
	e.machine.PointerUp()
}

// PointerLeave hides the overlay and clears the cursor.
func (e *Engine) PointerLeave(ctx context.Context) {
	e.publish(ctx, e.machine.PointerLeave())
}

// EmitTick runs one emission step.
func (e *Engine) EmitTick(ctx context.Context) bool {
	return e.reactions.EmitTick(ctx, e)
}

// Sweep evicts expired particles.
func (e *Engine) Sweep() int {
	return e.reactions.Sweep()
}

// ReceiveEvent appends a particle for a peer's reaction.
func (e *Engine) ReceiveEvent(evt domain.ReactionEvent) {
	e.reactions.Receive(evt)
}

// SetPeers replaces the known peer list.
func (e *Engine) SetPeers(peers []domain.Peer) {
	e.peers = append([]domain.Peer(nil), peers...)
}

// Cursor returns the local cursor.
func (e *Engine) Cursor() *domain.Point {
	if e.presence.Cursor == nil {
		return nil
	}
	p := *e.presence.Cursor
	return &p
}

// Emitting returns the held reaction and whether it is pressed.
func (e *Engine) Emitting() (string, bool) {
	return e.machine.Emitting()
}

// State returns the interaction state.
func (e *Engine) State() cursor.State {
	return e.machine.State()
}

// Presence returns the local presence copy.
func (e *Engine) Presence() domain.Presence {
	return e.presence.Clone()
}

// Peers returns the known peers.
func (e *Engine) Peers() []domain.Peer {
	return append([]domain.Peer(nil), e.peers...)
}

// Particles returns the live particles in arrival order.
func (e *Engine) Particles() []domain.Particle {
	return e.reactions.Particles()
}

// Frame projects the current view.
func (e *Engine) Frame() render.Frame {
	return render.Project(render.Input{
		State:     e.machine.State(),
		Cursor:    e.presence.Cursor,
		Peers:     e.peers,
		Particles: e.reactions.Particles(),
	})
}

// publish applies patch to the local copy first; a failed publish is not
// rolled back.
func (e *Engine) publish(ctx context.Context, patch domain.PresencePatch) {
	if patch.Empty() {
		return
	}
	e.presence = e.presence.Apply(patch)
	if err := e.store.Publish(ctx, patch); err != nil {
		e.logger.Debug().Err(err).Msg("presence publish failed")
	}
}
