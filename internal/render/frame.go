// Package render projects engine state into a drawable Frame. Projection is
// pure; it never touches presence or timers.
package render

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/domain"
)

// Palette colors peer cursors by connection id.
var Palette = []string{"#DC2626", "#D97706", "#059669", "#7C3AED", "#DB2777"}

// ChatPlaceholder is shown in an empty chat line with no previous message.
const ChatPlaceholder = "Say something…"

// ColorFor returns the palette color of a connection.
func ColorFor(connectionID int) string {
	i := connectionID % len(Palette)
	if i < 0 {
		i += len(Palette)
	}
	return Palette[i]
}

// Input is everything a frame is projected from.
type Input struct {
	State     cursor.State
	Cursor    *domain.Point
	Peers     []domain.Peer
	Particles []domain.Particle
}

// Overlay is what the local participant sees attached to its own cursor.
type Overlay struct {
	Mode cursor.Mode
	At   domain.Point

	// Chat
	PreviousLine string
	Line         string
	Placeholder  string

	// ReactionSelector
	Choices []string

	// Reaction
	Glyph string
}

// PeerCursor is a peer's cursor decoration.
type PeerCursor struct {
	ConnectionID int
	Color        string
	At           domain.Point
	Message      string
}

// Sprite is a live reaction particle, keyed by its unique id.
type Sprite struct {
	Key   string
	Value string
	At    domain.Point
}

// Frame is a full drawable view.
type Frame struct {
	HidePointer bool
	Overlay     *Overlay
	Peers       []PeerCursor
	Sprites     []Sprite
	WhoIsHere   string
}

// Project builds the frame for in.
func Project(in Input) Frame {
	f := Frame{
		Overlay:   overlay(in.State, in.Cursor),
		WhoIsHere: WhoIsHere(len(in.Peers)),
	}
	f.HidePointer = f.Overlay != nil && f.Overlay.Mode == cursor.ModeChat

	f.Peers = lo.FilterMap(in.Peers, func(p domain.Peer, _ int) (PeerCursor, bool) {
		if p.Presence.Cursor == nil {
			return PeerCursor{}, false
		}
		return PeerCursor{
			ConnectionID: p.ConnectionID,
			Color:        ColorFor(p.ConnectionID),
			At:           *p.Presence.Cursor,
			Message:      p.Presence.Message,
		}, true
	})

	f.Sprites = lo.Map(in.Particles, func(p domain.Particle, _ int) Sprite {
		return Sprite{Key: p.ID, Value: p.Value, At: p.Point}
	})

	return f
}

func overlay(state cursor.State, at *domain.Point) *Overlay {
	if at == nil || state == nil {
		return nil
	}

	o := &Overlay{Mode: state.Mode(), At: *at}
	switch s := state.(type) {
	case cursor.Hidden:
		return nil
	case cursor.Chat:
		o.Line = s.Message
		if s.PreviousMessage != nil && *s.PreviousMessage != "" {
			o.PreviousLine = *s.PreviousMessage
		} else {
			o.Placeholder = ChatPlaceholder
		}
	case cursor.ReactionSelector:
		o.Choices = append([]string(nil), domain.Reactions...)
	case cursor.Reaction:
		o.Glyph = s.Reaction
	default:
		panic(fmt.Sprintf("render: unknown state %T", s))
	}
	return o
}

// WhoIsHere describes how many other participants are online.
func WhoIsHere(others int) string {
	if others == 0 {
		return "There are no other users online."
	}
	return fmt.Sprintf("There are %d other users online.", others)
}
