package cursor

import (
	"fmt"

	"github.com/weiawesome/live-cursors/internal/domain"
)

// Keys recognised by the state machine.
const (
	KeySlash  = "/"
	KeyEscape = "Escape"
	KeyE      = "e"
	KeyEnter  = "Enter"
)

// Machine holds the current State and applies input transitions.
// Presence side effects are returned as patches for the caller to publish;
// an empty patch means nothing to publish.
type Machine struct {
	state State
}

// NewMachine returns a machine in the Hidden state.
func NewMachine() *Machine {
	return &Machine{state: Hidden{}}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// KeyDown reports whether the window default action must be suppressed.
func (m *Machine) KeyDown(key string) bool {
	return key == KeySlash
}

// KeyUp handles a window-level key release.
func (m *Machine) KeyUp(key string) domain.PresencePatch {
	switch key {
	case KeySlash:
		m.state = Chat{}
	case KeyEscape:
		m.state = Hidden{}
		return domain.MessageIs("")
	case KeyE:
		m.state = ReactionSelector{}
	}
	return domain.PresencePatch{}
}

// ChatInput replaces the live chat line. It is ignored outside Chat.
func (m *Machine) ChatInput(text string) domain.PresencePatch {
	chat, ok := m.state.(Chat)
	if !ok {
		return domain.PresencePatch{}
	}
	chat.Message = Truncate(text)
	m.state = chat
	return domain.MessageIs(chat.Message)
}

// ChatKeyDown handles keys pressed inside the chat field. Escape leaves the
// published message untouched.
func (m *Machine) ChatKeyDown(key string) {
	chat, ok := m.state.(Chat)
	if !ok {
		return
	}
	switch key {
	case KeyEnter:
		prev := chat.Message
		m.state = Chat{PreviousMessage: &prev}
	case KeyEscape:
		m.state = Hidden{}
	}
}

// PickReaction selects an emoji from the open selector.
func (m *Machine) PickReaction(value string) {
	if _, ok := m.state.(ReactionSelector); ok {
		m.state = Reaction{Reaction: value}
	}
}

// PointerDown presses the current reaction.
func (m *Machine) PointerDown() {
	m.setPressed(true)
}

// PointerUp releases the current reaction.
func (m *Machine) PointerUp() {
	m.setPressed(false)
}

func (m *Machine) setPressed(pressed bool) {
	if r, ok := m.state.(Reaction); ok {
		r.IsPressed = pressed
		m.state = r
	}
}

// PointerLeave hides any overlay and clears the published cursor.
func (m *Machine) PointerLeave() domain.PresencePatch {
	m.state = Hidden{}
	return domain.CursorGone()
}

// TracksPointer reports whether pointer movement updates the cursor.
func (m *Machine) TracksPointer() bool {
	return m.state.Mode() != ModeReactionSelector
}

// Emitting returns the held reaction, if any.
func (m *Machine) Emitting() (string, bool) {
	switch s := m.state.(type) {
	case Reaction:
		return s.Reaction, s.IsPressed
	case Hidden, Chat, ReactionSelector:
		return "", false
	default:
		panic(fmt.Sprintf("cursor: unknown state %T", s))
	}
}
