// Package cursor implements the local interaction state machine of a
// participant: which overlay is shown at the cursor and how keyboard and
// pointer input move between them.
package cursor

import "fmt"

// Mode identifies the active State variant.
type Mode int

const (
	ModeHidden Mode = iota
	ModeChat
	ModeReactionSelector
	ModeReaction
)

func (m Mode) String() string {
	switch m {
	case ModeHidden:
		return "hidden"
	case ModeChat:
		return "chat"
	case ModeReactionSelector:
		return "reaction_selector"
	case ModeReaction:
		return "reaction"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is one of Hidden, Chat, ReactionSelector or Reaction.
type State interface {
	Mode() Mode
	sealed()
}

// Hidden shows no overlay.
type Hidden struct{}

// Chat shows the chat bubble. PreviousMessage is nil on a fresh chat.
type Chat struct {
	Message         string
	PreviousMessage *string
}

// ReactionSelector shows the emoji picker.
type ReactionSelector struct{}

// Reaction holds the picked emoji; IsPressed is true while the pointer is down.
type Reaction struct {
	Reaction  string
	IsPressed bool
}

func (Hidden) Mode() Mode           { return ModeHidden }
func (Chat) Mode() Mode             { return ModeChat }
func (ReactionSelector) Mode() Mode { return ModeReactionSelector }
func (Reaction) Mode() Mode         { return ModeReaction }

func (Hidden) sealed()           {}
func (Chat) sealed()             {}
func (ReactionSelector) sealed() {}
func (Reaction) sealed()         {}

// MaxMessageLength is the chat message limit in code points.
const MaxMessageLength = 50

// Truncate cuts s to MaxMessageLength code points.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxMessageLength {
		return s
	}
	return string(r[:MaxMessageLength])
}
