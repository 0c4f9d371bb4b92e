package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/weiawesome/live-cursors/internal/cursor"
)

// WriteText writes a line-oriented rendering of f.
func WriteText(w io.Writer, f Frame) error {
	var b strings.Builder

	fmt.Fprintf(&b, "who: %s\n", f.WhoIsHere)

	if o := f.Overlay; o != nil {
		fmt.Fprintf(&b, "self: %s at (%d,%d)\n", o.Mode, o.At.X, o.At.Y)
		switch o.Mode {
		case cursor.ModeChat:
			if o.PreviousLine != "" {
				fmt.Fprintf(&b, "  said: %s\n", o.PreviousLine)
			}
			if o.Line == "" && o.Placeholder != "" {
				fmt.Fprintf(&b, "  chat: (%s)\n", o.Placeholder)
			} else {
				fmt.Fprintf(&b, "  chat: %s\n", o.Line)
			}
		case cursor.ModeReactionSelector:
			fmt.Fprintf(&b, "  pick: %s\n", strings.Join(o.Choices, " "))
		case cursor.ModeReaction:
			fmt.Fprintf(&b, "  glyph: %s\n", o.Glyph)
		}
	}

	for _, p := range f.Peers {
		fmt.Fprintf(&b, "peer %d %s at (%d,%d)", p.ConnectionID, p.Color, p.At.X, p.At.Y)
		if p.Message != "" {
			fmt.Fprintf(&b, " says %q", p.Message)
		}
		b.WriteByte('\n')
	}

	for _, s := range f.Sprites {
		fmt.Fprintf(&b, "particle %s %s at (%d,%d)\n", s.Key, s.Value, s.At.X, s.At.Y)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
