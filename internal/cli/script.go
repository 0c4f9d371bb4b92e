package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/render"
	"github.com/weiawesome/live-cursors/internal/session"
)

// ErrUnknownCommand is returned for a script line the interpreter does not know.
var ErrUnknownCommand = errors.New("unknown script command")

// Sleeper pauses a script. Tests substitute one that advances virtual time.
type Sleeper func(ctx context.Context, d time.Duration) error

// Script drives a session from line-oriented commands:
//
//	move X Y     pointer move
//	down X Y     pointer down
//	up           pointer up
//	leave        pointer leaves the surface
//	key K        window key press (keydown then keyup)
//	type TEXT    replace the chat input text
//	enter        Enter in the chat input
//	esc          Escape, to the chat input when it has focus
//	pick E       choose a reaction in the selector
//	frame        print the current frame
//	sleep DUR    wait, e.g. 250ms
//	quit         stop reading
//
// Blank lines and lines starting with # are skipped.
type Script struct {
	Session *session.Session
	Out     io.Writer
	Sleep   Sleeper
	// Prefix is written before every printed frame.
	Prefix string
}

// Run executes commands from r until EOF, quit, the first error, or ctx is
// done. A read blocked on r does not delay returning on ctx.
func (s *Script) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
		readErr <- sc.Err()
	}()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := s.Exec(ctx, line)
			if err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Exec runs one command line. It reports true when the line was quit.
func (s *Script) Exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "move":
		x, y, err := parsePoint(rest)
		if err != nil {
			return false, err
		}
		return false, s.Session.PointerMove(x, y)
	case "down":
		x, y, err := parsePoint(rest)
		if err != nil {
			return false, err
		}
		return false, s.Session.PointerDown(x, y)
	case "up":
		return false, s.Session.PointerUp()
	case "leave":
		return false, s.Session.PointerLeave()
	case "key":
		if rest == "" {
			return false, errors.New("key: missing key")
		}
		if _, err := s.Session.KeyDown(rest); err != nil {
			return false, err
		}
		return false, s.Session.KeyUp(rest)
	case "type":
		return false, s.Session.ChatInput(rest)
	case "enter":
		return false, s.Session.ChatKeyDown("Enter")
	case "esc":
		return false, s.escape()
	case "pick":
		if rest == "" {
			return false, errors.New("pick: missing reaction")
		}
		return false, s.Session.PickReaction(rest)
	case "frame":
		return false, s.frame()
	case "sleep":
		d, err := time.ParseDuration(rest)
		if err != nil {
			return false, fmt.Errorf("sleep: %w", err)
		}
		return false, s.sleep(ctx, d)
	case "quit":
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// escape goes to the chat input while it is open, to the window otherwise.
func (s *Script) escape() error {
	st, err := s.Session.State()
	if err != nil {
		return err
	}
	if _, ok := st.(cursor.Chat); ok {
		return s.Session.ChatKeyDown("Escape")
	}
	return s.Session.KeyUp("Escape")
}

func (s *Script) frame() error {
	f, err := s.Session.Frame()
	if err != nil {
		return err
	}
	if s.Prefix != "" {
		if _, err := io.WriteString(s.Out, s.Prefix); err != nil {
			return err
		}
	}
	return render.WriteText(s.Out, f)
}

func (s *Script) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parsePoint(s string) (float64, float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("want X Y, got %q", s)
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("y: %w", err)
	}
	return x, y, nil
}
