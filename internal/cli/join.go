package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiawesome/live-cursors/internal/client"
	"github.com/weiawesome/live-cursors/internal/session"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

const defaultHeartbeat = 30 * time.Second

func newJoinCmd(rt *runtime) *cobra.Command {
	var (
		url       string
		room      string
		script    string
		heartbeat time.Duration
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a room on a relay and run a script",
		Long:  "Join a room on a relay and run a script read from --script or stdin. The script stops when the relay connection drops.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = rt.cfg.Client.URL
			}
			if room == "" {
				room = rt.cfg.Client.Room
			}

			in := cmd.InOrStdin()
			if script != "" {
				f, err := os.Open(script)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runJoin(ctx, rt, cmd.OutOrStdout(), in, client.Options{
				URL:         url,
				Room:        room,
				DialTimeout: rt.cfg.Client.DialTimeout,
				Heartbeat:   heartbeat,
				Logger:      &rt.logger,
			}); err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "relay WebSocket URL")
	cmd.Flags().StringVar(&room, "room", "", "room to join")
	cmd.Flags().StringVar(&script, "script", "", "script file (default stdin)")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", defaultHeartbeat, "presence keepalive interval, 0 disables")

	return cmd
}

func runJoin(ctx context.Context, rt *runtime, out io.Writer, in io.Reader, opts client.Options) error {
	c, err := client.Dial(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	s := newSession(rt, c, c)
	if err := s.Mount(ctx); err != nil {
		return err
	}
	defer s.Unmount()

	rt.logger.Info().
		Str(pkglog.FieldRoomID, opts.Room).
		Int(pkglog.FieldConnectionID, c.ConnectionID()).
		Msg("joined")

	sc := &Script{Session: s, Out: out, Sleep: rt.sleep}
	err = sc.Run(ctx, in)
	select {
	case <-c.Done():
		if err != nil {
			return fmt.Errorf("script: %w", client.ErrNotConnected)
		}
	default:
	}
	if errors.Is(err, context.Canceled) {
		// interrupted
		return nil
	}
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

func newSession(rt *runtime, store session.PresenceStore, channel session.BroadcastChannel) *session.Session {
	return session.New(store, channel, session.Options{
		EmitInterval:  rt.cfg.Reactions.EmitInterval,
		SweepInterval: rt.cfg.Reactions.SweepInterval,
		Lifetime:      rt.cfg.Reactions.Lifetime,
		Timers:        rt.timers,
		Now:           rt.now,
		Logger:        &rt.logger,
	})
}
