package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiawesome/live-cursors/internal/loopback"
)

const bobScript = `move 300 200
key /
type hi
`

const aliceScript = `move 100 100
key e
pick %s
down 100 100
sleep %s
up
`

func newDemoCmd(rt *runtime) *cobra.Command {
	var (
		hold     time.Duration
		reaction string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run two participants in one process and print their frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runDemo(cmd.Context(), rt, cmd.OutOrStdout(), reaction, hold); err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&hold, "hold", 250*time.Millisecond, "how long alice holds the pointer down")
	cmd.Flags().StringVar(&reaction, "reaction", "🔥", "reaction alice emits")

	return cmd
}

// runDemo runs bob's chat and then alice's reaction burst over a loopback
// room. Alice's frame is printed first so every broadcast she sent has been
// handed to bob's loop before his frame is taken.
func runDemo(ctx context.Context, rt *runtime, out io.Writer, reaction string, hold time.Duration) error {
	room := loopback.NewRoom()
	aliceMember, bobMember := room.Join(), room.Join()
	defer aliceMember.Leave()
	defer bobMember.Leave()

	alice := newSession(rt, aliceMember, aliceMember)
	if err := alice.Mount(ctx); err != nil {
		return err
	}
	defer alice.Unmount()

	bob := newSession(rt, bobMember, bobMember)
	if err := bob.Mount(ctx); err != nil {
		return err
	}
	defer bob.Unmount()

	bobScr := &Script{Session: bob, Out: out, Sleep: rt.sleep, Prefix: "== bob ==\n"}
	aliceScr := &Script{Session: alice, Out: out, Sleep: rt.sleep, Prefix: "== alice ==\n"}

	if err := bobScr.Run(ctx, strings.NewReader(bobScript)); err != nil {
		return fmt.Errorf("bob: %w", err)
	}
	if err := aliceScr.Run(ctx, strings.NewReader(fmt.Sprintf(aliceScript, reaction, hold))); err != nil {
		return fmt.Errorf("alice: %w", err)
	}

	if _, err := aliceScr.Exec(ctx, "frame"); err != nil {
		return err
	}
	_, err := bobScr.Exec(ctx, "frame")
	return err
}
