// Package cli holds the cursorctl commands.
package cli

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/weiawesome/live-cursors/internal/config"
	"github.com/weiawesome/live-cursors/internal/timer"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
)

const AppName = "cursorctl"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// runtime carries what the commands share. Timers, Now and Sleep are the
// wall clock unless a test swaps them.
type runtime struct {
	configFile string
	cfg        *config.Participant
	logger     zerolog.Logger

	timers timer.Service
	now    func() time.Time
	sleep  Sleeper
}

// NewRootCmd creates the cursorctl root command.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, &runtime{
		timers: timer.Ticker{},
		now:    time.Now,
		sleep:  SleepContext,
	})
}

func newRootCmd(version string, rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Live cursors participant",
		Long:          "cursorctl joins a live cursors room and drives a participant from a script.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadParticipant(rt.configFile)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			cfg.Log.Output = cmd.ErrOrStderr()
			pkglog.Init(cfg.Log)
			rt.cfg = cfg
			rt.logger = pkglog.New(cfg.Log)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().StringVar(&rt.configFile, "config", "", "participant config file (default ./config/cursorctl.yaml)")

	cmd.AddCommand(
		newJoinCmd(rt),
		newDemoCmd(rt),
	)

	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd(Version).ExecuteContext(ctx)
}
