package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	if errors.Is(err, ErrUnknownCommand) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: script commands are move, down, up, leave, key, type, enter, esc, pick, frame, sleep, quit")
	}

	return err
}
