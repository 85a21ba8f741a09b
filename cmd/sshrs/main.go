// Command sshrs runs commands and moves files over SSH with the sshrs library.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)

	var exit *exitCodeError
	if errors.As(err, &exit) {
		stop()
		os.Exit(exit.code)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

// exitCodeError carries a remote exit status out of a command without printing anything.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("remote command exited with code %d", e.code)
}

func newRootCmd() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:           "sshrs",
		Short:         "Run commands and transfer files over SSH",
		Long:          `sshrs opens one authenticated SSH session per invocation and runs a single operation on it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f.register(rootCmd)

	rootCmd.AddCommand(
		newRunCmd(&f),
		newExecCmd(&f),
		newUploadCmd(&f),
		newGetCmd(&f),
		newIdentitiesCmd(&f),
		newKeepaliveCmd(&f),
		newLoginCmd(&f),
	)

	return rootCmd
}
