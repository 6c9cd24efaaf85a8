package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/backkem/dacgate/pkg/gateway"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

func shellCmd() *cobra.Command {
	var opts clientOptions
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Send commands to a gateway interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (%s). Type 'exit' to quit.\n",
				c.RemoteAddr(), c.PeerFingerprint())
			return runShell(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	opts.register(cmd)
	return cmd
}

// commander is the part of gateway.Client the shell uses.
type commander interface {
	Command(ctx context.Context, line string) (gateway.Decision, error)
}

// runShell reads command lines from in until EOF or "exit". A transport
// or authentication failure ends the shell since the session is gone.
func runShell(ctx context.Context, c commander, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for fmt.Fprint(out, "> "); scanner.Scan(); fmt.Fprint(out, "> ") {
		line := strings.TrimSpace(scanner.Text())
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(out, "Invalid command: %s\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(out, "Commands are sent as typed, e.g. 'unlock driver'. 'exit' quits.")
			continue
		}

		d, err := c.Command(ctx, quoteArgs(args))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, d)
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
