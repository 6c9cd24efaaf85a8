package commands

import (
	"fmt"
	"strings"

	"github.com/backkem/dacgate/pkg/gateway"
	"github.com/spf13/cobra"
)

func requestCmd() *cobra.Command {
	var opts clientOptions
	cmd := &cobra.Command{
		Use:   "request <command> [args...]",
		Short: "Send one command to a gateway",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			d, err := c.Command(cmd.Context(), quoteArgs(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d)
			if d != gateway.DecisionGranted {
				return fmt.Errorf("command %s: %s", args[0], d)
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

// quoteArgs joins args into a line the gateway splits back into args.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\r\n\"'\\#") {
			a = "'" + strings.ReplaceAll(a, "'", `'"'"'`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
