package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func trustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Manage pinned peer fingerprints",
	}
	cmd.AddCommand(trustAddCmd(), trustRemoveCmd(), trustListCmd())
	return cmd
}

func trustAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <fingerprint> [label...]",
		Short: "Pin a peer fingerprint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := loadPins(false)
			if err != nil {
				return err
			}
			if err := pins.Pin(args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			return pins.Save(global.pinsFile)
		},
	}
}

func trustRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <fingerprint>",
		Short: "Unpin a peer fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := loadPins(false)
			if err != nil {
				return err
			}
			if !pins.Unpin(args[0]) {
				return fmt.Errorf("%s is not pinned", args[0])
			}
			return pins.Save(global.pinsFile)
		},
	}
}

func trustListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pinned fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := loadPins(false)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, p := range pins.Entries() {
				fmt.Fprintf(w, "%s\t%s\n", p.Fingerprint, p.Label)
			}
			return w.Flush()
		},
	}
}
