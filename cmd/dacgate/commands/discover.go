package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/backkem/dacgate/pkg/discovery"
	"github.com/spf13/cobra"
)

func discoverCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse the local network for gateways",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pins, err := loadPins(false)
			if err != nil {
				return err
			}
			r, err := discovery.NewResolver(discovery.ResolverConfig{LoggerFactory: global.loggerFactory})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			found, err := r.Browse(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INSTANCE\tADDRESS\tSUITE\tFINGERPRINT\tPINNED")
			for svc := range found {
				label, ok := pins.Pinned(svc.TXT.Fingerprint)
				pinned := "no"
				if ok {
					pinned = "yes"
					if label != "" {
						pinned = label
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					svc.InstanceName, svc.Addr(), svc.TXT.Suite, svc.TXT.Fingerprint, pinned)
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultBrowseTimeout, "how long to browse")
	return cmd
}
