package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/intthread/internal/native"
)

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the native thread backends available on this platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def := native.Default().Name()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFORCED-WAKE\tDEFAULT")
			for _, name := range native.Names() {
				backend, err := native.Lookup(name)
				if err != nil {
					return err
				}
				marker := ""
				if name == def {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\n", name, backend.ForcedWake(), marker)
			}
			return tw.Flush()
		},
	}
}
