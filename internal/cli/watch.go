package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/intthread/internal/logging"
	"github.com/Paintersrp/intthread/internal/tui"
)

func newWatchCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Deploy the manifest and control its threads interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !logging.IsTerminal(cmd.OutOrStdout()) {
				return fmt.Errorf("watch requires an interactive terminal")
			}

			doc, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			dep, err := ctx.deploy(doc)
			if err != nil {
				return err
			}
			ctx.setDeployment(dep)
			defer ctx.clearDeployment(dep)

			if err := dep.startAll(); err != nil {
				return errors.Join(err, dep.teardown())
			}

			uiErr := tui.New(dep.reg).Run(cmd.Context())

			stopErr := dep.stop()
			dep.report(cmd.OutOrStdout())
			return errors.Join(uiErr, stopErr, dep.teardown())
		},
	}
	return cmd
}
