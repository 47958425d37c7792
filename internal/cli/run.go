package cli

import (
	stdcontext "context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd(ctx *context) *cobra.Command {
	var runFor time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the manifest's threads, interrupt them and report",
		Long: `Start every thread in the manifest, wait, then interrupt and join them.

The wait ends when --for elapses (default: interrupt.after from the manifest),
when every thread has exited on its own, or on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			log := ctx.log("run")

			if err := dep.startAll(); err != nil {
				return errors.Join(err, dep.teardown())
			}

			wait := doc.Interrupt.After.Duration
			if cmd.Flags().Changed("for") {
				wait = runFor
			}
			waitCtx := cmd.Context()
			if wait > 0 {
				var cancel stdcontext.CancelFunc
				waitCtx, cancel = stdcontext.WithTimeout(waitCtx, wait)
				defer cancel()
			}
			if err := dep.waitExited(waitCtx); err != nil {
				log.WithField("reason", err).Info("interrupting threads")
			} else {
				log.Info("all threads exited")
			}

			stopErr := dep.stop()
			dep.report(cmd.OutOrStdout())
			return errors.Join(stopErr, dep.teardown())
		},
	}
	cmd.Flags().DurationVar(&runFor, "for", 0, "how long to let threads run before interrupting them")
	return cmd
}
