package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/intthread/internal/native"
	"github.com/Paintersrp/intthread/internal/registry"
	"github.com/Paintersrp/intthread/internal/thread"
	"github.com/Paintersrp/intthread/internal/worker"
)

const demoID registry.ID = 1

func newDemoCmd(ctx *context) *cobra.Command {
	var (
		interval time.Duration
		wait     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a counter thread, interrupt it and print how far it got",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := native.Lookup(ctx.env.Backend)
			if err != nil {
				return err
			}
			counter := worker.NewCounter(interval, 0)
			ctrl, err := thread.New(counter,
				thread.WithName("counter"),
				thread.WithBackend(backend),
				thread.WithLogger(ctx.log("thread")),
			)
			if err != nil {
				return err
			}

			reg := registry.New(registry.WithLogger(ctx.log("registry")))
			if err := reg.Adopt(demoID, ctrl); err != nil {
				return errors.Join(err, ctrl.Close(), reg.Close())
			}
			if err := reg.Start(demoID); err != nil {
				return errors.Join(err, reg.Close())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "counter started on %s backend, interrupting in %s\n", backend.Name(), wait)
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-cmd.Context().Done():
				timer.Stop()
			}

			if err := reg.Interrupt(demoID); err != nil {
				return errors.Join(err, reg.Close())
			}
			if err := reg.Join(demoID); err != nil {
				return errors.Join(err, reg.Close())
			}

			stats := counter.Stats()
			info, err := reg.Info(demoID)
			if err != nil {
				return errors.Join(err, reg.Close())
			}
			fmt.Fprintf(out, "counter reached %d (cleanup ran %d time(s), status %d)\n",
				stats.Ticks, stats.Cleanups, info.StatusCode)

			return errors.Join(reg.Unregister(demoID), reg.Close())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", worker.DefaultInterval, "time between counter increments")
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long the counter runs before it is interrupted")
	return cmd
}
