package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/intthread/internal/config"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with thread manifests",
	}
	cmd.AddCommand(newConfigLintCmd(ctx))
	return cmd
}

func newConfigLintCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [manifest...]",
		Short: "Validate thread manifests (default: --file)",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{ctx.env.File}
			}

			var errs []error
			for _, path := range paths {
				doc, err := config.Load(path)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d threads)\n", path, len(doc.Threads))
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d manifests invalid: %w", len(errs), len(paths), errors.Join(errs...))
			}
			return nil
		},
	}
}
