package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	apihttp "github.com/Paintersrp/intthread/internal/api/http"
)

var newAPIServer = apihttp.NewServer

func newServeCmd(ctx *context) *cobra.Command {
	var apiAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Deploy the manifest and expose the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := ctx.env.APIAddr
			if cmd.Flags().Changed("api") {
				addr = apiAddr
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

			listener, err := net.Listen("tcp", apihttp.NormalizeAddr(addr))
			if err != nil {
				return errors.Join(err, dep.teardown())
			}
			server, err := newAPIServer(apihttp.Config{
				Listener:   listener,
				Controller: NewControlAPI(ctx),
				Logger:     ctx.log("api"),
			})
			if err != nil {
				_ = listener.Close()
				return errors.Join(err, dep.teardown())
			}

			if err := dep.startAll(); err != nil {
				_ = listener.Close()
				return errors.Join(err, dep.teardown())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on %s\n", server.Addr())

			runErr := server.Run(cmd.Context())
			if errors.Is(runErr, stdcontext.Canceled) {
				runErr = nil
			}

			// Control API calls report registry_closed from here on.
			ctx.clearDeployment(dep)
			stopErr := dep.stop()
			dep.report(cmd.OutOrStdout())
			return errors.Join(runErr, stopErr, dep.teardown())
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "", "address for the HTTP control API (default "+ctx.env.APIAddr+")")
	return cmd
}
