package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic collector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			application, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			serveErr := application.Serve(ctx)
			if err := application.Close(context.WithoutCancel(ctx)); err != nil && serveErr == nil {
				return err
			}
			return serveErr
		},
	}
}
