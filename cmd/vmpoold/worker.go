package main

import (
	"github.com/spf13/cobra"

	"vmpool/internal/app"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume reservation commands from the MQ queue",
		Long: "Consume reservation commands from the MQ queue. Pool locks live in the process, " +
			"so a standalone worker must not share its store with a running serve; use serve --with-worker instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logger)
			return application.Worker(ctx, app.ServeConfig{ConfigPath: opts.configPath})
		},
	}

	return cmd
}
