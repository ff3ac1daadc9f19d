package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vmpool/internal/app"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logger     *zap.Logger
}

func main() {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	err := root.Execute()
	if opts.logger != nil {
		_ = opts.logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	opts.configPath = "vmpool.yaml"
	opts.logLevel = "info"

	root := &cobra.Command{
		Use:           "vmpoold",
		Short:         "Reservation service for pools of interchangeable virtual machines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := app.BuildLogger(opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newImportPoolsCmd(opts),
		newExportPoolsCmd(opts),
		newWorkerCmd(opts),
		newStatsCmd(opts),
	)

	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and observability endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logger)
			return application.Serve(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
				WithWorker: withWorker,
			})
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also consume the MQ command queue")

	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration without starting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(opts.logger)
			return application.ValidateConfig(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
		},
	}

	return cmd
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
