package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vmpool/internal/app"
	"vmpool/internal/infra/catalog"
)

func newImportPoolsCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import-pools FILE",
		Short: "Create or update pools from a CSV, YAML or TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(opts.logger)
			summary, err := application.ImportPools(ctx, app.ImportConfig{
				ConfigPath: opts.configPath,
				File:       args[0],
				Format:     format,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, unchanged %d\n",
				summary.Created, summary.Updated, summary.Unchanged)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "file format: csv, yaml or toml (default: from extension)")

	return cmd
}

func newExportPoolsCmd(opts *rootOptions) *cobra.Command {
	var (
		format      string
		output      string
		onlyEnabled bool
	)
	cmd := &cobra.Command{
		Use:   "export-pools",
		Short: "Write pool definitions as YAML or TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			selector := format
			if selector == "" && output != "" {
				selector = output
			}
			if selector == "" {
				selector = string(catalog.ExportYAML)
			}
			exportFormat, err := catalog.ParseExportFormat(selector)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("open output: %w", err)
				}
				defer f.Close()
				out = f
			}

			application := app.New(opts.logger)
			return application.ExportPools(ctx, app.ExportConfig{
				ConfigPath:  opts.configPath,
				Format:      exportFormat,
				OnlyEnabled: onlyEnabled,
				Out:         out,
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "yaml or toml (default: from --output extension, else yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&onlyEnabled, "enabled", false, "only export enabled pools")

	return cmd
}
