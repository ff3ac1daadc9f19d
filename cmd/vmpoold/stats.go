package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vmpool/internal/app"
	"vmpool/internal/domain"
)

// timeValue is an RFC3339 flag; unset means "use the report default".
type timeValue struct {
	t *time.Time
}

var _ pflag.Value = timeValue{}

func (v timeValue) String() string {
	if v.t == nil || v.t.IsZero() {
		return ""
	}
	return v.t.Format(time.RFC3339)
}

func (v timeValue) Set(raw string) error {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("want RFC3339 timestamp: %w", err)
	}
	*v.t = parsed
	return nil
}

func (timeValue) Type() string {
	return "time"
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		cfg        app.StatsConfig
		report     string
		threshold  float64
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print usage reports",
		Long: "Print usage reports: pools (machine-hours per pool), users (machine-hours per user), " +
			"bottlenecks (hours above the usage threshold), top (five worst pools) and max-usage. " +
			"Without --start/--end the next seven days are reported.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			cfg.ConfigPath = opts.configPath
			cfg.Report = app.StatsReport(report)
			if cmd.Flags().Changed("threshold") {
				cfg.Threshold = &threshold
			}
			application := app.New(opts.logger)
			result, err := application.Stats(ctx, cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return printReport(cmd.OutOrStdout(), result)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&report, "report", string(app.ReportPools), "pools, users, bottlenecks, top or max-usage")
	flags.Var(timeValue{t: &cfg.Start}, "start", "window start (RFC3339)")
	flags.Var(timeValue{t: &cfg.End}, "end", "window end (RFC3339)")
	flags.DurationVar(&cfg.Interval, "interval", domain.DefaultBottleneckInterval, "bottleneck sampling interval (at least 1m)")
	flags.Float64Var(&threshold, "threshold", domain.DefaultBottleneckThreshold, "bottleneck usage threshold (0-1)")
	flags.BoolVar(&jsonOutput, "json", false, "print JSON")

	return cmd
}
