package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"vmpool/internal/infra/stats"
)

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printReport(w io.Writer, result any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch rows := result.(type) {
	case []stats.PoolHours:
		fmt.Fprintln(tw, "POOL\tMACHINE-HOURS")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%.1f\n", r.PoolID, r.MachineHours)
		}
	case []stats.UserHours:
		fmt.Fprintln(tw, "USER\tMACHINE-HOURS")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%.1f\n", r.UserID, r.MachineHours)
		}
	case []stats.BottleneckHours:
		fmt.Fprintln(tw, "POOL\tHOURS")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%d\n", r.PoolID, r.Hours)
		}
	case []stats.PoolUsage:
		fmt.Fprintln(tw, "POOL\tMAX-MACHINES")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%d\n", r.PoolID, r.MaxMachines)
		}
	default:
		return writeJSON(w, result)
	}
	return tw.Flush()
}
