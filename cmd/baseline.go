package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/aggregate"
	"github.com/Centaurus99/Spearmint/internal/baseline"
)

func newBaselineCmd() *cobra.Command {
	var recompute bool
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Show the reference metrics derived from the replicate logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var table aggregate.Table
			if recompute {
				table, err = baseline.Compute(cfg.ReplicateLogs, cfg.Schemes)
			} else {
				table, err = baseline.LoadOrCompute(cfg.ReplicateLogs, cfg.Schemes)
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCHEME\tFLOW\tTPUT (Mbit/s)\tDELAY (ms)\tRUNS")
			for _, k := range table.Keys() {
				m := table[k]
				fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%d\n", k.Scheme, k.Flow, m.Throughput, m.Delay, m.Samples)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&recompute, "recompute", false, "ignore the cache and do not write it")
	return cmd
}
