package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/stats"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <stats-log>...",
		Short: "Print the per-flow statistics of Pantheon stats logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tFLOW\tTPUT (Mbit/s)\tDELAY (ms)\tLOSS (%)")
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				r := stats.ParseText(string(data))
				if r.Total != nil {
					fmt.Fprintf(tw, "%s\ttotal\t%.2f\t%.2f\t%.2f\n", path, r.Total.Throughput, r.Total.Delay, r.Total.Loss)
				}
				flows := make([]int, 0, len(r.Flows))
				for n := range r.Flows {
					flows = append(flows, n)
				}
				sort.Ints(flows)
				for _, n := range flows {
					fs := r.Flows[n]
					fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n", path, n, fs.Throughput, fs.Delay, fs.Loss)
				}
				if len(flows) == 0 {
					fmt.Fprintf(tw, "%s\t-\t-\t-\t-\n", path)
				}
			}
			return tw.Flush()
		},
	}
}
