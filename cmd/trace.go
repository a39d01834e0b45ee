package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/worker"
)

func newTraceCmd() *cobra.Command {
	var (
		bandwidth float64
		outputDir string
	)
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Write a constant-rate mahimahi trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := worker.WriteTrace(outputDir, bandwidth)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().Float64Var(&bandwidth, "bandwidth", 0, "link rate in Mbit/s")
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "directory to write the trace to")
	cmd.MarkFlagRequired("bandwidth")
	return cmd
}
