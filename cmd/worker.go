package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/params"
	"github.com/Centaurus99/Spearmint/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var (
		p    params.Physical
		opts worker.Options
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run one trial on this machine (invoked remotely by evaluate)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Params = p
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return worker.Run(ctx, opts)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&p.Bandwidth, "bandwidth", 0, "link rate in Mbit/s")
	f.IntVar(&p.Delay, "delay", 0, "one-way delay in ms")
	f.IntVar(&p.UplinkQueue, "uplink-queue", 0, "uplink droptail queue size in packets")
	f.Float64Var(&p.UplinkLoss, "uplink-loss", 0, "uplink loss probability")
	f.StringVar(&opts.Scheme, "schemes", "", "congestion control scheme to run")
	f.StringVar(&opts.Output, "output", "", "where to write the report (stdout when empty)")
	f.StringVar(&opts.Format, "format", "text", "report format (text, json, csv)")
	f.StringVar(&opts.PantheonDir, "pantheon-dir", "~/pantheon", "Pantheon checkout")
	f.StringVar(&opts.TraceDir, "trace-dir", "", "where to write link traces")
	f.IntVar(&opts.Reruns, "reruns", 1, "retries when a run yields no data")
	for _, name := range []string{"bandwidth", "delay", "uplink-queue", "uplink-loss", "schemes"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}
