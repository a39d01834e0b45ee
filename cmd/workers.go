package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/config"
	"github.com/Centaurus99/Spearmint/internal/fleet"
)

func newWorkersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "Inspect and maintain the worker fleet",
	}
	cmd.AddCommand(newWorkersListCmd())
	cmd.AddCommand(newWorkersProbeCmd())
	cmd.AddCommand(newWorkersAdminCmd())
	return cmd
}

func newWorkersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the resolved workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			workers, err := fleet.Resolve(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workers (%d, %d required):\n", len(workers), cfg.RequiredWorkers())
			for _, w := range workers {
				fmt.Fprintf(out, "  - %s (%s)\n", w, w.Host())
			}
			return nil
		},
	}
}

func newWorkersProbeCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Wait until every worker accepts ssh connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			workers, err := fleet.Resolve(cfg)
			if err != nil {
				return err
			}
			if err := fleet.Probe(context.Background(), workers, timeout); err != nil {
				return err
			}
			logrus.Infof("%d workers reachable", len(workers))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for each worker")
	return cmd
}

func newWorkersAdminCmd() *cobra.Command {
	var local string
	cmd := &cobra.Command{
		Use:   "admin <" + strings.Join(fleet.AdminActions(), "|") + ">",
		Short: "Run a maintenance action on every worker",
		Long: "setup reinstalls Pantheon, cleanup kills leftover experiments, " +
			"deploy copies a replicate binary to workers.binary on every worker.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: fleet.AdminActions(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			workers, err := fleet.Resolve(cfg)
			if err != nil {
				return err
			}
			opts, err := adminOpts(cfg, local)
			if err != nil {
				return err
			}
			return fleet.RunAdmin(context.Background(), fleet.ExecRunner, workers, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&local, "binary", "", "binary to deploy (this executable when empty)")
	return cmd
}

func adminOpts(cfg *config.Config, local string) (fleet.AdminOpts, error) {
	if local == "" {
		exe, err := os.Executable()
		if err != nil {
			return fleet.AdminOpts{}, fmt.Errorf("locating own binary: %w", err)
		}
		local = exe
	}
	return fleet.AdminOpts{
		PantheonDir: cfg.Workers.PantheonDir,
		Binary:      cfg.Workers.Binary,
		LocalBinary: local,
	}, nil
}
