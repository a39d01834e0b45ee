package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/baseline"
	"github.com/Centaurus99/Spearmint/internal/config"
	"github.com/Centaurus99/Spearmint/internal/fleet"
	"github.com/Centaurus99/Spearmint/internal/loss"
	"github.com/Centaurus99/Spearmint/internal/notify"
	"github.com/Centaurus99/Spearmint/internal/objective"
	"github.com/Centaurus99/Spearmint/internal/params"
	"github.com/Centaurus99/Spearmint/internal/perf"
	"github.com/Centaurus99/Spearmint/internal/runner"
)

var (
	flagUnit       string
	flagParamsFile string
	flagDryRun     bool
	flagJSON       bool
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score one candidate point of the unit search space",
		Long: "Denormalize a candidate, run every scheme under it on the worker fleet, " +
			"append the result to the search log and print the loss.",
		RunE: runEvaluate,
	}
	cmd.Flags().StringVar(&flagUnit, "unit", "", "unit-cube point as bandwidth,delay,uplink_queue,uplink_loss")
	cmd.Flags().StringVar(&flagParamsFile, "params-file", "", `JSON file of {"bandwidth": [u], ...} as passed by the optimizer`)
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the physical parameters and trial plan without running")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "print the whole evaluation as JSON")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := readVector(flagUnit, flagParamsFile)
	if err != nil {
		return err
	}
	workers, err := fleet.Resolve(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// A fleet of the wrong size fails here, before the baseline cache is touched.
	plan, err := runner.Plan(cfg.Schemes, cfg.RunTimes, workers)
	if err != nil {
		return err
	}
	if flagDryRun {
		phys, entropy := params.Denormalize(v, cfg.Bounds())
		fmt.Fprintf(out, "%s entropy=%.2f\n", phys, entropy)
		for _, a := range plan {
			fmt.Fprintf(out, "  %s trial %d -> %s\n", a.Scheme, a.Trial, a.Worker.Host())
		}
		return nil
	}

	base, err := baseline.LoadOrCompute(cfg.ReplicateLogs, cfg.Schemes)
	if err != nil {
		return fmt.Errorf("loading baseline: %w", err)
	}
	dec, err := perf.NewDecoder(cfg.ReportFormat)
	if err != nil {
		return err
	}
	pub, err := notify.New(cfg.Notify.MQTT)
	if err != nil {
		logrus.Warnf("notifications disabled: %v", err)
		pub = notify.Nop{}
	}
	defer pub.Close()

	ev := &objective.Evaluator{
		Config:     cfg,
		Workers:    workers,
		Executor:   newExecutor(cfg),
		Decoder:    dec,
		Baseline:   base,
		SearchLog:  loss.NewSearchLog(cfg.SearchLogPath()),
		Notifier:   pub,
		ResultsDir: cfg.Results.Dir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := ev.Evaluate(ctx, v)
	if err != nil {
		return err
	}
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "%f\n", res.Loss)
	return nil
}

func newExecutor(cfg *config.Config) fleet.Executor {
	w := cfg.Workers
	if w.Executor == config.ExecutorDocker {
		return &fleet.DockerExecutor{
			Image:       w.Image,
			Binary:      w.Binary,
			EnvFile:     w.EnvFile,
			CPULimit:    w.CPULimit,
			MemoryLimit: w.MemoryLimit,
		}
	}
	e := fleet.NewSSHExecutor(w.Binary, w.RemoteOutput)
	e.PantheonDir = w.PantheonDir
	return e
}

// readVector takes the candidate from --unit or --params-file, exactly one
// of which must be set.
func readVector(unit, paramsFile string) (params.Vector, error) {
	var v params.Vector
	switch {
	case unit != "" && paramsFile != "":
		return v, fmt.Errorf("--unit and --params-file are mutually exclusive")
	case unit != "":
		return parseUnit(unit)
	case paramsFile != "":
		data, err := os.ReadFile(paramsFile)
		if err != nil {
			return v, fmt.Errorf("reading params file: %w", err)
		}
		var raw map[string][]float64
		if err := json.Unmarshal(data, &raw); err != nil {
			return v, fmt.Errorf("parsing params file: %w", err)
		}
		return params.FromSpearmint(raw)
	}
	return v, fmt.Errorf("one of --unit or --params-file is required")
}

func parseUnit(s string) (params.Vector, error) {
	var v params.Vector
	fields := strings.Split(s, ",")
	if len(fields) != int(params.NumDims) {
		return v, fmt.Errorf("--unit wants %d comma-separated values, got %d", int(params.NumDims), len(fields))
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return v, fmt.Errorf("--unit value %d: %w", i+1, err)
		}
		v[i] = x
	}
	return v, v.Validate()
}
