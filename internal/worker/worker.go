// Package worker is the remote side of a trial: it emulates the candidate
// link with mahimahi through Pantheon, runs one scheme over it and reports
// the resulting statistics.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/fleet"
	"github.com/Centaurus99/Spearmint/internal/params"
	"github.com/Centaurus99/Spearmint/internal/perf"
	"github.com/Centaurus99/Spearmint/internal/stats"
)

// Options configures one worker invocation.
type Options struct {
	Params      params.Physical
	Scheme      string
	PantheonDir string
	TraceDir    string
	Output      string
	Format      string
	// Reruns is how many times a failed run is retried.
	Reruns int
	Run    fleet.Runner
}

func (o *Options) defaults() {
	if o.PantheonDir == "" {
		o.PantheonDir = "~/pantheon"
	}
	if o.TraceDir == "" {
		o.TraceDir = filepath.Join(os.TempDir(), "replicate-traces")
	}
	if o.Format == "" {
		o.Format = perf.FormatText
	}
	if o.Run == nil {
		o.Run = fleet.ExecRunner
	}
}

// TestCommand renders Pantheon's local test invocation for one scheme over
// the given trace.
func TestCommand(pantheonDir, scheme, trace string, p params.Physical) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/test/test.py local --pkill-cleanup", pantheonDir)
	fmt.Fprintf(&b, " --schemes %q", scheme)
	fmt.Fprintf(&b, " --uplink-trace %s --downlink-trace %s", trace, trace)

	var mm []string
	if p.Delay > 0 {
		mm = append(mm, fmt.Sprintf("mm-delay %d", p.Delay))
	}
	if p.UplinkLoss > 0 {
		mm = append(mm, "mm-loss uplink "+strconv.FormatFloat(p.UplinkLoss, 'g', -1, 64))
	}
	if len(mm) > 0 {
		fmt.Fprintf(&b, " --prepend-mm-cmds %q", strings.Join(mm, " "))
	}
	fmt.Fprintf(&b, ` --extra-mm-link-args "--uplink-queue=droptail --uplink-queue-args=packets=%d"`, p.UplinkQueue)
	return b.String()
}

// AnalysisCommand renders the invocation that writes the per-run stats logs.
func AnalysisCommand(pantheonDir string) string {
	return pantheonDir + "/analysis/plot.py --no-graphs --data-dir " + pantheonDir + "/test/data"
}

// Run executes the trial, retrying once per Reruns when the run produced no
// usable flow, and writes the report to Output.
func Run(ctx context.Context, opts Options) error {
	opts.defaults()
	if opts.Scheme == "" || strings.ContainsAny(opts.Scheme, " \t") {
		return fmt.Errorf("exactly one scheme is required, got %q", opts.Scheme)
	}
	enc, err := encoder(opts.Format)
	if err != nil {
		return err
	}

	trace, err := WriteTrace(expandHome(opts.TraceDir), opts.Params.Bandwidth)
	if err != nil {
		return err
	}
	dataDir := filepath.Join(expandHome(opts.PantheonDir), "test", "data")

	var res runResult
	for attempt := 0; ; attempt++ {
		res, err = runOnce(ctx, opts, trace, dataDir)
		if err == nil {
			break
		}
		if attempt >= opts.Reruns || ctx.Err() != nil {
			return err
		}
		logrus.Warnf("re-running test: %v", err)
	}

	out, err := enc(opts.Scheme, res)
	if err != nil {
		return err
	}
	output := expandHome(opts.Output)
	if output == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	return os.WriteFile(output, out, 0o644)
}

// errNoFlow means a run finished without a complete flow block.
var errNoFlow = errors.New("no complete flow in stats log")

var errFlowCount = errors.New("unexpected number of flows")

type runResult struct {
	raw    []byte
	report stats.Report
}

func runOnce(ctx context.Context, opts Options, trace, dataDir string) (runResult, error) {
	if err := clearDir(dataDir); err != nil {
		return runResult{}, err
	}
	if err := opts.Run(ctx, "bash", "-c", TestCommand(opts.PantheonDir, opts.Scheme, trace, opts.Params)); err != nil {
		return runResult{}, fmt.Errorf("test: %w", err)
	}
	if err := opts.Run(ctx, "bash", "-c", AnalysisCommand(opts.PantheonDir)); err != nil {
		return runResult{}, fmt.Errorf("analysis: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(dataDir, opts.Scheme+"_stats_run1.log"))
	if err != nil {
		return runResult{}, fmt.Errorf("reading stats log: %w", err)
	}
	report := stats.ParseText(string(data))
	if len(report.Flows) == 0 {
		return runResult{}, errNoFlow
	}
	return runResult{raw: data, report: report}, nil
}

type encodeFunc func(scheme string, r runResult) ([]byte, error)

func encoder(format string) (encodeFunc, error) {
	switch format {
	case perf.FormatText:
		return func(_ string, r runResult) ([]byte, error) { return r.raw, nil }, nil
	case perf.FormatJSON:
		return func(_ string, r runResult) ([]byte, error) {
			flows := make(map[string]stats.FlowStats, len(r.report.Flows))
			for n, fs := range r.report.Flows {
				flows[strconv.Itoa(n)] = fs
			}
			return json.Marshal(map[string]any{"flows": flows})
		}, nil
	case perf.FormatCSV:
		return func(scheme string, r runResult) ([]byte, error) {
			if n := len(r.report.Flows); n != 1 {
				return nil, fmt.Errorf("%w: csv holds one flow, run has %d", errFlowCount, n)
			}
			fs, ok := r.report.Flows[1]
			if !ok {
				return nil, errNoFlow
			}
			return []byte(fmt.Sprintf("%s,%.2f,%.2f\n", scheme, fs.Throughput, fs.Delay)), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading data dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clearing data dir: %w", err)
		}
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
