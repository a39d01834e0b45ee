package fleet

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/params"
)

// Trial is one (scheme, trial) experiment under fixed link parameters.
type Trial struct {
	Scheme string
	Num    int
	Params params.Physical
	Format string
	// Dir is the local directory reserved for this trial's artifacts.
	Dir string
}

// Executor runs a trial on a worker and returns the raw performance payload.
type Executor interface {
	RunTrial(ctx context.Context, w Worker, t Trial) ([]byte, error)
}

// WorkerArgs renders the arguments of the remote `worker` subcommand.
func WorkerArgs(p params.Physical, scheme, format string) []string {
	args := []string{
		"--bandwidth", fmt.Sprintf("%.1f", p.Bandwidth),
		"--delay", fmt.Sprintf("%d", p.Delay),
		"--uplink-queue", fmt.Sprintf("%d", p.UplinkQueue),
		"--uplink-loss", fmt.Sprintf("%.4f", p.UplinkLoss),
		"--schemes", scheme,
	}
	if format != "" {
		args = append(args, "--format", format)
	}
	return args
}

// Runner executes a local command.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command with os/exec, echoing it at debug level.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	logrus.Debugf("+ %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %s: %w", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}
