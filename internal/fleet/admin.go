package fleet

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// Admin actions understood by RunAdmin.
const (
	ActionSetup   = "setup"
	ActionCleanup = "cleanup"
	ActionDeploy  = "deploy"
)

var adminTemplates = map[string]string{
	ActionSetup: "sudo sysctl -w net.core.default_qdisc=pfifo_fast; " +
		"cd %[1]s && git checkout master && git pull && " +
		"./test/setup.py --all --setup",
	ActionCleanup: "rm -rf /tmp/pantheon-tmp; " +
		"python %[1]s/helpers/pkill.py; " +
		"pkill -f pantheon",
	ActionDeploy: "chmod +x %[2]s.new && mv -f %[2]s.new %[2]s && %[2]s --help >/dev/null",
}

// AdminOpts locates what the admin actions touch on each worker.
type AdminOpts struct {
	PantheonDir string
	// Binary is the worker binary on each worker, replaced by deploy.
	Binary string
	// LocalBinary is the binary deploy copies to every worker.
	LocalBinary string
}

// AdminActions lists the supported maintenance actions.
func AdminActions() []string {
	actions := make([]string, 0, len(adminTemplates))
	for a := range adminTemplates {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	return actions
}

// AdminCommand returns the shell command that action runs on a worker.
func AdminCommand(action string, o AdminOpts) (string, error) {
	tmpl, ok := adminTemplates[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q (want one of %s)", action, strings.Join(AdminActions(), ", "))
	}
	switch {
	case action == ActionDeploy && o.Binary == "":
		return "", fmt.Errorf("%s: worker binary path is required", action)
	case action != ActionDeploy && o.PantheonDir == "":
		return "", fmt.Errorf("%s: pantheon dir is required", action)
	}
	return fmt.Sprintf(tmpl, o.PantheonDir, o.Binary), nil
}

// RunAdmin runs a maintenance action on every worker at once and reports
// every worker that failed. Deploy first copies o.LocalBinary next to the
// worker binary, then swaps it in.
func RunAdmin(ctx context.Context, run Runner, workers []Worker, action string, o AdminOpts) error {
	cmd, err := AdminCommand(action, o)
	if err != nil {
		return err
	}
	if action == ActionDeploy && o.LocalBinary == "" {
		return fmt.Errorf("%s: local binary is required", action)
	}
	p := pool.New().WithErrors().WithContext(ctx)
	for _, w := range workers {
		p.Go(func(ctx context.Context) error {
			if action == ActionDeploy {
				if err := run(ctx, "scp", scpArgs(w, o.LocalBinary, remotePath(w, o.Binary+".new"))...); err != nil {
					return fmt.Errorf("%s on %s: copying binary: %w", action, w, err)
				}
			}
			if err := run(ctx, "ssh", sshArgs(w, cmd)...); err != nil {
				return fmt.Errorf("%s on %s: %w", action, w, err)
			}
			return nil
		})
	}
	return p.Wait()
}
