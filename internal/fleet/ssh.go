package fleet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SSHExecutor starts the worker binary over ssh and copies its output back
// with scp.
type SSHExecutor struct {
	Binary       string
	RemoteOutput string
	// PantheonDir is passed to the worker when set.
	PantheonDir string
	Run         Runner
}

func NewSSHExecutor(binary, remoteOutput string) *SSHExecutor {
	return &SSHExecutor{Binary: binary, RemoteOutput: remoteOutput, Run: ExecRunner}
}

func (e *SSHExecutor) RunTrial(ctx context.Context, w Worker, t Trial) ([]byte, error) {
	remote := append([]string{e.Binary, "worker"}, WorkerArgs(t.Params, t.Scheme, t.Format)...)
	remote = append(remote, "--output", e.RemoteOutput)
	if e.PantheonDir != "" {
		remote = append(remote, "--pantheon-dir", e.PantheonDir)
	}
	if err := e.Run(ctx, "ssh", sshArgs(w, strings.Join(remote, " "))...); err != nil {
		return nil, fmt.Errorf("running worker on %s: %w", w, err)
	}

	dir := t.Dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "replicate-trial-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trial dir: %w", err)
	}
	local := filepath.Join(dir, "remote.out")
	if err := e.Run(ctx, "scp", scpArgs(w, remotePath(w, e.RemoteOutput), local)...); err != nil {
		return nil, fmt.Errorf("collecting output from %s: %w", w, err)
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("reading collected output: %w", err)
	}
	os.Remove(local)
	return data, nil
}

func sshArgs(w Worker, command string) []string {
	args := []string{"-o", "BatchMode=yes"}
	if w.Port != 0 && w.Port != 22 {
		args = append(args, "-p", strconv.Itoa(w.Port))
	}
	return append(args, w.Host(), command)
}

// scpArgs copies from to to; either side may be a remotePath.
func scpArgs(w Worker, from, to string) []string {
	args := []string{"-o", "BatchMode=yes"}
	if w.Port != 0 && w.Port != 22 {
		args = append(args, "-P", strconv.Itoa(w.Port))
	}
	return append(args, from, to)
}

func remotePath(w Worker, path string) string {
	return w.Host() + ":" + path
}
