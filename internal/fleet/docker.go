package fleet

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
	"github.com/sirupsen/logrus"
)

const containerOutput = "/workspace/stats.log"

// DockerExecutor runs each trial in a fresh container of a worker image on
// the local Docker daemon. The trial directory is bind-mounted at /workspace
// and the worker writes its output there.
type DockerExecutor struct {
	Image       string
	Binary      string
	EnvFile     string
	CPULimit    float64
	MemoryLimit int64
	// User runs the worker as uid:gid instead of the image default.
	User        string
	ExtraMounts []Mount
}

type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

func (e *DockerExecutor) RunTrial(ctx context.Context, w Worker, t Trial) ([]byte, error) {
	if t.Dir == "" {
		return nil, fmt.Errorf("docker trials need a trial directory")
	}
	workDir, err := filepath.Abs(t.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving trial dir: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trial dir: %w", err)
	}

	var env []string
	if e.EnvFile != "" {
		env, err = ParseEnvFile(e.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
	}

	binary := e.Binary
	if binary == "" {
		binary = "replicate"
	}
	cmd := append([]string{binary, "worker"}, WorkerArgs(t.Params, t.Scheme, t.Format)...)
	cmd = append(cmd, "--output", containerOutput)

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	mounts := []mount.Mount{{
		Type:   mount.TypeBind,
		Source: workDir,
		Target: "/workspace",
	}}
	for _, m := range e.ExtraMounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: mounts,
		Init:   &initTrue,
	}
	// mahimahi shells create network namespaces and tun devices.
	hostCfg.Privileged = true
	if e.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(e.CPULimit * 1e9)
	}
	if e.MemoryLimit > 0 {
		hostCfg.Memory = e.MemoryLimit
	}

	containerCfg := &container.Config{
		Image:    e.Image,
		Cmd:      cmd,
		Env:      env,
		Hostname: w.String(),
		Labels: map[string]string{
			"replicate":        "true",
			"replicate.scheme": t.Scheme,
			"replicate.trial":  fmt.Sprintf("%d", t.Num),
		},
	}
	if e.User != "" {
		containerCfg.User = e.User
	}

	logrus.Debugf("+ docker run %s %v", e.Image, cmd)
	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	waitResult := cli.ContainerWait(ctx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				dumpLogs(cli, containerID, "")
				return nil, fmt.Errorf("waiting for %s/trial-%d after %s: %w", t.Scheme, t.Num, time.Since(start).Round(time.Second), err)
			}
		case status := <-waitResult.Result:
			if status.StatusCode != 0 {
				dumpLogs(cli, containerID, "100")
				return nil, fmt.Errorf("worker container exited with code %d", status.StatusCode)
			}
			data, err := os.ReadFile(filepath.Join(workDir, filepath.Base(containerOutput)))
			if err != nil {
				return nil, fmt.Errorf("reading worker output: %w", err)
			}
			return data, nil
		}
	}
}

func dumpLogs(cli *client.Client, containerID, tail string) {
	logReader, _ := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: tail})
	if logReader == nil {
		return
	}
	defer logReader.Close()
	logData, _ := io.ReadAll(logReader)
	if len(logData) > 0 {
		logrus.Warnf("container %.12s logs:\n%s", containerID, logData)
	}
}
