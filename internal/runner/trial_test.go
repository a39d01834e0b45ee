package runner_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Centaurus99/Spearmint/internal/fleet"
	"github.com/Centaurus99/Spearmint/internal/params"
	"github.com/Centaurus99/Spearmint/internal/perf"
	"github.com/Centaurus99/Spearmint/internal/result"
	"github.com/Centaurus99/Spearmint/internal/runner"
)

func TestExitReason(t *testing.T) {
	tests := []struct {
		err      error
		timedOut bool
		want     string
	}{
		{nil, false, "completed"},
		{errors.New("ssh: exit status 1"), false, "failed"},
		{fmt.Errorf("decode: %w", perf.ErrNoData), false, "no_data"},
		{context.DeadlineExceeded, true, "timeout"},
	}
	for _, tt := range tests {
		got := runner.ExitReason(tt.err, tt.timedOut)
		if got != tt.want {
			t.Errorf("ExitReason(%v, %v) = %q, want %q", tt.err, tt.timedOut, got, tt.want)
		}
	}
}

func workers(n int) []fleet.Worker {
	ws := make([]fleet.Worker, n)
	for i := range ws {
		ws[i] = fleet.Worker{Name: fmt.Sprintf("w%d", i+1), Address: fmt.Sprintf("10.0.0.%d", i+1)}
	}
	return ws
}

func TestPlanSchemeMajor(t *testing.T) {
	plan, err := runner.Plan([]string{"cubic", "bbr"}, 2, workers(4))
	require.NoError(t, err)
	got := make([]string, len(plan))
	for i, a := range plan {
		got[i] = fmt.Sprintf("%s/%d@%s", a.Scheme, a.Trial, a.Worker)
	}
	assert.Equal(t, []string{"cubic/1@w1", "cubic/2@w2", "bbr/1@w3", "bbr/2@w4"}, got)
}

func TestPlanRejectsWrongWorkerCount(t *testing.T) {
	for _, n := range []int{0, 3, 5} {
		_, err := runner.Plan([]string{"cubic", "bbr"}, 2, workers(n))
		assert.ErrorIs(t, err, runner.ErrWorkerCount, "%d workers", n)
	}
}

// fakeExecutor returns a single-flow summary whose throughput is derived from
// the trial number, or fails for the configured schemes.
type fakeExecutor struct {
	mu      sync.Mutex
	seen    []fleet.Trial
	calls   atomic.Int32
	fail    map[string]bool
	block   bool
	payload func(t fleet.Trial) string
}

func (f *fakeExecutor) RunTrial(ctx context.Context, w fleet.Worker, t fleet.Trial) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, t)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.fail[t.Scheme] {
		return nil, fmt.Errorf("worker %s unreachable", w)
	}
	if f.payload != nil {
		return []byte(f.payload(t)), nil
	}
	return []byte(fmt.Sprintf("-- Flow 1:\nAverage throughput: %d Mbit/s\n"+
		"95th percentile per-packet one-way delay: 50 ms\nLoss rate: 0.1%%\n", 10*t.Num)), nil
}

func TestDispatchBarrier(t *testing.T) {
	plan, err := runner.Plan([]string{"cubic", "bbr"}, 2, workers(4))
	require.NoError(t, err)

	fe := &fakeExecutor{fail: map[string]bool{"bbr": true}}
	p := params.Physical{Bandwidth: 12, Delay: 20, UplinkQueue: 100}
	records := runner.Dispatch(context.Background(), fe, plan, &runner.TrialOpts{Params: p})

	require.Len(t, records, 4)
	assert.Equal(t, int32(4), fe.calls.Load())
	for _, tr := range fe.seen {
		assert.Equal(t, p, tr.Params)
		assert.Empty(t, tr.Dir)
	}

	assert.True(t, records[0].HasData())
	assert.Equal(t, 10.0, records[0].Flows[1].Throughput)
	assert.Equal(t, 20.0, records[1].Flows[1].Throughput)
	assert.Equal(t, "bbr", records[2].Scheme)
	assert.False(t, records[2].HasData())
	assert.False(t, records[3].HasData())
}

func TestDispatchStoresTrials(t *testing.T) {
	plan, err := runner.Plan([]string{"cubic"}, 2, workers(2))
	require.NoError(t, err)

	runDir := t.TempDir()
	fe := &fakeExecutor{payload: func(tr fleet.Trial) string {
		if tr.Num == 2 {
			return "garbage\n"
		}
		return "-- Flow 1:\nAverage throughput: 9 Mbit/s\n95th percentile one-way delay: 40 ms\nLoss rate: 0%\n"
	}}
	records := runner.Dispatch(context.Background(), fe, plan, &runner.TrialOpts{RunDir: runDir})
	require.Len(t, records, 2)
	assert.True(t, records[0].HasData())
	assert.ErrorIs(t, records[1].Err, perf.ErrNoData)

	metas, err := result.ReadRun(runDir)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, result.ExitCompleted, metas[0].ExitReason)
	assert.Equal(t, 9.0, metas[0].Flows[1].Throughput)
	assert.Equal(t, result.ExitNoData, metas[1].ExitReason)

	payload, err := os.ReadFile(filepath.Join(result.TrialDir(runDir, "cubic", 2), result.PayloadFile))
	require.NoError(t, err)
	assert.Equal(t, "garbage\n", string(payload))
}

func TestDispatchTimeout(t *testing.T) {
	plan, err := runner.Plan([]string{"cubic"}, 1, workers(1))
	require.NoError(t, err)

	runDir := t.TempDir()
	fe := &fakeExecutor{block: true}
	records := runner.Dispatch(context.Background(), fe, plan, &runner.TrialOpts{
		RunDir:  runDir,
		Timeout: 50 * time.Millisecond,
	})
	require.Len(t, records, 1)
	assert.False(t, records[0].HasData())

	meta, err := result.ReadTrialMeta(filepath.Join(result.TrialDir(runDir, "cubic", 1), "meta.json"))
	require.NoError(t, err)
	assert.Equal(t, result.ExitTimeout, meta.ExitReason)
}

func TestDispatchUnknownFormat(t *testing.T) {
	plan, err := runner.Plan([]string{"cubic"}, 1, workers(1))
	require.NoError(t, err)
	fe := &fakeExecutor{}
	records := runner.Dispatch(context.Background(), fe, plan, &runner.TrialOpts{Format: "pickle"})
	require.Len(t, records, 1)
	assert.Error(t, records[0].Err)
	assert.Zero(t, fe.calls.Load())
}
