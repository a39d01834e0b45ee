package runner

import (
	"errors"
	"fmt"

	"github.com/Centaurus99/Spearmint/internal/fleet"
)

// ErrWorkerCount means the fleet size does not match schemes x run_times.
var ErrWorkerCount = errors.New("wrong number of workers")

// Assignment binds one (scheme, trial) experiment to the worker that runs it.
type Assignment struct {
	Scheme string
	Trial  int
	Worker fleet.Worker
}

// Plan assigns trials 1..runTimes of each scheme, scheme-major, to workers in
// order. Every worker gets exactly one trial.
func Plan(schemes []string, runTimes int, workers []fleet.Worker) ([]Assignment, error) {
	want := len(schemes) * runTimes
	if len(workers) != want {
		return nil, fmt.Errorf("%w %d, should be %d", ErrWorkerCount, len(workers), want)
	}
	out := make([]Assignment, 0, want)
	i := 0
	for _, s := range schemes {
		for trial := 1; trial <= runTimes; trial++ {
			out = append(out, Assignment{Scheme: s, Trial: trial, Worker: workers[i]})
			i++
		}
	}
	return out, nil
}
