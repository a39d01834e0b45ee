// Package objective evaluates one candidate point of the search space: it
// replays every scheme under the candidate's link parameters on the worker
// fleet and scores the outcome against the baseline.
package objective

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/aggregate"
	"github.com/Centaurus99/Spearmint/internal/config"
	"github.com/Centaurus99/Spearmint/internal/fleet"
	"github.com/Centaurus99/Spearmint/internal/loss"
	"github.com/Centaurus99/Spearmint/internal/notify"
	"github.com/Centaurus99/Spearmint/internal/params"
	"github.com/Centaurus99/Spearmint/internal/perf"
	"github.com/Centaurus99/Spearmint/internal/result"
	"github.com/Centaurus99/Spearmint/internal/runner"
)

// Evaluation is the scored outcome of one candidate.
type Evaluation struct {
	Physical params.Physical `json:"params"`
	Entropy  float64         `json:"entropy"`
	Result   loss.Result     `json:"result"`
	// Loss is Result.Overall plus Entropy, the value the optimizer minimizes.
	Loss   float64   `json:"loss"`
	Time   time.Time `json:"time"`
	RunDir string    `json:"run_dir,omitempty"`
}

type Evaluator struct {
	Config    *config.Config
	Workers   []fleet.Worker
	Executor  fleet.Executor
	Decoder   perf.Decoder
	Baseline  aggregate.Table
	SearchLog *loss.SearchLog
	Notifier  notify.Publisher
	// ResultsDir, when set, keeps each evaluation's trials in a run directory.
	ResultsDir string
	Now        func() time.Time
}

// Evaluate denormalizes v, runs one trial per (scheme, run) and returns the
// loss. Nothing is appended to the search log unless the loss is computed.
func (e *Evaluator) Evaluate(ctx context.Context, v params.Vector) (*Evaluation, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	cfg := e.Config
	phys, entropy := params.Denormalize(v, cfg.Bounds())
	log := logrus.WithField("params", phys.String())

	plan, err := runner.Plan(cfg.Schemes, cfg.RunTimes, e.Workers)
	if err != nil {
		return nil, err
	}

	var runDir string
	if e.ResultsDir != "" {
		runDir, err = result.CreateRunDir(e.ResultsDir)
		if err != nil {
			return nil, err
		}
	}

	log.Infof("dispatching %d trials", len(plan))
	records := runner.Dispatch(ctx, e.Executor, plan, &runner.TrialOpts{
		Params:  phys,
		Format:  cfg.ReportFormat,
		Decoder: e.Decoder,
		RunDir:  runDir,
		Timeout: cfg.TrialTimeoutDuration(),
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	candidate := aggregate.Aggregate(records, e.Baseline.Keys()...)
	res, err := loss.Compute(candidate, e.Baseline)
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", phys, err)
	}

	ev := &Evaluation{
		Physical: phys,
		Entropy:  entropy,
		Result:   res,
		Loss:     res.Overall + entropy,
		Time:     e.now(),
		RunDir:   runDir,
	}
	if e.SearchLog != nil {
		if err := e.SearchLog.Append(loss.Entry{Physical: phys, Result: res, Time: ev.Time}); err != nil {
			return nil, err
		}
	}
	log.WithFields(logrus.Fields{
		"tput_loss":  fmt.Sprintf("%.2f", res.TputLoss),
		"delay_loss": fmt.Sprintf("%.2f", res.DelayLoss),
		"entropy":    fmt.Sprintf("%.2f", entropy),
	}).Infof("loss %.2f", ev.Loss)

	if e.Notifier != nil {
		event := notify.Event{
			Location: cfg.Location,
			Params:   phys,
			Entropy:  entropy,
			Result:   res,
			Loss:     ev.Loss,
			Time:     ev.Time,
			RunDir:   runDir,
		}
		if err := e.Notifier.Publish(ctx, event); err != nil {
			log.Warnf("notify: %v", err)
		}
	}
	return ev, nil
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
