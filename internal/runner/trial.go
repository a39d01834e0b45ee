package runner

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/fleet"
	"github.com/Centaurus99/Spearmint/internal/params"
	"github.com/Centaurus99/Spearmint/internal/perf"
	"github.com/Centaurus99/Spearmint/internal/result"
)

type TrialOpts struct {
	Params  params.Physical
	Format  string
	Decoder perf.Decoder
	// RunDir, when set, receives each trial's payload and meta.json.
	RunDir  string
	Timeout time.Duration
}

func ExitReason(err error, timedOut bool) string {
	switch {
	case timedOut:
		return result.ExitTimeout
	case errors.Is(err, perf.ErrNoData):
		return result.ExitNoData
	case err != nil:
		return result.ExitFailed
	default:
		return result.ExitCompleted
	}
}

// Dispatch runs every assignment concurrently and returns once all of them
// have finished, with one record per assignment in assignment order. A failed
// trial yields a record without data.
func Dispatch(ctx context.Context, exec fleet.Executor, assignments []Assignment, topts *TrialOpts) []perf.Record {
	opts := *topts
	if opts.Decoder == nil {
		dec, err := perf.NewDecoder(opts.Format)
		if err != nil {
			records := make([]perf.Record, len(assignments))
			for i, a := range assignments {
				records[i] = perf.Record{Scheme: a.Scheme, Trial: a.Trial, Worker: a.Worker.String(), Err: err}
			}
			return records
		}
		opts.Decoder = dec
	}

	records := make([]perf.Record, len(assignments))
	jobs := make([]Job, len(assignments))
	for i, a := range assignments {
		jobs[i] = func() error {
			records[i] = RunTrial(ctx, exec, a, &opts)
			return records[i].Err
		}
	}
	RunPool(len(jobs), jobs)
	return records
}

// RunTrial runs one assignment and decodes its payload.
func RunTrial(ctx context.Context, exec fleet.Executor, a Assignment, opts *TrialOpts) perf.Record {
	rec := perf.Record{Scheme: a.Scheme, Trial: a.Trial, Worker: a.Worker.String()}
	log := logrus.WithFields(logrus.Fields{"scheme": a.Scheme, "trial": a.Trial, "worker": rec.Worker})

	var trialDir string
	if opts.RunDir != "" {
		trialDir = result.TrialDir(opts.RunDir, a.Scheme, a.Trial)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	payload, err := exec.RunTrial(ctx, a.Worker, fleet.Trial{
		Scheme: a.Scheme,
		Num:    a.Trial,
		Params: opts.Params,
		Format: opts.Format,
		Dir:    trialDir,
	})
	duration := time.Since(start)
	timedOut := err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)

	if err == nil {
		if trialDir != "" {
			if werr := result.WritePayload(trialDir, payload); werr != nil {
				log.Warnf("storing payload: %v", werr)
			}
		}
		rec.Flows, err = opts.Decoder.Decode(payload)
	}
	rec.Err = err
	if err != nil {
		log.Warnf("trial yielded no data: %v", err)
	} else {
		log.Debugf("trial completed in %s", duration.Round(time.Second))
	}

	if trialDir != "" {
		meta := &result.TrialMeta{
			Scheme:     a.Scheme,
			Trial:      a.Trial,
			Worker:     rec.Worker,
			Params:     opts.Params.String(),
			DurationS:  duration.Seconds(),
			ExitReason: ExitReason(err, timedOut),
			Flows:      rec.Flows,
		}
		if err != nil {
			meta.Error = err.Error()
		}
		if werr := result.WriteTrialMeta(trialDir, meta); werr != nil {
			log.Warnf("writing meta: %v", werr)
		}
	}
	return rec
}
