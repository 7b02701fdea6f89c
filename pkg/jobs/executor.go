package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/metrics"
	"github.com/fogcast/cron-runner/pkg/notify"
)

// Executor runs a single job inside a failure boundary.
// Nothing a job does (error, panic, failing cleanup) escapes Execute.
type Executor struct {
	notifier notify.Notifier
	locker   JobLocker
	now      func() time.Time
}

// NewExecutor creates an executor. A nil notifier disables alerts.
func NewExecutor(notifier notify.Notifier) *Executor {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Executor{
		notifier: notifier,
		now:      time.Now,
	}
}

// WithLocker makes every execution take a lock named after the job first.
// A job locked elsewhere is skipped.
func (e *Executor) WithLocker(l JobLocker) *Executor {
	e.locker = l
	return e
}

// Execute runs d once for the tick. forced bypasses the job's own gate.
func (e *Executor) Execute(ctx context.Context, d Descriptor, tickTime time.Time, forced bool) Result {
	log := logger.WithContext(ctx, "scheduler").WithJob(d.Name)
	result := Result{
		Job:       d.Name,
		Interval:  d.Interval,
		Outcome:   OutcomePending,
		StartedAt: e.now(),
	}

	log.Info().
		Str("action", "job_check").
		Bool("forced", forced).
		Msg("Check")

	job, err := construct(d)
	if err != nil {
		return e.fail(ctx, log, result, nil, err)
	}

	gate := forced
	if !gate {
		gate, err = shouldStart(ctx, job, tickTime)
		if err != nil {
			return e.fail(ctx, log, result, job, err)
		}
	}
	if !gate {
		result.Outcome = OutcomeSkipped
		result.Duration = e.now().Sub(result.StartedAt)
		log.Info().
			Str("action", "job_skipped").
			Dur("duration", result.Duration).
			Msg("Nothing to do")
		metrics.JobOutcomes.WithLabelValues(d.Name, result.Outcome.String()).Inc()
		return result
	}

	if e.locker != nil {
		unlock, acquired, err := e.locker.TryLock(ctx, d.Name)
		if err != nil {
			return e.fail(ctx, log, result, job, err)
		}
		if !acquired {
			result.Outcome = OutcomeSkipped
			result.Duration = e.now().Sub(result.StartedAt)
			log.Warn().
				Str("action", "job_locked").
				Dur("duration", result.Duration).
				Msg("Job is running elsewhere, skipping")
			metrics.JobOutcomes.WithLabelValues(d.Name, result.Outcome.String()).Inc()
			return result
		}
		defer unlock()
	}

	log.LogJobStart(d.Name, d.Interval)

	ok, err := start(ctx, job, tickTime)
	if err != nil {
		return e.fail(ctx, log, result, job, err)
	}

	if !ok {
		result.Outcome = OutcomeControlledAbort
		log.Warn().
			Str("action", "job_controlled_abort").
			Msg("Controlled abort")
		e.cleanUp(ctx, log, job)
	} else {
		result.Outcome = OutcomeSucceeded
	}

	return e.finish(log, result)
}

func (e *Executor) fail(ctx context.Context, log *logger.Logger, result Result, job Job, err error) Result {
	result.Outcome = OutcomeFailed
	result.Err = err

	log.Error().
		Err(err).
		Str("action", "job_failed").
		Msg("Abort due to error in job")

	if job != nil {
		e.cleanUp(ctx, log, job)
	}

	e.notifier.Notify(ctx, notify.FormatJobFailure(result.Job, err, e.now()))

	return e.finish(log, result)
}

func (e *Executor) finish(log *logger.Logger, result Result) Result {
	result.Duration = e.now().Sub(result.StartedAt)

	log.Info().
		Str("action", "job_finished").
		Str("outcome", result.Outcome.String()).
		Dur("duration", result.Duration).
		Msg("Finished")

	metrics.JobOutcomes.WithLabelValues(result.Job, result.Outcome.String()).Inc()
	metrics.JobDuration.WithLabelValues(result.Job).Observe(result.Duration.Seconds())
	return result
}

// cleanUp is best effort: its errors and panics are logged, never returned.
func (e *Executor) cleanUp(ctx context.Context, log *logger.Logger, job Job) {
	err := guard(func() error { return job.CleanUpAfterError(ctx) })
	if err != nil {
		log.Warn().
			Err(err).
			Str("action", "job_cleanup_failed").
			Msg("Clean up after error failed")
		return
	}
	log.Debug().
		Str("action", "job_cleanup").
		Msg("Clean up after error done")
}

func construct(d Descriptor) (job Job, err error) {
	err = guard(func() error {
		var ferr error
		job, ferr = d.New()
		if ferr == nil && job == nil {
			ferr = fmt.Errorf("factory for %s returned no job", d.Name)
		}
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job %s: %w", d.Name, err)
	}
	return job, nil
}

func shouldStart(ctx context.Context, job Job, tickTime time.Time) (ok bool, err error) {
	err = guard(func() error {
		ok = job.ShouldStart(ctx, tickTime)
		return nil
	})
	return ok, err
}

func start(ctx context.Context, job Job, tickTime time.Time) (ok bool, err error) {
	err = guard(func() error {
		var serr error
		ok, serr = job.Start(ctx, tickTime)
		return serr
	})
	return ok, err
}

// PanicError is returned when a job panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
