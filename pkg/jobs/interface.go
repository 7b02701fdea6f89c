package jobs

import (
	"context"
	"time"
)

// Job is a unit of work run by the Scheduler within a tick.
// A fresh instance is created for every execution, so implementations may keep per-run state.
type Job interface {
	// ShouldStart lets a job veto its own execution. It must not have side effects when returning false.
	ShouldStart(ctx context.Context, tickTime time.Time) bool

	// Start performs the work. Returning false without an error is a controlled abort,
	// a recognized stop condition. A non-nil error is an unexpected failure.
	Start(ctx context.Context, tickTime time.Time) (bool, error)

	// CleanUpAfterError rolls back partial side effects after a controlled abort or a failure.
	// It must be idempotent.
	CleanUpAfterError(ctx context.Context) error
}

// BaseJob provides the default gate. Embed it in jobs that always run when due.
type BaseJob struct{}

func (BaseJob) ShouldStart(context.Context, time.Time) bool { return true }

// Factory creates a job instance for one execution.
type Factory func() (Job, error)

// Descriptor identifies a job type in the registry. It is immutable once registered.
type Descriptor struct {
	Name     string
	Interval int // minutes
	New      Factory
}
