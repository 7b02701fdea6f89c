package jobs

import "time"

// Outcome is the terminal state of one job within one tick.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSkipped
	OutcomeSucceeded
	OutcomeControlledAbort
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeControlledAbort:
		return "controlled_abort"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Result records what happened to one job in a tick. Err is set only for OutcomeFailed.
type Result struct {
	Job       string
	Interval  int
	Outcome   Outcome
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// TickReport summarizes one scheduler invocation.
type TickReport struct {
	RunID    string
	TickTime time.Time
	Override string
	Results  []Result
	// Err is set when the tick failed before any job was executed.
	Err error
}

// Count returns how many results ended in outcome o.
func (r TickReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
