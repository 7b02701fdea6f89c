package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/metrics"
)

// StartMarker is logged first in every tick. The status surface uses it to find the latest tick in the log.
const StartMarker = "scheduler started"

// Scheduler selects the jobs due in a tick and runs them one after another.
// Besides the registry and the override, both fixed at startup, it keeps no state between ticks.
type Scheduler struct {
	registry *Registry
	executor *Executor
	logger   *logger.Logger

	override    string
	hasOverride bool

	newRunID func() string
}

func NewScheduler(registry *Registry, executor *Executor) *Scheduler {
	return &Scheduler{
		registry: registry,
		executor: executor,
		logger:   logger.New("scheduler"),
		newRunID: func() string { return uuid.New().String() },
	}
}

// WithLogger replaces the scheduler logger; job logs inherit it through the context.
func (s *Scheduler) WithLogger(l *logger.Logger) *Scheduler {
	s.logger = l
	return s
}

// Registry returns the job table
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Override returns the forced job name, if one was set.
func (s *Scheduler) Override() (string, bool) {
	return s.override, s.hasOverride
}

// ApplyArguments applies operator arguments. Any error is fatal: the caller must not call Run.
func (s *Scheduler) ApplyArguments(args []string) error {
	parsed, err := ParseArguments(args)
	for _, arg := range parsed {
		s.logger.Info().
			Str("action", "apply_argument").
			Str("key", arg.Key).
			Str("value", arg.Value).
			Msg("Applying argument")

		switch arg.Key {
		case ArgDummy:
			s.logger.Info().
				Str("value", arg.Value).
				Msg("Dummy argument recognized, nothing to do")
		case ArgRunSingleJobNow:
			s.override = arg.Value
			s.hasOverride = true
		}
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("action", "invalid_argument").
			Msg("Invalid argument, aborting")
		return err
	}
	return nil
}

// DueJobs returns the jobs of every interval that divides the minute of t, ascending by interval.
// A job listed under several qualifying intervals is returned once per interval.
func (s *Scheduler) DueJobs(t time.Time) []Descriptor {
	minute := t.Minute()

	var due []Descriptor
	for _, b := range s.registry.buckets {
		if minute%b.Interval == 0 {
			due = append(due, b.Jobs...)
		}
	}
	return due
}

// OverrideJob finds a job by exact name. A missing job is logged and yields an empty selection.
func (s *Scheduler) OverrideJob(name string) []Descriptor {
	for _, d := range s.registry.All() {
		if d.Name == name {
			return []Descriptor{d}
		}
	}

	s.logger.Error().
		Str("action", "job_not_found").
		Str("job_name", name).
		Strs("available_jobs", s.registry.Names()).
		Msgf("Job '%s' was not found", name)
	return nil
}

// Run executes one tick. tickTime is handed to every job so that all jobs of a tick
// see the same instant, however long the earlier ones take.
func (s *Scheduler) Run(ctx context.Context, tickTime time.Time) TickReport {
	report := TickReport{
		RunID:    s.newRunID(),
		TickTime: tickTime,
		Override: s.override,
	}

	log := s.logger.WithRunID(report.RunID)
	ctx = log.ToContext(ctx)
	metrics.TicksTotal.Inc()

	log.Info().
		Str("action", "tick_start").
		Time("tick_time", tickTime).
		Msg(StartMarker)
	log.Info().
		Int("hour", tickTime.Hour()).
		Int("minute", tickTime.Minute()).
		Bool("override", s.hasOverride).
		Msg("Tick time")

	selected, err := s.selectJobs(tickTime)
	if err != nil {
		metrics.TickFailures.Inc()
		log.Error().
			Err(err).
			Str("action", "tick_failed").
			Msg("Abort due to error in scheduler logic")
		report.Err = err
		return report
	}

	for _, d := range selected {
		report.Results = append(report.Results, s.executor.Execute(ctx, d, tickTime, s.hasOverride))
	}

	log.Info().
		Str("action", "tick_complete").
		Int("jobs", len(report.Results)).
		Int("succeeded", report.Count(OutcomeSucceeded)).
		Int("skipped", report.Count(OutcomeSkipped)).
		Int("controlled_aborts", report.Count(OutcomeControlledAbort)).
		Int("failed", report.Count(OutcomeFailed)).
		Msg("Tick completed")

	return report
}

func (s *Scheduler) selectJobs(tickTime time.Time) (selected []Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			selected = nil
			err = fmt.Errorf("selecting jobs: %v", r)
		}
	}()

	if s.registry == nil {
		return nil, fmt.Errorf("selecting jobs: no registry")
	}
	if s.hasOverride {
		return s.OverrideJob(s.override), nil
	}
	return s.DueJobs(tickTime), nil
}
