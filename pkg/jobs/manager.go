package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fogcast/cron-runner/pkg/logger"
)

// EveryMinute is the trigger used when no external timer invokes the scheduler.
const EveryMinute = "* * * * *"

// TickRunner runs one scheduler tick
type TickRunner interface {
	Run(ctx context.Context, tickTime time.Time) TickReport
}

// JobManager triggers ticks from inside the process
type JobManager interface {
	// Start begins triggering ticks according to the schedule
	Start()

	// Stop stops triggering and waits for a running tick to finish
	Stop()
}

type cronJobManager struct {
	cron   *cron.Cron
	runner TickRunner
	logger *logger.Logger
}

// NewJobManager creates a manager that calls runner.Run on every match of schedule.
// A tick still running when the next one is due causes that next one to be skipped, so ticks never overlap.
func NewJobManager(runner TickRunner, schedule string) (JobManager, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}

	log := logger.New("job-manager")
	cronLog := cronLogger{log: log}

	m := &cronJobManager{
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runner: runner,
		logger: log,
	}

	_, err := m.cron.AddFunc(schedule, func() {
		report := m.runner.Run(context.Background(), time.Now())
		if report.Err != nil {
			m.logger.Error().
				Err(report.Err).
				Str("run_id", report.RunID).
				Msg("Tick failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule ticks with %q: %w", schedule, err)
	}

	return m, nil
}

func (m *cronJobManager) Start() {
	m.logger.Info().
		Str("action", "start").
		Msg("Starting job manager")
	m.cron.Start()
}

func (m *cronJobManager) Stop() {
	m.logger.Info().
		Str("action", "stop_initiated").
		Msg("Stopping job manager...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info().
		Str("action", "stopped").
		Msg("Job manager stopped")
}

// cronLogger adapts the zerolog wrapper to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
