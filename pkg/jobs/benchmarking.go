package jobs

import (
	"context"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/services"
)

// BenchmarkRunner scores stored forecasts against observations.
type BenchmarkRunner interface {
	RunBenchmark(ctx context.Context, now time.Time) (services.BenchmarkReport, error)
}

// BenchmarkingJob writes error scores for recent forecasts. Errors end the run as a controlled abort.
type BenchmarkingJob struct {
	runner BenchmarkRunner
}

func NewBenchmarkingJob(runner BenchmarkRunner) *BenchmarkingJob {
	return &BenchmarkingJob{runner: runner}
}

// ShouldStart vetoes the run when no forecast store can be queried.
func (j *BenchmarkingJob) ShouldStart(ctx context.Context, _ time.Time) bool {
	if j.runner == nil {
		logger.WithContext(ctx, "benchmarking").Debug().
			Str("action", "benchmark_disabled").
			Msg("No forecast store to benchmark")
		return false
	}
	return true
}

func (j *BenchmarkingJob) Start(ctx context.Context, tickTime time.Time) (bool, error) {
	log := logger.WithContext(ctx, "benchmarking")

	// forced runs bypass the gate
	if j.runner == nil {
		log.Warn().
			Str("action", "benchmark_disabled").
			Msg("No forecast store to benchmark, aborting")
		return false, nil
	}

	report, err := j.runner.RunBenchmark(ctx, tickTime)
	if err != nil {
		log.Warn().
			Err(err).
			Str("action", "benchmark_failed").
			Int("written", report.Written).
			Msg("Benchmark failed")
		return false, nil
	}

	for _, s := range report.Summaries {
		log.Debug().
			Str("model", s.Model).
			Str("feature", s.Feature).
			Str("horizon", s.Horizon).
			Int("count", s.Count).
			Float64("mae", s.MAE).
			Float64("rmse", s.RMSE).
			Msg("Benchmark summary")
	}
	log.Info().
		Str("action", "benchmark_complete").
		Time("end", report.End).
		Int("written", report.Written).
		Msg("Benchmark written")
	return true, nil
}

func (j *BenchmarkingJob) CleanUpAfterError(context.Context) error {
	return nil
}
