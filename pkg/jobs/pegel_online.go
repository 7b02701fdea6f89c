package jobs

import (
	"context"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/services"
	"github.com/fogcast/cron-runner/pkg/storage"
	"github.com/fogcast/cron-runner/pkg/utils"
)

// PegelOnlineStations are the gauges recorded on every run.
var PegelOnlineStations = []models.Station{models.KonstanzRhein, models.KonstanzBodensee}

// PegelOnlineJob records the water levels of the Konstanz gauges.
// Any error ends the run as a controlled abort; upstream outages are expected and not alerted.
type PegelOnlineJob struct {
	BaseJob
	fetcher   services.WaterLevelFetcher
	writer    storage.PointWriter
	stations  []models.Station
	period    models.Period
	batchSize int
}

func NewPegelOnlineJob(fetcher services.WaterLevelFetcher, writer storage.PointWriter, period models.Period, batchSize int) *PegelOnlineJob {
	if period == "" {
		period = models.PeriodLast24Hours
	}
	return &PegelOnlineJob{
		fetcher:   fetcher,
		writer:    writer,
		stations:  PegelOnlineStations,
		period:    period,
		batchSize: batchSize,
	}
}

func (j *PegelOnlineJob) Start(ctx context.Context, _ time.Time) (bool, error) {
	log := logger.WithContext(ctx, "pegel-online")

	for _, station := range j.stations {
		levels, err := j.fetcher.WaterLevels(ctx, station, j.period)
		if err != nil {
			log.Warn().
				Err(err).
				Str("action", "fetch_water_levels").
				Str("station", utils.GenerateStationSlug(station.Name)).
				Msg("Unable to fetch water levels")
			return false, nil
		}

		written, err := storage.WriteBatched(ctx, j.writer, storage.WaterLevelPoints(station, levels), j.batchSize)
		if err != nil {
			log.Warn().
				Err(err).
				Str("action", "write_water_levels").
				Str("station", utils.GenerateStationSlug(station.Name)).
				Msg("Unable to write water levels")
			return false, nil
		}

		log.Info().
			Str("action", "water_levels").
			Str("station", utils.GenerateStationSlug(station.Name)).
			Int("points", written).
			Msg("Water levels written")
	}
	return true, nil
}

func (j *PegelOnlineJob) CleanUpAfterError(context.Context) error {
	return nil
}
