package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/pkg/models"
)

// DailyWeather fetches one day of weather for a location
type DailyWeather interface {
	Daily(ctx context.Context, date string, loc models.Location) (models.WeatherSnapshot, error)
}

// WeatherStore writes weather snapshots and knows the configured location
type WeatherStore interface {
	UpsertWeatherSnapshot(ctx context.Context, w models.WeatherSnapshot) error
	LatestLocation(ctx context.Context) (*models.Location, error)
}

// WeatherJob ingests today's weather at the most recently configured location
type WeatherJob struct {
	Client   DailyWeather
	Store    WeatherStore
	Default  models.Location
	Location *time.Location
	Now      func() time.Time
	Log      logrus.FieldLogger
	Metrics  *Metrics
}

func (j *WeatherJob) Source() models.Source { return models.SourceWeather }

// Run fetches and stores the day's weather
func (j *WeatherJob) Run(ctx context.Context) Summary {
	r := newRun(models.SourceWeather, calendar.Today(j.Now, j.Location), j.Log)
	s := j.run(ctx, r)
	j.Metrics.observe(s)
	return s
}

// resolveLocation falls back to the default when no user has set a location
// or the lookup itself fails
func (j *WeatherJob) resolveLocation(ctx context.Context, log logrus.FieldLogger) models.Location {
	loc, err := j.Store.LatestLocation(ctx)
	if err != nil {
		log.WithError(err).Warn("location lookup failed, using default")
		return j.Default
	}
	if loc == nil {
		return j.Default
	}
	return *loc
}

func (j *WeatherJob) run(ctx context.Context, r *run) Summary {
	r.enter(StatusFetching)
	at := j.resolveLocation(ctx, r.log)
	r.log.WithFields(logrus.Fields{"lat": at.Lat, "lon": at.Lon}).Debug("weather location")

	w, err := j.Client.Daily(ctx, r.summary.Date, at)
	if err != nil {
		return r.fail(fmt.Errorf("fetching weather: %w", err))
	}

	r.enter(StatusNormalizing)
	w.Date = r.summary.Date

	r.enter(StatusUpserting)
	if err := j.Store.UpsertWeatherSnapshot(ctx, w); err != nil {
		return r.fail(fmt.Errorf("storing weather snapshot: %w", err))
	}
	return r.succeed([]models.Snapshot{w}, nil)
}
