// Package ingest runs the fetch -> normalize -> upsert pipelines that turn
// third-party daily series into stored snapshots.
//
// Each job is stateless between invocations and safe to re-run for the same
// date: storage replaces rows by natural key, so the last run wins.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/internal/config"
	"github.com/jgoulah/dayboard/internal/database"
	"github.com/jgoulah/dayboard/internal/fetcher"
	"github.com/jgoulah/dayboard/pkg/models"
)

// Job is one triggerable ingestion pipeline
type Job interface {
	Source() models.Source
	Run(ctx context.Context) Summary
}

// run tracks the state machine of a single invocation
type run struct {
	summary Summary
	log     logrus.FieldLogger
	start   time.Time
}

func newRun(source models.Source, date string, log logrus.FieldLogger) *run {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &run{
		summary: Summary{Source: source, Date: date, Status: StatusIdle},
		log:     log.WithFields(logrus.Fields{"source": source, "date": date}),
		start:   time.Now(),
	}
}

func (r *run) enter(s Status) {
	r.summary.Status = s
	r.log.WithField("status", s).Debug("ingest state")
}

func (r *run) fail(err error) Summary {
	r.summary.Err = err
	r.summary.Rows = nil
	r.summary.Upserted = 0
	r.enter(StatusFailed)
	r.log.WithError(err).Error("ingest failed")
	return r.finish()
}

func (r *run) noData(msg string) Summary {
	r.summary.Message = msg
	r.enter(StatusNoData)
	r.log.Info(msg)
	return r.finish()
}

func (r *run) succeed(rows []models.Snapshot, failed []string) Summary {
	r.summary.Rows = rows
	r.summary.Upserted = len(rows)
	r.summary.Failed = failed
	if len(failed) > 0 {
		r.enter(StatusPartiallySucceeded)
	} else {
		r.enter(StatusSucceeded)
	}
	r.log.WithFields(logrus.Fields{"upserted": len(rows), "failed": failed}).Info("ingest finished")
	return r.finish()
}

func (r *run) finish() Summary {
	r.summary.Duration = time.Since(r.start)
	return r.summary
}

// RunAll runs jobs concurrently. Jobs are independent: a failure in one never
// affects another. Summaries are returned in the order of jobs.
func RunAll(ctx context.Context, jobs ...Job) []Summary {
	summaries := make([]Summary, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			summaries[i] = job.Run(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return summaries
}

// Deps carries what a job needs at invocation time. Jobs are built fresh per
// invocation from it; nothing is shared between runs except the store.
type Deps struct {
	Config  *config.Config
	Store   *database.DB
	Log     logrus.FieldLogger
	Metrics *Metrics
	Now     func() time.Time
}

// New builds the job for source. A missing credential fails fast with
// config.ErrMissingCredential before any request is made.
func New(source models.Source, d Deps) (Job, error) {
	cfg := d.Config
	loc := cfg.Location()
	client := fetcher.NewHTTPClient(cfg.GetHTTPTimeout())
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	switch source {
	case models.SourceMarket:
		key, err := cfg.MarketAPIKey()
		if err != nil {
			return nil, err
		}
		return &MarketJob{
			Client:   fetcher.NewMarketClient(cfg.GetMarketBaseURL(), key, client, loc),
			Store:    d.Store,
			Symbols:  cfg.GetSymbols(),
			Location: loc,
			Now:      d.Now,
			Log:      log,
			Metrics:  d.Metrics,
		}, nil
	case models.SourceWeather:
		return &WeatherJob{
			Client:   fetcher.NewWeatherClient(cfg.GetWeatherBaseURL(), loc.String(), client),
			Store:    d.Store,
			Default:  cfg.GetDefaultLocation(),
			Location: loc,
			Now:      d.Now,
			Log:      log,
			Metrics:  d.Metrics,
		}, nil
	case models.SourceBiometric:
		token, err := cfg.BiometricToken()
		if err != nil {
			return nil, err
		}
		return &BiometricJob{
			Client:   fetcher.NewBiometricClient(cfg.GetBiometricBaseURL(), token, client, log),
			Store:    d.Store,
			Location: loc,
			Now:      d.Now,
			Log:      log,
			Metrics:  d.Metrics,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source: %s", source)
	}
}

// Trigger builds and runs the job for source, turning a build failure into a
// failed summary so callers always get one result shape
func Trigger(ctx context.Context, source models.Source, d Deps) Summary {
	job, err := New(source, d)
	if err != nil {
		s := Failure(source, calendar.Today(d.Now, d.Config.Location()), err)
		d.Metrics.observe(s)
		return s
	}
	return job.Run(ctx)
}
