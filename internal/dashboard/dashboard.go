// Package dashboard assembles the data behind the dashboard page: every
// source is read concurrently for a trailing window, then pivoted into daily
// records and activity heatmaps in one synchronous pass.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/dayboard/internal/aggregate"
	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/pkg/models"
)

// Series names, also reported in Unavailable
const (
	SeriesCheckIns  = "checkins"
	SeriesMarket    = "market"
	SeriesWeather   = "weather"
	SeriesBiometric = "biometric"
	SeriesScripture = "scripture"
	SeriesPersonal  = "personal"
)

var series = []string{SeriesCheckIns, SeriesMarket, SeriesWeather, SeriesBiometric, SeriesScripture, SeriesPersonal}

// Reader is the storage the dashboard reads from
type Reader interface {
	ListCheckIns(ctx context.Context, userID, since string) ([]models.CheckIn, error)
	ListMarketSnapshots(ctx context.Context, since string) ([]models.MarketSnapshot, error)
	ListWeatherSnapshots(ctx context.Context, since string) ([]models.WeatherSnapshot, error)
	ListBiometricSnapshots(ctx context.Context, since string) ([]models.BiometricSnapshot, error)
	ListScriptureReadings(ctx context.Context, userID string, since time.Time) ([]models.ScriptureReading, error)
	ListPersonalCheckIns(ctx context.Context, userID, since string) ([]models.PersonalCheckIn, error)
}

// Service loads dashboards
type Service struct {
	Store       Reader
	Location    *time.Location
	Now         func() time.Time
	ChartDays   int
	HeatmapDays int
	Log         logrus.FieldLogger
}

// Heatmaps holds one trailing activity window per event type
type Heatmaps struct {
	CheckIn   []aggregate.ActivityDay `json:"checkin"`
	Scripture []aggregate.ActivityDay `json:"scripture"`
	Personal  []aggregate.ActivityDay `json:"personal"`
}

// Dashboard is the transient result of one load; it is never stored
type Dashboard struct {
	Today    string             `json:"today"`
	Daily    []aggregate.Record `json:"daily"`
	Heatmaps Heatmaps           `json:"heatmaps"`
	// Unavailable lists series whose read failed; they render as empty
	Unavailable []string `json:"unavailable,omitempty"`
}

type inputs struct {
	checkIns  []models.CheckIn
	market    []models.MarketSnapshot
	weather   []models.WeatherSnapshot
	biometric []models.BiometricSnapshot
	readings  []models.ScriptureReading
	personal  []models.PersonalCheckIn
	errs      map[string]error
}

// Load reads every series for userID and aggregates it. A failed read only
// empties its own series.
func (s *Service) Load(ctx context.Context, userID string) (*Dashboard, error) {
	today := calendar.Today(s.Now, s.Location)
	chartDays, heatmapDays := s.windows()
	chartSince, err := calendar.AddDays(today, -(chartDays - 1))
	if err != nil {
		return nil, err
	}
	heatmapSince, err := calendar.AddDays(today, -(heatmapDays - 1))
	if err != nil {
		return nil, err
	}
	since := min(chartSince, heatmapSince)
	sinceInstant, err := calendar.StartOfDay(since, s.Location)
	if err != nil {
		return nil, err
	}

	in := s.read(ctx, userID, since, sinceInstant)

	d := &Dashboard{Today: today}
	for _, name := range series {
		if err := in.errs[name]; err != nil {
			s.log().WithFields(logrus.Fields{"series": name, "user": userID}).WithError(err).Warn("dashboard read failed")
			d.Unavailable = append(d.Unavailable, name)
		}
	}

	for _, rec := range s.daily(in) {
		if rec.Date >= chartSince {
			d.Daily = append(d.Daily, rec)
		}
	}
	if d.Heatmaps, err = s.heatmaps(in, today, heatmapDays); err != nil {
		return nil, fmt.Errorf("building heatmaps: %w", err)
	}
	return d, nil
}

func (s *Service) windows() (chart, heatmap int) {
	chart, heatmap = s.ChartDays, s.HeatmapDays
	if chart <= 0 {
		chart = 30
	}
	if heatmap <= 0 {
		heatmap = aggregate.HeatmapDays
	}
	return chart, heatmap
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// read issues every source read concurrently and waits for all of them
func (s *Service) read(ctx context.Context, userID, since string, sinceInstant time.Time) *inputs {
	in := &inputs{errs: make(map[string]error)}
	var (
		g    errgroup.Group
		errs = make([]error, len(series))
	)
	g.Go(func() error {
		in.checkIns, errs[0] = s.Store.ListCheckIns(ctx, userID, since)
		return nil
	})
	g.Go(func() error {
		in.market, errs[1] = s.Store.ListMarketSnapshots(ctx, since)
		return nil
	})
	g.Go(func() error {
		in.weather, errs[2] = s.Store.ListWeatherSnapshots(ctx, since)
		return nil
	})
	g.Go(func() error {
		in.biometric, errs[3] = s.Store.ListBiometricSnapshots(ctx, since)
		return nil
	})
	g.Go(func() error {
		in.readings, errs[4] = s.Store.ListScriptureReadings(ctx, userID, sinceInstant)
		return nil
	})
	g.Go(func() error {
		in.personal, errs[5] = s.Store.ListPersonalCheckIns(ctx, userID, since)
		return nil
	})
	_ = g.Wait()

	for i, name := range series {
		if errs[i] != nil {
			in.errs[name] = errs[i]
		}
	}
	return in
}

func (s *Service) daily(in *inputs) []aggregate.Record {
	return aggregate.Merge(
		aggregate.From(SeriesCheckIns, in.checkIns,
			func(c models.CheckIn) string { return c.Date },
			func(c models.CheckIn, f aggregate.Fields) { f.Set(string(c.Type), float64(c.MoodRating)) }),
		aggregate.From(SeriesMarket, in.market,
			func(m models.MarketSnapshot) string { return m.Date },
			func(m models.MarketSnapshot, f aggregate.Fields) { f.Set(m.Symbol, m.Close) }),
		aggregate.From(SeriesWeather, in.weather,
			func(w models.WeatherSnapshot) string { return w.Date },
			func(w models.WeatherSnapshot, f aggregate.Fields) {
				f.Set("feels_like_max_f", w.FeelsLikeMaxF)
				f.Set("feels_like_min_f", w.FeelsLikeMinF)
				f.Set("precipitation_in", w.PrecipitationIn)
				f.Set("daylight_hours", w.DaylightHours)
			}),
		aggregate.From(SeriesBiometric, in.biometric,
			func(b models.BiometricSnapshot) string { return b.Date },
			assignBiometric),
		aggregate.From(SeriesScripture, in.readings,
			func(r models.ScriptureReading) string { return calendar.Day(r.ReadAt, s.Location) },
			func(r models.ScriptureReading, f aggregate.Fields) {
				f.Add("readings", 1)
				f.Add("chapters_read", float64(r.ChapterCount()))
			}),
		aggregate.From(SeriesPersonal, in.personal,
			func(p models.PersonalCheckIn) string { return p.Date },
			func(p models.PersonalCheckIn, f aggregate.Fields) {
				if p.Value {
					f.Set("personal", 1)
				} else {
					f.Set("personal", 0)
				}
			}),
	)
}

func assignBiometric(b models.BiometricSnapshot, f aggregate.Fields) {
	f.SetInt("sleep_score", b.SleepScore)
	f.SetInt("total_sleep_seconds", b.TotalSleepSeconds)
	f.SetInt("deep_sleep_seconds", b.DeepSleepSeconds)
	f.SetInt("rem_sleep_seconds", b.RemSleepSeconds)
	f.SetInt("light_sleep_seconds", b.LightSleepSeconds)
	f.SetFloat("average_hrv", b.AverageHRV)
	f.SetFloat("average_heart_rate", b.AverageHeartRate)
	f.SetInt("sleep_efficiency", b.SleepEfficiency)
	f.SetInt("readiness_score", b.ReadinessScore)
	f.SetFloat("temperature_deviation", b.TemperatureDeviation)
	f.SetInt("stress_high_minutes", b.StressHighMinutes)
	f.SetInt("recovery_high_minutes", b.RecoveryHighMinutes)
}

func (s *Service) heatmaps(in *inputs, today string, days int) (Heatmaps, error) {
	checkIns := aggregate.NewActivitySet()
	for _, c := range in.checkIns {
		checkIns.Add(c.Date)
	}
	scripture := aggregate.NewActivitySet()
	for _, r := range in.readings {
		scripture.Add(calendar.Day(r.ReadAt, s.Location))
	}
	personal := aggregate.NewActivitySet()
	for _, p := range in.personal {
		if p.Value {
			personal.Add(p.Date)
		}
	}

	var h Heatmaps
	var err error
	if h.CheckIn, err = aggregate.Trailing(today, days, checkIns); err != nil {
		return h, err
	}
	if h.Scripture, err = aggregate.Trailing(today, days, scripture); err != nil {
		return h, err
	}
	if h.Personal, err = aggregate.Trailing(today, days, personal); err != nil {
		return h, err
	}
	return h, nil
}
