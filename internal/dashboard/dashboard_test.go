package dashboard

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/dayboard/internal/aggregate"
	"github.com/jgoulah/dayboard/internal/database"
	"github.com/jgoulah/dayboard/pkg/models"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

// 15:00 EDT on 2024-03-28
func afternoon() time.Time { return time.Date(2024, 3, 28, 19, 0, 0, 0, time.UTC) }

func seed(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "dash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	for _, c := range []models.CheckIn{
		{UserID: "u1", Date: "2024-03-10", Type: models.Morning, MoodRating: 6},
		{UserID: "u1", Date: "2024-03-27", Type: models.Morning, MoodRating: 7},
		{UserID: "u1", Date: "2024-03-27", Type: models.Evening, MoodRating: 4},
		{UserID: "u1", Date: "2024-03-28", Type: models.Morning, MoodRating: 8},
		{UserID: "u2", Date: "2024-03-28", Type: models.Morning, MoodRating: 1},
	} {
		require.NoError(t, db.UpsertCheckIn(ctx, c))
	}
	require.NoError(t, db.UpsertMarketSnapshots(ctx, []models.MarketSnapshot{
		{Date: "2024-03-27", Symbol: "VOO", Close: 470.5},
		{Date: "2024-03-27", Symbol: "VXX", Close: 13.2},
	}))
	require.NoError(t, db.UpsertWeatherSnapshot(ctx, models.WeatherSnapshot{
		Date: "2024-03-28", FeelsLikeMaxF: 55, FeelsLikeMinF: 40, PrecipitationIn: 0.1, DaylightHours: 12.4,
	}))
	score := 81
	require.NoError(t, db.UpsertBiometricSnapshot(ctx, models.BiometricSnapshot{Date: "2024-03-28", SleepScore: &score}))
	// 22:00 EDT on the 27th
	require.NoError(t, db.InsertScriptureReading(ctx, models.ScriptureReading{
		ID: "r1", UserID: "u1", ReadAt: time.Date(2024, 3, 28, 2, 0, 0, 0, time.UTC),
		Selections: []models.Selection{{Book: "John", Chapters: []int{1, 2, 3}}},
	}))
	require.NoError(t, db.UpsertPersonalCheckIn(ctx, models.PersonalCheckIn{UserID: "u1", Date: "2024-03-26", Value: true}))
	require.NoError(t, db.UpsertPersonalCheckIn(ctx, models.PersonalCheckIn{UserID: "u1", Date: "2024-03-28", Value: false}))
	return db
}

func TestLoadDashboard(t *testing.T) {
	svc := &Service{
		Store:       seed(t),
		Location:    newYork(t),
		Now:         afternoon,
		ChartDays:   7,
		HeatmapDays: aggregate.HeatmapDays,
		Log:         quietLogger(),
	}

	d, err := svc.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-28", d.Today)
	assert.Empty(t, d.Unavailable)

	// the 03-10 check-in is outside the chart window
	require.Len(t, d.Daily, 3)
	assert.Equal(t, aggregate.Record{Date: "2024-03-26", Fields: aggregate.Fields{"personal": 1}}, d.Daily[0])
	assert.Equal(t, aggregate.Record{Date: "2024-03-27", Fields: aggregate.Fields{
		"morning": 7, "evening": 4, "VOO": 470.5, "VXX": 13.2, "readings": 1, "chapters_read": 3,
	}}, d.Daily[1])
	assert.Equal(t, aggregate.Record{Date: "2024-03-28", Fields: aggregate.Fields{
		"morning": 8, "feels_like_max_f": 55, "feels_like_min_f": 40, "precipitation_in": 0.1,
		"daylight_hours": 12.4, "sleep_score": 81, "personal": 0,
	}}, d.Daily[2])

	require.Len(t, d.Heatmaps.CheckIn, 28)
	assert.Equal(t, "2024-03-01", d.Heatmaps.CheckIn[0].Date)
	assert.Equal(t, "2024-03-28", d.Heatmaps.CheckIn[27].Date)
	assert.Equal(t, 3, aggregate.ActiveCount(d.Heatmaps.CheckIn))
	assert.True(t, d.Heatmaps.CheckIn[9].Active, "2024-03-10")

	assert.Equal(t, 1, aggregate.ActiveCount(d.Heatmaps.Scripture))
	assert.True(t, d.Heatmaps.Scripture[26].Active, "2024-03-27")

	// a false personal entry is not activity
	assert.Equal(t, 1, aggregate.ActiveCount(d.Heatmaps.Personal))
	assert.True(t, d.Heatmaps.Personal[25].Active, "2024-03-26")
}

type failingReader struct {
	Reader
	market error
}

func (f failingReader) ListMarketSnapshots(ctx context.Context, since string) ([]models.MarketSnapshot, error) {
	return nil, f.market
}

func TestLoadIsolatesFailedSeries(t *testing.T) {
	svc := &Service{
		Store:    failingReader{Reader: seed(t), market: errors.New("connection reset")},
		Location: newYork(t),
		Now:      afternoon,
		Log:      quietLogger(),
	}

	d, err := svc.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{SeriesMarket}, d.Unavailable)

	for _, rec := range d.Daily {
		_, ok := rec.Get("VOO")
		assert.False(t, ok, rec.Date)
	}
	// the other series still load
	require.NotEmpty(t, d.Daily)
	assert.Equal(t, 3, aggregate.ActiveCount(d.Heatmaps.CheckIn))
}

func TestLoadEmptyStore(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := &Service{Store: db, Location: time.UTC, Now: afternoon, Log: quietLogger()}
	d, err := svc.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, d.Daily)
	assert.Len(t, d.Heatmaps.Scripture, aggregate.HeatmapDays)
	assert.Zero(t, aggregate.ActiveCount(d.Heatmaps.Scripture))
}
