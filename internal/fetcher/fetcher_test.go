package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/dayboard/pkg/models"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestMarketPreviousClose(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apiKey")
		// 2024-01-02 05:00 UTC is midnight in New York
		io.WriteString(w, `{"status":"OK","results":[{"t":1704171600000,"o":430.1,"h":433.5,"l":429.0,"c":432.25,"v":4200000}]}`)
	}))
	defer srv.Close()

	c := NewMarketClient(srv.URL, "secret", srv.Client(), newYork(t))
	got, err := c.PreviousClose(context.Background(), "VOO", "VOO")
	require.NoError(t, err)

	assert.Equal(t, "/v2/aggs/ticker/VOO/prev", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "2024-01-02", got.Date)
	assert.Equal(t, "VOO", got.Symbol)
	assert.InDelta(t, 432.25, got.Close, 1e-9)
	require.NotNil(t, got.Volume)
	assert.InDelta(t, 4200000, *got.Volume, 1e-9)
}

func TestMarketDateUsesReferenceZone(t *testing.T) {
	// 2024-01-02 03:00 UTC is still Jan 1 in New York
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"OK","results":[{"t":1704164400000,"o":1,"h":1,"l":1,"c":1}]}`)
	}))
	defer srv.Close()

	got, err := NewMarketClient(srv.URL, "k", srv.Client(), newYork(t)).PreviousClose(context.Background(), "X:BTCUSD", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got.Date)
	assert.Equal(t, "BTC", got.Symbol)
	assert.Nil(t, got.Volume)
}

func TestMarketAbsentTicker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not ok status", http.StatusOK, `{"status":"ERROR","error":"bad ticker"}`},
		{"empty results", http.StatusOK, `{"status":"OK","results":[]}`},
		{"missing close", http.StatusOK, `{"status":"OK","results":[{"t":1704171600000,"o":1,"h":1,"l":1}]}`},
		{"http error", http.StatusForbidden, `{"status":"NOT_AUTHORIZED"}`},
		{"malformed json", http.StatusOK, `{"status":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewMarketClient(srv.URL, "k", srv.Client(), time.UTC).PreviousClose(context.Background(), "VOO", "VOO")
			require.Error(t, err)
		})
	}
}

func TestMarketStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	_, err := NewMarketClient(srv.URL, "k", srv.Client(), time.UTC).PreviousClose(context.Background(), "VOO", "VOO")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "slow down", statusErr.Body)
}

func TestDaylightHours(t *testing.T) {
	tests := []struct {
		sunrise, sunset string
		want            float64
	}{
		{"2024-02-27T06:45", "2024-02-27T17:45", 11.00},
		{"2026-02-27T06:45", "2026-02-27T17:52", 11.12},
		{"2024-06-20T05:07", "2024-06-20T20:25", 15.3},
		{"2024-12-21T07:10:00", "2024-12-21T16:13:00", 9.05},
	}
	for _, tt := range tests {
		got, err := DaylightHours(tt.sunrise, tt.sunset)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "%s -> %s", tt.sunrise, tt.sunset)
	}

	_, err := DaylightHours("06:45", "2024-02-27T17:45")
	assert.Error(t, err)
}

func TestWeatherDaily(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		io.WriteString(w, `{"daily":{
			"time":["2024-02-27"],
			"sunrise":["2024-02-27T06:45"],
			"sunset":["2024-02-27T17:45"],
			"apparent_temperature_max":[41.2],
			"apparent_temperature_min":[22.9],
			"precipitation_sum":[0.12],
			"weathercode":[61]
		}}`)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, "America/New_York", srv.Client())
	got, err := c.Daily(context.Background(), "2024-02-27", models.Location{Lat: 42.33, Lon: -71.21})
	require.NoError(t, err)

	assert.Equal(t, "42.33", query["latitude"])
	assert.Equal(t, "-71.21", query["longitude"])
	assert.Equal(t, "fahrenheit", query["temperature_unit"])
	assert.Equal(t, "inch", query["precipitation_unit"])
	assert.Equal(t, "America/New_York", query["timezone"])
	assert.Equal(t, "2024-02-27", query["start_date"])
	assert.Equal(t, "2024-02-27", query["end_date"])
	assert.Equal(t, weatherDailyFields, query["daily"])

	assert.Equal(t, models.WeatherSnapshot{
		Date:            "2024-02-27",
		FeelsLikeMaxF:   41.2,
		FeelsLikeMinF:   22.9,
		PrecipitationIn: 0.12,
		Sunrise:         "2024-02-27T06:45",
		Sunset:          "2024-02-27T17:45",
		DaylightHours:   11,
		WeatherCode:     61,
	}, got)
}

func TestWeatherNoData(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"daily":{"time":[]}}`,
		`{"daily":{"time":["2024-02-27"],"sunrise":["2024-02-27T06:45"],"sunset":["2024-02-27T17:45"],
			"apparent_temperature_max":[null],"apparent_temperature_min":[20],"precipitation_sum":[0],"weathercode":[1]}}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))
		_, err := NewWeatherClient(srv.URL, "UTC", srv.Client()).Daily(context.Background(), "2024-02-27", models.Location{})
		assert.ErrorIs(t, err, ErrNoData, body)
		srv.Close()
	}
}

func biometricServer(t *testing.T, fail map[string]bool) *httptest.Server {
	t.Helper()
	bodies := map[string]string{
		EndpointDailySleep: `{"data":[{"day":"2024-01-01","score":82}]}`,
		EndpointSleep: `{"data":[
			{"type":"late_nap","total_sleep_duration":1200,"efficiency":70},
			{"type":"long_sleep","total_sleep_duration":27000,"deep_sleep_duration":5400,"rem_sleep_duration":6300,
			 "light_sleep_duration":15300,"average_hrv":45,"average_heart_rate":52.5,"efficiency":91}
		]}`,
		EndpointDailyReadiness: `{"data":[{"score":77,"temperature_deviation":-0.15}]}`,
		EndpointDailyStress:    `{"data":[{"stress_high":3600,"recovery_high":5400,"day_summary":"restored"}]}`,
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("end_date"))

		endpoint := strings.TrimPrefix(r.URL.Path, "/")
		if fail[endpoint] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, bodies[endpoint])
	}))
}

func TestBiometricDayComplete(t *testing.T) {
	srv := biometricServer(t, nil)
	defer srv.Close()

	day := NewBiometricClient(srv.URL, "token-123", srv.Client(), quietLogger()).Day(context.Background(), "2024-01-01")
	require.True(t, day.Complete())
	assert.False(t, day.Empty())

	s := day.Snapshot
	assert.Equal(t, "2024-01-01", s.Date)
	assert.Equal(t, 82, *s.SleepScore)
	// long_sleep wins over the nap listed first
	assert.Equal(t, 27000, *s.TotalSleepSeconds)
	assert.Equal(t, 91, *s.SleepEfficiency)
	assert.InDelta(t, 45, *s.AverageHRV, 1e-9)
	assert.InDelta(t, 52.5, *s.AverageHeartRate, 1e-9)
	assert.Equal(t, 77, *s.ReadinessScore)
	assert.InDelta(t, -0.15, *s.TemperatureDeviation, 1e-9)
	assert.Equal(t, 3600, *s.StressHighMinutes)
	assert.Equal(t, "restored", *s.DaySummary)
}

func TestBiometricDayPartialFailure(t *testing.T) {
	srv := biometricServer(t, map[string]bool{EndpointDailyReadiness: true})
	defer srv.Close()

	day := NewBiometricClient(srv.URL, "token-123", srv.Client(), quietLogger()).Day(context.Background(), "2024-01-01")
	assert.Equal(t, []string{EndpointDailyReadiness}, day.Missing)

	s := day.Snapshot
	assert.Nil(t, s.ReadinessScore)
	assert.Nil(t, s.TemperatureDeviation)
	assert.NotNil(t, s.SleepScore)
	assert.NotNil(t, s.TotalSleepSeconds)
	assert.NotNil(t, s.StressHighMinutes)
	assert.NotNil(t, s.DaySummary)
}

func TestBiometricDayAllFailed(t *testing.T) {
	srv := biometricServer(t, map[string]bool{
		EndpointDailySleep: true, EndpointSleep: true, EndpointDailyReadiness: true, EndpointDailyStress: true,
	})
	defer srv.Close()

	day := NewBiometricClient(srv.URL, "token-123", srv.Client(), quietLogger()).Day(context.Background(), "2024-01-01")
	assert.True(t, day.Empty())
	assert.Equal(t, models.BiometricSnapshot{Date: "2024-01-01"}, day.Snapshot)
}

func TestBiometricEmptyDataIsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	day := NewBiometricClient(srv.URL, "t", srv.Client(), quietLogger()).Day(context.Background(), "2024-01-01")
	assert.True(t, day.Empty())
}

func TestGeocoderLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/us/02462":
			io.WriteString(w, `{"post code":"02462","country":"United States","places":[
				{"place name":"Newton Lower Falls","longitude":"-71.2559","state":"Massachusetts","latitude":"42.3287"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{}`)
		}
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL, srv.Client())
	loc, err := g.Lookup(context.Background(), "02462")
	require.NoError(t, err)
	assert.InDelta(t, 42.3287, loc.Lat, 1e-9)
	assert.InDelta(t, -71.2559, loc.Lon, 1e-9)

	_, err = g.Lookup(context.Background(), "00000")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
