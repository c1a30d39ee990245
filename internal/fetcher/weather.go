package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jgoulah/dayboard/pkg/models"
)

const weatherDailyFields = "apparent_temperature_max,apparent_temperature_min,precipitation_sum,sunrise,sunset,weathercode"

// WeatherClient fetches one day of forecast data from an Open-Meteo style API
type WeatherClient struct {
	baseURL  string
	timezone string
	client   *http.Client
}

// NewWeatherClient creates a weather client. The API is asked to report the
// day and its sunrise/sunset in the named timezone.
func NewWeatherClient(baseURL, timezone string, client *http.Client) *WeatherClient {
	return &WeatherClient{baseURL: baseURL, timezone: timezone, client: client}
}

type forecastResponse struct {
	Daily *struct {
		Time                   []string   `json:"time"`
		Sunrise                []string   `json:"sunrise"`
		Sunset                 []string   `json:"sunset"`
		ApparentTemperatureMax []*float64 `json:"apparent_temperature_max"`
		ApparentTemperatureMin []*float64 `json:"apparent_temperature_min"`
		PrecipitationSum       []*float64 `json:"precipitation_sum"`
		WeatherCode            []*int     `json:"weathercode"`
	} `json:"daily"`
}

// Daily returns the weather snapshot for date at loc. A response missing any
// of the daily values returns ErrNoData.
func (c *WeatherClient) Daily(ctx context.Context, date string, loc models.Location) (models.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	params.Set("daily", weatherDailyFields)
	params.Set("temperature_unit", "fahrenheit")
	params.Set("precipitation_unit", "inch")
	params.Set("timezone", c.timezone)
	params.Set("start_date", date)
	params.Set("end_date", date)

	var resp forecastResponse
	if err := getJSON(ctx, c.client, c.baseURL+"/v1/forecast?"+params.Encode(), nil, &resp); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("fetching forecast: %w", err)
	}

	d := resp.Daily
	if d == nil || len(d.Time) == 0 || len(d.Sunrise) == 0 || len(d.Sunset) == 0 ||
		len(d.ApparentTemperatureMax) == 0 || d.ApparentTemperatureMax[0] == nil ||
		len(d.ApparentTemperatureMin) == 0 || d.ApparentTemperatureMin[0] == nil ||
		len(d.PrecipitationSum) == 0 || d.PrecipitationSum[0] == nil ||
		len(d.WeatherCode) == 0 || d.WeatherCode[0] == nil {
		return models.WeatherSnapshot{}, fmt.Errorf("forecast for %s: %w", date, ErrNoData)
	}

	daylight, err := DaylightHours(d.Sunrise[0], d.Sunset[0])
	if err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("forecast for %s: %w", date, err)
	}

	return models.WeatherSnapshot{
		Date:            date,
		FeelsLikeMaxF:   *d.ApparentTemperatureMax[0],
		FeelsLikeMinF:   *d.ApparentTemperatureMin[0],
		PrecipitationIn: *d.PrecipitationSum[0],
		Sunrise:         d.Sunrise[0],
		Sunset:          d.Sunset[0],
		DaylightHours:   daylight,
		WeatherCode:     *d.WeatherCode[0],
	}, nil
}

// DaylightHours computes (sunset - sunrise) in hours, rounded to 2 places.
// Both values are local wall-clock timestamps like "2024-02-27T06:45"; only
// the clock part is read, so no timezone arithmetic happens.
func DaylightHours(sunrise, sunset string) (float64, error) {
	rise, err := wallClockMinutes(sunrise)
	if err != nil {
		return 0, fmt.Errorf("parsing sunrise: %w", err)
	}
	set, err := wallClockMinutes(sunset)
	if err != nil {
		return 0, fmt.Errorf("parsing sunset: %w", err)
	}
	hours, _ := decimal.NewFromInt(int64(set - rise)).
		Div(decimal.NewFromInt(60)).
		Round(2).
		Float64()
	return hours, nil
}

func wallClockMinutes(ts string) (int, error) {
	_, clock, ok := strings.Cut(ts, "T")
	if !ok {
		return 0, fmt.Errorf("no time in %q", ts)
	}
	if len(clock) > len("15:04") {
		clock = clock[:len("15:04")]
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
