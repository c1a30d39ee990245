package models

import (
	"fmt"
	"strconv"
)

// Source names one external data feed
type Source string

const (
	SourceMarket    Source = "market"
	SourceWeather   Source = "weather"
	SourceBiometric Source = "biometric"
)

// Sources lists every external feed in a stable order
var Sources = []Source{SourceMarket, SourceWeather, SourceBiometric}

// ParseSource validates a source name
func ParseSource(name string) (Source, error) {
	for _, s := range Sources {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source: %s (available: market, weather, biometric)", name)
}

// Snapshot is one stored row of an external daily series
type Snapshot interface {
	Source() Source
	// Key is the natural key rendered as a string, e.g. "2024-01-01/VOO"
	Key() string
	// State is the headline value published for the row
	State() string
}

// MarketSnapshot is one day's OHLC bar for a symbol, keyed by (date, symbol)
type MarketSnapshot struct {
	Date   string   `json:"date"`
	Symbol string   `json:"symbol"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume"`
}

func (m MarketSnapshot) Source() Source { return SourceMarket }
func (m MarketSnapshot) Key() string    { return m.Date + "/" + m.Symbol }
func (m MarketSnapshot) State() string  { return strconv.FormatFloat(m.Close, 'f', 2, 64) }

// WeatherSnapshot is one day's weather at the configured location, keyed by date
type WeatherSnapshot struct {
	Date            string  `json:"date"`
	FeelsLikeMaxF   float64 `json:"feels_like_max_f"`
	FeelsLikeMinF   float64 `json:"feels_like_min_f"`
	PrecipitationIn float64 `json:"precipitation_in"`
	Sunrise         string  `json:"sunrise"` // local wall clock, e.g. "2024-02-27T06:45"
	Sunset          string  `json:"sunset"`
	DaylightHours   float64 `json:"daylight_hours"`
	WeatherCode     int     `json:"weather_code"`
}

func (w WeatherSnapshot) Source() Source { return SourceWeather }
func (w WeatherSnapshot) Key() string    { return w.Date }
func (w WeatherSnapshot) State() string  { return strconv.FormatFloat(w.DaylightHours, 'f', 2, 64) }

// BiometricSnapshot is one day's sleep/readiness/stress summary, keyed by date.
// Every measurement is optional: each comes from an independent upstream request.
type BiometricSnapshot struct {
	Date                 string   `json:"date"`
	SleepScore           *int     `json:"sleep_score"`
	TotalSleepSeconds    *int     `json:"total_sleep_seconds"`
	DeepSleepSeconds     *int     `json:"deep_sleep_seconds"`
	RemSleepSeconds      *int     `json:"rem_sleep_seconds"`
	LightSleepSeconds    *int     `json:"light_sleep_seconds"`
	AverageHRV           *float64 `json:"average_hrv"`
	AverageHeartRate     *float64 `json:"average_heart_rate"`
	SleepEfficiency      *int     `json:"sleep_efficiency"`
	ReadinessScore       *int     `json:"readiness_score"`
	TemperatureDeviation *float64 `json:"temperature_deviation"`
	StressHighMinutes    *int     `json:"stress_high_minutes"`
	RecoveryHighMinutes  *int     `json:"recovery_high_minutes"`
	DaySummary           *string  `json:"day_summary"`
}

func (b BiometricSnapshot) Source() Source { return SourceBiometric }
func (b BiometricSnapshot) Key() string    { return b.Date }
func (b BiometricSnapshot) State() string {
	if b.SleepScore == nil {
		return "unknown"
	}
	return strconv.Itoa(*b.SleepScore)
}

// Location is a geographic coordinate
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}
