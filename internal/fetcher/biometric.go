package fetcher

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/dayboard/pkg/models"
)

// Biometric sub-endpoints, one per metric category
const (
	EndpointDailySleep     = "daily_sleep"
	EndpointSleep          = "sleep"
	EndpointDailyReadiness = "daily_readiness"
	EndpointDailyStress    = "daily_stress"
)

// BiometricEndpoints lists every sub-endpoint fetched for a day
var BiometricEndpoints = []string{EndpointDailySleep, EndpointSleep, EndpointDailyReadiness, EndpointDailyStress}

// BiometricClient fetches sleep, readiness and stress summaries from an Oura-style API
type BiometricClient struct {
	baseURL string
	token   string
	client  *http.Client
	log     logrus.FieldLogger
}

// NewBiometricClient creates a biometric client authenticated with a bearer token
func NewBiometricClient(baseURL, token string, client *http.Client, log logrus.FieldLogger) *BiometricClient {
	return &BiometricClient{baseURL: baseURL, token: token, client: client, log: log}
}

// BiometricDay is a best-effort merge of the sub-endpoints for one date
type BiometricDay struct {
	Snapshot models.BiometricSnapshot
	// Missing names the sub-endpoints that failed or returned nothing
	Missing []string
}

// Complete reports whether every sub-endpoint contributed
func (d BiometricDay) Complete() bool { return len(d.Missing) == 0 }

// Empty reports whether no sub-endpoint contributed
func (d BiometricDay) Empty() bool { return len(d.Missing) == len(BiometricEndpoints) }

type dataEnvelope[T any] struct {
	Data []T `json:"data"`
}

type dailySleep struct {
	Score *int `json:"score"`
}

type sleepSession struct {
	Type               string   `json:"type"`
	TotalSleepDuration *int     `json:"total_sleep_duration"`
	DeepSleepDuration  *int     `json:"deep_sleep_duration"`
	RemSleepDuration   *int     `json:"rem_sleep_duration"`
	LightSleepDuration *int     `json:"light_sleep_duration"`
	AverageHRV         *float64 `json:"average_hrv"`
	AverageHeartRate   *float64 `json:"average_heart_rate"`
	Efficiency         *int     `json:"efficiency"`
}

type dailyReadiness struct {
	Score                *int     `json:"score"`
	TemperatureDeviation *float64 `json:"temperature_deviation"`
}

type dailyStress struct {
	StressHigh   *int    `json:"stress_high"`
	RecoveryHigh *int    `json:"recovery_high"`
	DaySummary   *string `json:"day_summary"`
}

func fetchData[T any](ctx context.Context, c *BiometricClient, endpoint, date string) ([]T, error) {
	params := url.Values{}
	params.Set("start_date", date)
	params.Set("end_date", date)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	var env dataEnvelope[T]
	if err := getJSON(ctx, c.client, c.baseURL+"/"+endpoint+"?"+params.Encode(), header, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, ErrNoData
	}
	return env.Data, nil
}

// Day fetches all sub-endpoints for date in parallel. A failed sub-endpoint
// leaves its fields nil and is listed in Missing; it never aborts the others.
func (c *BiometricClient) Day(ctx context.Context, date string) BiometricDay {
	var (
		sleep     []dailySleep
		sessions  []sleepSession
		readiness []dailyReadiness
		stress    []dailyStress
		errs      = make([]error, len(BiometricEndpoints))
	)

	var g errgroup.Group
	g.Go(func() error {
		sleep, errs[0] = fetchData[dailySleep](ctx, c, EndpointDailySleep, date)
		return nil
	})
	g.Go(func() error {
		sessions, errs[1] = fetchData[sleepSession](ctx, c, EndpointSleep, date)
		return nil
	})
	g.Go(func() error {
		readiness, errs[2] = fetchData[dailyReadiness](ctx, c, EndpointDailyReadiness, date)
		return nil
	})
	g.Go(func() error {
		stress, errs[3] = fetchData[dailyStress](ctx, c, EndpointDailyStress, date)
		return nil
	})
	_ = g.Wait()

	day := BiometricDay{Snapshot: models.BiometricSnapshot{Date: date}}
	for i, err := range errs {
		if err != nil {
			c.log.WithFields(logrus.Fields{"endpoint": BiometricEndpoints[i], "date": date}).
				WithError(err).Warn("biometric sub-fetch failed")
			day.Missing = append(day.Missing, BiometricEndpoints[i])
		}
	}

	s := &day.Snapshot
	if len(sleep) > 0 {
		s.SleepScore = sleep[0].Score
	}
	if session := pickSession(sessions); session != nil {
		s.TotalSleepSeconds = session.TotalSleepDuration
		s.DeepSleepSeconds = session.DeepSleepDuration
		s.RemSleepSeconds = session.RemSleepDuration
		s.LightSleepSeconds = session.LightSleepDuration
		s.AverageHRV = session.AverageHRV
		s.AverageHeartRate = session.AverageHeartRate
		s.SleepEfficiency = session.Efficiency
	}
	if len(readiness) > 0 {
		s.ReadinessScore = readiness[0].Score
		s.TemperatureDeviation = readiness[0].TemperatureDeviation
	}
	if len(stress) > 0 {
		s.StressHighMinutes = stress[0].StressHigh
		s.RecoveryHighMinutes = stress[0].RecoveryHigh
		s.DaySummary = stress[0].DaySummary
	}
	return day
}

// pickSession prefers the main overnight session over naps
func pickSession(sessions []sleepSession) *sleepSession {
	for i := range sessions {
		if sessions[i].Type == "long_sleep" {
			return &sessions[i]
		}
	}
	if len(sessions) > 0 {
		return &sessions[0]
	}
	return nil
}
