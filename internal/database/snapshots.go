package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jgoulah/dayboard/pkg/models"
)

// Each upsert replaces every non-key column and clears the published flag,
// so a re-ingested row is a full replacement that will be published again.

const upsertMarket = `
INSERT INTO market_snapshots (date, symbol, open, high, low, close, volume, published)
VALUES (?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT (date, symbol) DO UPDATE SET
	open = excluded.open,
	high = excluded.high,
	low = excluded.low,
	close = excluded.close,
	volume = excluded.volume,
	published = 0`

const upsertWeather = `
INSERT INTO weather_snapshots (date, feels_like_max_f, feels_like_min_f, precipitation_in, sunrise, sunset, daylight_hours, weather_code, published)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT (date) DO UPDATE SET
	feels_like_max_f = excluded.feels_like_max_f,
	feels_like_min_f = excluded.feels_like_min_f,
	precipitation_in = excluded.precipitation_in,
	sunrise = excluded.sunrise,
	sunset = excluded.sunset,
	daylight_hours = excluded.daylight_hours,
	weather_code = excluded.weather_code,
	published = 0`

const upsertBiometric = `
INSERT INTO biometric_snapshots (date, sleep_score, total_sleep_seconds, deep_sleep_seconds, rem_sleep_seconds,
	light_sleep_seconds, average_hrv, average_heart_rate, sleep_efficiency, readiness_score,
	temperature_deviation, stress_high_minutes, recovery_high_minutes, day_summary, published)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT (date) DO UPDATE SET
	sleep_score = excluded.sleep_score,
	total_sleep_seconds = excluded.total_sleep_seconds,
	deep_sleep_seconds = excluded.deep_sleep_seconds,
	rem_sleep_seconds = excluded.rem_sleep_seconds,
	light_sleep_seconds = excluded.light_sleep_seconds,
	average_hrv = excluded.average_hrv,
	average_heart_rate = excluded.average_heart_rate,
	sleep_efficiency = excluded.sleep_efficiency,
	readiness_score = excluded.readiness_score,
	temperature_deviation = excluded.temperature_deviation,
	stress_high_minutes = excluded.stress_high_minutes,
	recovery_high_minutes = excluded.recovery_high_minutes,
	day_summary = excluded.day_summary,
	published = 0`

// UpsertMarketSnapshots writes a batch keyed by (date, symbol). The batch is
// atomic: if any row is rejected nothing is written. Duplicate keys within
// one batch are not detected here; the caller must not submit them.
func (db *DB) UpsertMarketSnapshots(ctx context.Context, rows []models.MarketSnapshot) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt := db.rebind(upsertMarket)
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, stmt, r.Date, r.Symbol, r.Open, r.High, r.Low, r.Close, nullFloat(r.Volume)); err != nil {
				return fmt.Errorf("upserting market snapshot %s: %w", r.Key(), err)
			}
		}
		return nil
	})
}

// UpsertWeatherSnapshot writes one row keyed by date
func (db *DB) UpsertWeatherSnapshot(ctx context.Context, w models.WeatherSnapshot) error {
	err := db.exec(ctx, upsertWeather, w.Date, w.FeelsLikeMaxF, w.FeelsLikeMinF, w.PrecipitationIn,
		w.Sunrise, w.Sunset, w.DaylightHours, w.WeatherCode)
	if err != nil {
		return fmt.Errorf("upserting weather snapshot %s: %w", w.Date, err)
	}
	return nil
}

// UpsertBiometricSnapshot writes one row keyed by date
func (db *DB) UpsertBiometricSnapshot(ctx context.Context, b models.BiometricSnapshot) error {
	err := db.exec(ctx, upsertBiometric, b.Date,
		nullInt(b.SleepScore), nullInt(b.TotalSleepSeconds), nullInt(b.DeepSleepSeconds),
		nullInt(b.RemSleepSeconds), nullInt(b.LightSleepSeconds), nullFloat(b.AverageHRV),
		nullFloat(b.AverageHeartRate), nullInt(b.SleepEfficiency), nullInt(b.ReadinessScore),
		nullFloat(b.TemperatureDeviation), nullInt(b.StressHighMinutes), nullInt(b.RecoveryHighMinutes),
		nullString(b.DaySummary))
	if err != nil {
		return fmt.Errorf("upserting biometric snapshot %s: %w", b.Date, err)
	}
	return nil
}

const marketColumns = `date, symbol, open, high, low, close, volume`

func scanMarket(rows *sql.Rows) ([]models.MarketSnapshot, error) {
	defer rows.Close()
	var results []models.MarketSnapshot
	for rows.Next() {
		var m models.MarketSnapshot
		var volume sql.NullFloat64
		if err := rows.Scan(&m.Date, &m.Symbol, &m.Open, &m.High, &m.Low, &m.Close, &volume); err != nil {
			return nil, fmt.Errorf("scanning market row: %w", err)
		}
		m.Volume = floatPtr(volume)
		results = append(results, m)
	}
	return results, rows.Err()
}

func (db *DB) queryMarket(ctx context.Context, where string, args ...any) ([]models.MarketSnapshot, error) {
	query := `SELECT ` + marketColumns + ` FROM market_snapshots WHERE ` + where + ` ORDER BY date, symbol`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying market snapshots: %w", err)
	}
	return scanMarket(rows)
}

// ListMarketSnapshots returns rows dated on or after since, ordered by (date, symbol)
func (db *DB) ListMarketSnapshots(ctx context.Context, since string) ([]models.MarketSnapshot, error) {
	return db.queryMarket(ctx, `date >= ?`, since)
}

// GetMarketSnapshot returns the row for (date, symbol), or nil when absent
func (db *DB) GetMarketSnapshot(ctx context.Context, date, symbol string) (*models.MarketSnapshot, error) {
	rows, err := db.queryMarket(ctx, `date = ? AND symbol = ?`, date, symbol)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

const weatherColumns = `date, feels_like_max_f, feels_like_min_f, precipitation_in, sunrise, sunset, daylight_hours, weather_code`

func (db *DB) queryWeather(ctx context.Context, where string, args ...any) ([]models.WeatherSnapshot, error) {
	query := `SELECT ` + weatherColumns + ` FROM weather_snapshots WHERE ` + where + ` ORDER BY date`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying weather snapshots: %w", err)
	}
	defer rows.Close()

	var results []models.WeatherSnapshot
	for rows.Next() {
		var w models.WeatherSnapshot
		if err := rows.Scan(&w.Date, &w.FeelsLikeMaxF, &w.FeelsLikeMinF, &w.PrecipitationIn,
			&w.Sunrise, &w.Sunset, &w.DaylightHours, &w.WeatherCode); err != nil {
			return nil, fmt.Errorf("scanning weather row: %w", err)
		}
		results = append(results, w)
	}
	return results, rows.Err()
}

// ListWeatherSnapshots returns rows dated on or after since, ordered by date
func (db *DB) ListWeatherSnapshots(ctx context.Context, since string) ([]models.WeatherSnapshot, error) {
	return db.queryWeather(ctx, `date >= ?`, since)
}

// GetWeatherSnapshot returns the row for date, or nil when absent
func (db *DB) GetWeatherSnapshot(ctx context.Context, date string) (*models.WeatherSnapshot, error) {
	rows, err := db.queryWeather(ctx, `date = ?`, date)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

const biometricColumns = `date, sleep_score, total_sleep_seconds, deep_sleep_seconds, rem_sleep_seconds,
	light_sleep_seconds, average_hrv, average_heart_rate, sleep_efficiency, readiness_score,
	temperature_deviation, stress_high_minutes, recovery_high_minutes, day_summary`

func (db *DB) queryBiometric(ctx context.Context, where string, args ...any) ([]models.BiometricSnapshot, error) {
	query := `SELECT ` + biometricColumns + ` FROM biometric_snapshots WHERE ` + where + ` ORDER BY date`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying biometric snapshots: %w", err)
	}
	defer rows.Close()

	var results []models.BiometricSnapshot
	for rows.Next() {
		var b models.BiometricSnapshot
		var sleepScore, total, deep, rem, light, efficiency, readiness, stress, recovery sql.NullInt64
		var hrv, heartRate, tempDev sql.NullFloat64
		var summary sql.NullString
		if err := rows.Scan(&b.Date, &sleepScore, &total, &deep, &rem, &light, &hrv, &heartRate,
			&efficiency, &readiness, &tempDev, &stress, &recovery, &summary); err != nil {
			return nil, fmt.Errorf("scanning biometric row: %w", err)
		}
		b.SleepScore = intPtr(sleepScore)
		b.TotalSleepSeconds = intPtr(total)
		b.DeepSleepSeconds = intPtr(deep)
		b.RemSleepSeconds = intPtr(rem)
		b.LightSleepSeconds = intPtr(light)
		b.AverageHRV = floatPtr(hrv)
		b.AverageHeartRate = floatPtr(heartRate)
		b.SleepEfficiency = intPtr(efficiency)
		b.ReadinessScore = intPtr(readiness)
		b.TemperatureDeviation = floatPtr(tempDev)
		b.StressHighMinutes = intPtr(stress)
		b.RecoveryHighMinutes = intPtr(recovery)
		b.DaySummary = stringPtr(summary)
		results = append(results, b)
	}
	return results, rows.Err()
}

// ListBiometricSnapshots returns rows dated on or after since, ordered by date
func (db *DB) ListBiometricSnapshots(ctx context.Context, since string) ([]models.BiometricSnapshot, error) {
	return db.queryBiometric(ctx, `date >= ?`, since)
}

// GetBiometricSnapshot returns the row for date, or nil when absent
func (db *DB) GetBiometricSnapshot(ctx context.Context, date string) (*models.BiometricSnapshot, error) {
	rows, err := db.queryBiometric(ctx, `date = ?`, date)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// ListUnpublished retrieves every snapshot of a source not yet published, ordered by key
func (db *DB) ListUnpublished(ctx context.Context, source models.Source) ([]models.Snapshot, error) {
	return db.listSnapshots(ctx, source, `published = 0`)
}

// ListSnapshots retrieves every snapshot of a source dated on or after since
func (db *DB) ListSnapshots(ctx context.Context, source models.Source, since string) ([]models.Snapshot, error) {
	return db.listSnapshots(ctx, source, `date >= ?`, since)
}

func (db *DB) listSnapshots(ctx context.Context, source models.Source, where string, args ...any) ([]models.Snapshot, error) {
	var out []models.Snapshot
	switch source {
	case models.SourceMarket:
		rows, err := db.queryMarket(ctx, where, args...)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r)
		}
	case models.SourceWeather:
		rows, err := db.queryWeather(ctx, where, args...)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r)
		}
	case models.SourceBiometric:
		rows, err := db.queryBiometric(ctx, where, args...)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r)
		}
	default:
		return nil, fmt.Errorf("unknown source: %s", source)
	}
	return out, nil
}

// MarkPublished marks a snapshot as published
func (db *DB) MarkPublished(ctx context.Context, s models.Snapshot) error {
	var err error
	switch v := s.(type) {
	case models.MarketSnapshot:
		err = db.exec(ctx, `UPDATE market_snapshots SET published = 1 WHERE date = ? AND symbol = ?`, v.Date, v.Symbol)
	case models.WeatherSnapshot:
		err = db.exec(ctx, `UPDATE weather_snapshots SET published = 1 WHERE date = ?`, v.Date)
	case models.BiometricSnapshot:
		err = db.exec(ctx, `UPDATE biometric_snapshots SET published = 1 WHERE date = ?`, v.Date)
	default:
		return fmt.Errorf("cannot mark %T as published", s)
	}
	if err != nil {
		return fmt.Errorf("marking %s %s as published: %w", s.Source(), s.Key(), err)
	}
	return nil
}
