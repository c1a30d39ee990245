package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/jgoulah/dayboard/pkg/models"
)

// instantLayout is fixed-width UTC so stored instants compare correctly as text
const instantLayout = "2006-01-02T15:04:05.000Z"

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func parseInstant(s string) (time.Time, error) {
	return time.Parse(instantLayout, s)
}

// UpsertCheckIn writes a mood check-in keyed by (user, date, type)
func (db *DB) UpsertCheckIn(ctx context.Context, c models.CheckIn) error {
	query := `
	INSERT INTO check_ins (user_id, date, type, mood_rating)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (user_id, date, type) DO UPDATE SET mood_rating = excluded.mood_rating`
	if err := db.exec(ctx, query, c.UserID, c.Date, string(c.Type), c.MoodRating); err != nil {
		return fmt.Errorf("upserting check-in: %w", err)
	}
	return nil
}

// ListCheckIns retrieves a user's check-ins dated on or after since, ordered by (date, type)
func (db *DB) ListCheckIns(ctx context.Context, userID, since string) ([]models.CheckIn, error) {
	query := `
	SELECT user_id, date, type, mood_rating
	FROM check_ins
	WHERE user_id = ? AND date >= ?
	ORDER BY date, type
	`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), userID, since)
	if err != nil {
		return nil, fmt.Errorf("querying check-ins: %w", err)
	}
	defer rows.Close()

	var results []models.CheckIn
	for rows.Next() {
		var c models.CheckIn
		var checkInType string
		if err := rows.Scan(&c.UserID, &c.Date, &checkInType, &c.MoodRating); err != nil {
			return nil, fmt.Errorf("scanning check-in: %w", err)
		}
		c.Type = models.CheckInType(checkInType)
		results = append(results, c)
	}
	return results, rows.Err()
}

// UpsertPersonalCheckIn writes a yes/no entry keyed by (user, date); a later write overwrites
func (db *DB) UpsertPersonalCheckIn(ctx context.Context, p models.PersonalCheckIn) error {
	query := `
	INSERT INTO personal_checkins (user_id, date, value)
	VALUES (?, ?, ?)
	ON CONFLICT (user_id, date) DO UPDATE SET value = excluded.value`
	if err := db.exec(ctx, query, p.UserID, p.Date, p.Value); err != nil {
		return fmt.Errorf("upserting personal check-in: %w", err)
	}
	return nil
}

func (db *DB) queryPersonal(ctx context.Context, where string, args ...any) ([]models.PersonalCheckIn, error) {
	query := `SELECT user_id, date, value FROM personal_checkins WHERE ` + where + ` ORDER BY date`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying personal check-ins: %w", err)
	}
	defer rows.Close()

	var results []models.PersonalCheckIn
	for rows.Next() {
		var p models.PersonalCheckIn
		if err := rows.Scan(&p.UserID, &p.Date, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning personal check-in: %w", err)
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// GetPersonalCheckIn returns the entry for (user, date), or nil when absent
func (db *DB) GetPersonalCheckIn(ctx context.Context, userID, date string) (*models.PersonalCheckIn, error) {
	rows, err := db.queryPersonal(ctx, `user_id = ? AND date = ?`, userID, date)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// ListPersonalCheckIns retrieves a user's entries dated on or after since
func (db *DB) ListPersonalCheckIns(ctx context.Context, userID, since string) ([]models.PersonalCheckIn, error) {
	return db.queryPersonal(ctx, `user_id = ? AND date >= ?`, userID, since)
}

// InsertScriptureReading appends a reading log entry
func (db *DB) InsertScriptureReading(ctx context.Context, r models.ScriptureReading) error {
	selections, err := json.Marshal(r.Selections)
	if err != nil {
		return fmt.Errorf("encoding selections: %w", err)
	}
	query := `INSERT INTO scripture_readings (id, user_id, read_at, selections) VALUES (?, ?, ?, ?)`
	if err := db.exec(ctx, query, r.ID, r.UserID, formatInstant(r.ReadAt), string(selections)); err != nil {
		return fmt.Errorf("inserting scripture reading: %w", err)
	}
	return nil
}

// ListScriptureReadings retrieves a user's readings at or after since, ordered by read_at
func (db *DB) ListScriptureReadings(ctx context.Context, userID string, since time.Time) ([]models.ScriptureReading, error) {
	query := `
	SELECT id, user_id, read_at, selections
	FROM scripture_readings
	WHERE user_id = ? AND read_at >= ?
	ORDER BY read_at, id
	`
	rows, err := db.conn.QueryContext(ctx, db.rebind(query), userID, formatInstant(since))
	if err != nil {
		return nil, fmt.Errorf("querying scripture readings: %w", err)
	}
	defer rows.Close()

	var results []models.ScriptureReading
	for rows.Next() {
		var r models.ScriptureReading
		var readAt, selections string
		if err := rows.Scan(&r.ID, &r.UserID, &readAt, &selections); err != nil {
			return nil, fmt.Errorf("scanning scripture reading: %w", err)
		}
		if r.ReadAt, err = parseInstant(readAt); err != nil {
			return nil, fmt.Errorf("parsing read_at: %w", err)
		}
		if err := json.Unmarshal([]byte(selections), &r.Selections); err != nil {
			return nil, fmt.Errorf("decoding selections: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// UpsertUserSettings writes a user's settings keyed by user
func (db *DB) UpsertUserSettings(ctx context.Context, s models.UserSettings) error {
	query := `
	INSERT INTO user_settings (user_id, zip_code, lat, lon, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		zip_code = excluded.zip_code,
		lat = excluded.lat,
		lon = excluded.lon,
		updated_at = excluded.updated_at`
	err := db.exec(ctx, query, s.UserID, s.ZipCode, nullFloat(s.Lat), nullFloat(s.Lon), formatInstant(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting user settings: %w", err)
	}
	return nil
}

// GetUserSettings returns a user's settings, or nil when none are stored
func (db *DB) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	query := `SELECT user_id, zip_code, lat, lon, updated_at FROM user_settings WHERE user_id = ?`
	row := db.conn.QueryRowContext(ctx, db.rebind(query), userID)

	var s models.UserSettings
	var lat, lon sql.NullFloat64
	var updatedAt string
	err := row.Scan(&s.UserID, &s.ZipCode, &lat, &lon, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user settings: %w", err)
	}
	s.Lat, s.Lon = floatPtr(lat), floatPtr(lon)
	if s.UpdatedAt, err = parseInstant(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &s, nil
}

// LatestLocation returns the most recently set non-null (lat, lon) across all
// users, or nil when nobody has configured one
func (db *DB) LatestLocation(ctx context.Context) (*models.Location, error) {
	query := `
	SELECT lat, lon FROM user_settings
	WHERE lat IS NOT NULL AND lon IS NOT NULL
	ORDER BY updated_at DESC
	LIMIT 1`
	var loc models.Location
	err := db.conn.QueryRowContext(ctx, query).Scan(&loc.Lat, &loc.Lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest location: %w", err)
	}
	return &loc, nil
}
