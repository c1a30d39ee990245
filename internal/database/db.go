package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// DB wraps the database connection.
//
// Every snapshot and event table carries a UNIQUE natural key and all writes
// go through INSERT ... ON CONFLICT DO UPDATE, so concurrent writers to the
// same key resolve as last write wins. No application-level locking is done.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// New opens the database and initializes the schema. A postgres:// or
// postgresql:// DSN selects Postgres; anything else is a SQLite file path.
func New(dsn string) (*DB, error) {
	driver, source, d := "sqlite", sqliteDSN(dsn), dialectSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, source, d = "pgx", dsn, dialectPostgres
	}

	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn, dialect: d}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initSchema creates the necessary tables. The DDL is portable between
// SQLite and Postgres; dates are ISO-8601 TEXT so they sort chronologically.
func (db *DB) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS market_snapshots (
			date TEXT NOT NULL,
			symbol TEXT NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION,
			published INTEGER NOT NULL DEFAULT 0,
			UNIQUE(date, symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS weather_snapshots (
			date TEXT NOT NULL,
			feels_like_max_f DOUBLE PRECISION NOT NULL,
			feels_like_min_f DOUBLE PRECISION NOT NULL,
			precipitation_in DOUBLE PRECISION NOT NULL,
			sunrise TEXT NOT NULL,
			sunset TEXT NOT NULL,
			daylight_hours DOUBLE PRECISION NOT NULL,
			weather_code INTEGER NOT NULL,
			published INTEGER NOT NULL DEFAULT 0,
			UNIQUE(date)
		)`,
		`CREATE TABLE IF NOT EXISTS biometric_snapshots (
			date TEXT NOT NULL,
			sleep_score INTEGER,
			total_sleep_seconds INTEGER,
			deep_sleep_seconds INTEGER,
			rem_sleep_seconds INTEGER,
			light_sleep_seconds INTEGER,
			average_hrv DOUBLE PRECISION,
			average_heart_rate DOUBLE PRECISION,
			sleep_efficiency INTEGER,
			readiness_score INTEGER,
			temperature_deviation DOUBLE PRECISION,
			stress_high_minutes INTEGER,
			recovery_high_minutes INTEGER,
			day_summary TEXT,
			published INTEGER NOT NULL DEFAULT 0,
			UNIQUE(date)
		)`,
		`CREATE TABLE IF NOT EXISTS check_ins (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			type TEXT NOT NULL,
			mood_rating INTEGER NOT NULL,
			UNIQUE(user_id, date, type)
		)`,
		`CREATE TABLE IF NOT EXISTS personal_checkins (
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			value BOOLEAN NOT NULL,
			UNIQUE(user_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS scripture_readings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			read_at TEXT NOT NULL,
			selections TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT PRIMARY KEY,
			zip_code TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_published ON market_snapshots(published)`,
		`CREATE INDEX IF NOT EXISTS idx_check_ins_user_date ON check_ins(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_scripture_user_read_at ON scripture_readings(user_id, read_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (db *DB) rebind(query string) string {
	if db.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(query), args...)
	return err
}

// withTx runs fn in a transaction; any error rolls the whole batch back
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
