package models

import "time"

// CheckInType distinguishes the two daily mood check-ins
type CheckInType string

const (
	Morning CheckInType = "morning"
	Evening CheckInType = "evening"
)

// CheckIn is a mood rating, unique per (user, date, type)
type CheckIn struct {
	UserID     string      `json:"user_id"`
	Date       string      `json:"date"`
	Type       CheckInType `json:"type"`
	MoodRating int         `json:"mood_rating"` // 1-10
}

// Selection is one book and the chapters read from it
type Selection struct {
	Book     string `json:"book"`
	Chapters []int  `json:"chapters"`
}

// ScriptureReading is an append-only log entry; several may exist per day
type ScriptureReading struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	ReadAt     time.Time   `json:"read_at"`
	Selections []Selection `json:"selections"`
}

// ChapterCount returns the number of chapters across all selections
func (r ScriptureReading) ChapterCount() int {
	n := 0
	for _, s := range r.Selections {
		n += len(s.Chapters)
	}
	return n
}

// PersonalCheckIn is a yes/no entry, unique per (user, date); later writes overwrite
type PersonalCheckIn struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Value  bool   `json:"value"`
}

// UserSettings holds per-user configuration, keyed by user
type UserSettings struct {
	UserID    string    `json:"user_id"`
	ZipCode   string    `json:"zip_code"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	UpdatedAt time.Time `json:"updated_at"`
}
