// Package journal records user events: mood check-ins, personal yes/no
// entries, scripture readings and the user's location setting.
package journal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/internal/fetcher"
	"github.com/jgoulah/dayboard/pkg/models"
)

// ErrInvalid wraps every input validation failure
var ErrInvalid = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// Store is the storage the journal writes to
type Store interface {
	UpsertCheckIn(ctx context.Context, c models.CheckIn) error
	UpsertPersonalCheckIn(ctx context.Context, p models.PersonalCheckIn) error
	GetPersonalCheckIn(ctx context.Context, userID, date string) (*models.PersonalCheckIn, error)
	InsertScriptureReading(ctx context.Context, r models.ScriptureReading) error
	UpsertUserSettings(ctx context.Context, s models.UserSettings) error
	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)
}

// Geocoder resolves a ZIP code to coordinates
type Geocoder interface {
	Lookup(ctx context.Context, zip string) (models.Location, error)
}

// Journal records events dated in the reference timezone
type Journal struct {
	Store    Store
	Geocoder Geocoder
	Location *time.Location
	Now      func() time.Time
	// NewID generates scripture reading ids; defaults to random UUIDs
	NewID func() string
	Log   logrus.FieldLogger
}

func (j *Journal) now() time.Time {
	if j.Now == nil {
		return time.Now()
	}
	return j.Now()
}

func (j *Journal) today() string {
	return calendar.Day(j.now(), j.Location)
}

func (j *Journal) log() logrus.FieldLogger {
	if j.Log == nil {
		return logrus.StandardLogger()
	}
	return j.Log
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalid("user id is required")
	}
	return nil
}

// RecordCheckIn stores today's mood rating. An empty type means morning
// before local noon and evening after. A second check-in of the same type on
// the same day replaces the first.
func (j *Journal) RecordCheckIn(ctx context.Context, userID string, rating int, typ models.CheckInType) (models.CheckIn, error) {
	if err := requireUser(userID); err != nil {
		return models.CheckIn{}, err
	}
	if rating < 1 || rating > 10 {
		return models.CheckIn{}, invalid("mood rating must be between 1 and 10, got %d", rating)
	}

	now := j.now().In(j.Location)
	switch typ {
	case "":
		typ = models.Evening
		if now.Hour() < 12 {
			typ = models.Morning
		}
	case models.Morning, models.Evening:
	default:
		return models.CheckIn{}, invalid("check-in type must be morning or evening, got %q", typ)
	}

	c := models.CheckIn{UserID: userID, Date: calendar.Day(now, j.Location), Type: typ, MoodRating: rating}
	if err := j.Store.UpsertCheckIn(ctx, c); err != nil {
		return models.CheckIn{}, err
	}
	j.log().WithFields(logrus.Fields{"user": userID, "date": c.Date, "type": c.Type}).Info("check-in recorded")
	return c, nil
}

// SetPersonal stores today's yes/no entry, overwriting an earlier one
func (j *Journal) SetPersonal(ctx context.Context, userID string, value bool) (models.PersonalCheckIn, error) {
	if err := requireUser(userID); err != nil {
		return models.PersonalCheckIn{}, err
	}
	p := models.PersonalCheckIn{UserID: userID, Date: j.today(), Value: value}
	if err := j.Store.UpsertPersonalCheckIn(ctx, p); err != nil {
		return models.PersonalCheckIn{}, err
	}
	return p, nil
}

// TodayPersonal returns today's yes/no entry, or nil when none is recorded
func (j *Journal) TodayPersonal(ctx context.Context, userID string) (*models.PersonalCheckIn, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return j.Store.GetPersonalCheckIn(ctx, userID, j.today())
}

// Reading is a scripture reading as submitted
type Reading struct {
	// Date and Time are local wall-clock values ("2006-01-02", "15:04");
	// either may be empty to mean now
	Date       string            `json:"date"`
	Time       string            `json:"time"`
	Selections []models.Selection `json:"selections"`
}

// RecordReading appends a reading log entry. The read_at instant is Date and
// Time interpreted in the reference timezone.
func (j *Journal) RecordReading(ctx context.Context, userID string, in Reading) (models.ScriptureReading, error) {
	if err := requireUser(userID); err != nil {
		return models.ScriptureReading{}, err
	}
	readAt, err := j.readAt(in.Date, in.Time)
	if err != nil {
		return models.ScriptureReading{}, err
	}
	selections, err := normalizeSelections(in.Selections)
	if err != nil {
		return models.ScriptureReading{}, err
	}

	newID := j.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	r := models.ScriptureReading{ID: newID(), UserID: userID, ReadAt: readAt, Selections: selections}
	if err := j.Store.InsertScriptureReading(ctx, r); err != nil {
		return models.ScriptureReading{}, err
	}
	j.log().WithFields(logrus.Fields{"user": userID, "chapters": r.ChapterCount()}).Info("reading recorded")
	return r, nil
}

func (j *Journal) readAt(date, clock string) (time.Time, error) {
	now := j.now().In(j.Location)
	if date == "" {
		date = now.Format(calendar.Layout)
	}
	if clock == "" {
		clock = now.Format("15:04")
	}
	t, err := time.ParseInLocation(calendar.Layout+" 15:04", date+" "+clock, j.Location)
	if err != nil {
		return time.Time{}, invalid("read time %q %q: want YYYY-MM-DD and HH:MM", date, clock)
	}
	return t, nil
}

// normalizeSelections rejects empty submissions and returns each book's
// chapters deduplicated and sorted
func normalizeSelections(in []models.Selection) ([]models.Selection, error) {
	if len(in) == 0 {
		return nil, invalid("at least one book must be selected")
	}
	seen := make(map[string]bool, len(in))
	out := make([]models.Selection, 0, len(in))
	for _, s := range in {
		book := strings.TrimSpace(s.Book)
		if book == "" {
			return nil, invalid("book name is required")
		}
		if seen[book] {
			return nil, invalid("book %q selected twice", book)
		}
		seen[book] = true

		chapters := slices.Clone(s.Chapters)
		slices.Sort(chapters)
		chapters = slices.Compact(chapters)
		if len(chapters) > 0 && chapters[0] < 1 {
			return nil, invalid("chapters of %s must be positive", book)
		}
		if chapters == nil {
			chapters = []int{}
		}
		out = append(out, models.Selection{Book: book, Chapters: chapters})
	}
	return out, nil
}

// Settings returns the user's settings, or nil when none are stored
func (j *Journal) Settings(ctx context.Context, userID string) (*models.UserSettings, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return j.Store.GetUserSettings(ctx, userID)
}

// SaveLocation geocodes a 5-digit ZIP and stores it with its coordinates.
// The most recently saved location drives weather ingestion.
func (j *Journal) SaveLocation(ctx context.Context, userID, zip string) (models.UserSettings, error) {
	if err := requireUser(userID); err != nil {
		return models.UserSettings{}, err
	}
	zip = strings.TrimSpace(zip)
	if !zipPattern.MatchString(zip) {
		return models.UserSettings{}, invalid("zip code must be 5 digits, got %q", zip)
	}

	loc, err := j.Geocoder.Lookup(ctx, zip)
	if err != nil {
		var statusErr *fetcher.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return models.UserSettings{}, invalid("unknown zip code %s", zip)
		}
		if errors.Is(err, fetcher.ErrNoData) {
			return models.UserSettings{}, invalid("unknown zip code %s", zip)
		}
		return models.UserSettings{}, err
	}

	s := models.UserSettings{UserID: userID, ZipCode: zip, Lat: &loc.Lat, Lon: &loc.Lon, UpdatedAt: j.now().UTC()}
	if err := j.Store.UpsertUserSettings(ctx, s); err != nil {
		return models.UserSettings{}, err
	}
	j.log().WithFields(logrus.Fields{"user": userID, "zip": zip}).Info("location saved")
	return s, nil
}
