package ingest

import (
	"errors"
	"net/http"
	"time"

	"github.com/jgoulah/dayboard/internal/fetcher"
	"github.com/jgoulah/dayboard/pkg/models"
)

// Status is the state of one ingestion run
type Status string

const (
	StatusIdle               Status = "idle"
	StatusFetching           Status = "fetching"
	StatusNormalizing        Status = "normalizing"
	StatusUpserting          Status = "upserting"
	StatusSucceeded          Status = "succeeded"
	StatusPartiallySucceeded Status = "partially_succeeded"
	StatusFailed             Status = "failed"
	// StatusNoData means the upstream legitimately had nothing for the day,
	// e.g. the market was closed. Nothing is written.
	StatusNoData Status = "no_data"
)

// Terminal reports whether a run in this status has finished
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusPartiallySucceeded, StatusFailed, StatusNoData:
		return true
	}
	return false
}

// Summary is the externally observable result of one run
type Summary struct {
	Source   models.Source     `json:"source"`
	Date     string            `json:"date"`
	Status   Status            `json:"status"`
	Upserted int               `json:"upserted"`
	Rows     []models.Snapshot `json:"rows"`
	// Failed names the sub-targets (tickers, endpoints) that produced nothing
	Failed   []string      `json:"failed,omitempty"`
	Message  string        `json:"message,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"-"`
}

// OK reports whether the run should be considered a success by a scheduler
func (s Summary) OK() bool {
	return s.Status == StatusSucceeded || s.Status == StatusPartiallySucceeded || s.Status == StatusNoData
}

// HTTPStatus maps the summary to the status code returned to the trigger
func (s Summary) HTTPStatus() int {
	if s.OK() {
		return http.StatusOK
	}
	if errors.Is(s.Err, fetcher.ErrNoData) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type successBody struct {
	Upserted int               `json:"upserted"`
	Rows     []models.Snapshot `json:"rows"`
	Failed   []string          `json:"failed,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Body returns the JSON body for the trigger response:
// {upserted, rows} on success, {message} when there was nothing to do,
// {error} on failure
func (s Summary) Body() any {
	switch {
	case s.Status == StatusNoData:
		return messageBody{Message: s.Message}
	case s.OK():
		return successBody{Upserted: s.Upserted, Rows: s.Rows, Failed: s.Failed}
	default:
		msg := "ingestion failed"
		if s.Err != nil {
			msg = s.Err.Error()
		}
		return errorBody{Error: msg}
	}
}

// Failure builds the summary for a run that could not even start,
// e.g. a job whose credentials are missing
func Failure(source models.Source, date string, err error) Summary {
	return Summary{Source: source, Date: date, Status: StatusFailed, Err: err}
}
